package messages

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
	logger "github.com/rs/zerolog/log"

	"github.com/polyswarm/go-polyswarmd/pkg/metadata"
)

// SchemaError indicates that a log record didn't carry a field the
// extraction table expects. Filter workers skip the offending log.
type SchemaError struct {
	Event string
	Field string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("event %s: missing or mistyped field %q", e.Event, e.Field)
}

// MetadataResolver substitutes artifact URIs referenced by events with their
// parsed off-chain content. See pkg/metadata.
type MetadataResolver interface {
	Resolve(ctx context.Context, uri string, kind metadata.Kind) interface{}
}

// Codec translates raw contract log records into stable wire frames. It is
// safe for concurrent use.
type Codec struct {
	log      zerolog.Logger
	abis     []abi.ABI
	resolver MetadataResolver
}

// NewCodec returns a codec that recognizes events from the provided ABIs.
// resolver may be nil, in which case metadata fields carry the raw URI.
func NewCodec(abis []abi.ABI, resolver MetadataResolver) *Codec {
	return &Codec{
		log:      logger.With().Str("component", "codec").Logger(),
		abis:     abis,
		resolver: resolver,
	}
}

// Decode converts a single log record to its wire frame. It returns a
// *SchemaError when a required source field is absent, and a generic error
// when the log doesn't match any known event.
func (c *Codec) Decode(ctx context.Context, l types.Log) (Message, error) {
	if len(l.Topics) == 0 {
		return Message{}, fmt.Errorf("log without topics")
	}
	event, err := c.eventByID(l.Topics[0])
	if err != nil {
		return Message{}, fmt.Errorf("detecting event type: %s", err)
	}
	tr, ok := transforms[event.Name]
	if !ok {
		return Message{}, fmt.Errorf("unknown event type %s", event.Name)
	}

	args, err := unpackArgs(event, l)
	if err != nil {
		return Message{}, fmt.Errorf("unpacking %s: %s", event.Name, err)
	}

	data, err := tr.fn(ctx, c, eventArgs{name: event.Name, m: args})
	if err != nil {
		return Message{}, err
	}
	return Message{
		Event:       tr.wire,
		Data:        data,
		BlockNumber: l.BlockNumber,
		TxHash:      l.TxHash.Hex(),
	}, nil
}

// WireName maps a source log name to the wire `event` string, or "" when the
// event isn't part of the streaming surface.
func WireName(event string) string {
	return transforms[event].wire
}

func (c *Codec) eventByID(topic common.Hash) (*abi.Event, error) {
	for i := range c.abis {
		if ev, err := c.abis[i].EventByID(topic); err == nil {
			return ev, nil
		}
	}
	return nil, fmt.Errorf("no event with id %s", topic.Hex())
}

func unpackArgs(event *abi.Event, l types.Log) (map[string]interface{}, error) {
	args := map[string]interface{}{}
	if len(l.Data) > 0 {
		if err := event.Inputs.UnpackIntoMap(args, l.Data); err != nil {
			return nil, err
		}
	}
	var indexed abi.Arguments
	for _, arg := range event.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	if len(indexed) > 0 {
		if err := abi.ParseTopicsIntoMap(args, indexed, l.Topics[1:]); err != nil {
			return nil, err
		}
	}
	return args, nil
}

func (c *Codec) resolve(ctx context.Context, uri string, kind metadata.Kind) interface{} {
	if uri == "" {
		return nil
	}
	if c.resolver == nil {
		return uri
	}
	return c.resolver.Resolve(ctx, uri, kind)
}

// eventArgs wraps the unpacked argument map with typed accessors that report
// schema mismatches uniformly.
type eventArgs struct {
	name string
	m    map[string]interface{}
}

func (a eventArgs) bigInt(field string) (*big.Int, error) {
	v, ok := a.m[field].(*big.Int)
	if !ok {
		return nil, &SchemaError{Event: a.name, Field: field}
	}
	return v, nil
}

func (a eventArgs) address(field string) (string, error) {
	v, ok := a.m[field].(common.Address)
	if !ok {
		return "", &SchemaError{Event: a.name, Field: field}
	}
	return v.Hex(), nil
}

func (a eventArgs) str(field string) (string, error) {
	v, ok := a.m[field].(string)
	if !ok {
		return "", &SchemaError{Event: a.name, Field: field}
	}
	return v, nil
}

func (a eventArgs) boolean(field string) (bool, error) {
	v, ok := a.m[field].(bool)
	if !ok {
		return false, &SchemaError{Event: a.name, Field: field}
	}
	return v, nil
}

func (a eventArgs) bigSlice(field string) ([]*big.Int, error) {
	v, ok := a.m[field].([]*big.Int)
	if !ok {
		return nil, &SchemaError{Event: a.name, Field: field}
	}
	return v, nil
}

// bitVector decodes a packed uint field scoped by the event's numArtifacts.
func (a eventArgs) bitVector(field string) ([]bool, error) {
	packed, err := a.bigInt(field)
	if err != nil {
		return nil, err
	}
	n, err := a.bigInt("numArtifacts")
	if err != nil {
		return nil, err
	}
	return IntToBoolList(packed, int(n.Int64())), nil
}

// ChecksumAddress renders addr in EIP-55 form, prefixing 0x when absent.
func ChecksumAddress(addr string) string {
	if !strings.HasPrefix(addr, "0x") {
		addr = "0x" + addr
	}
	return common.HexToAddress(addr).Hex()
}

// ArtifactTypeName maps the on-chain artifact type enum to its wire string.
func ArtifactTypeName(t *big.Int) (string, error) {
	switch t.Int64() {
	case 0:
		return "file", nil
	case 1:
		return "url", nil
	default:
		return "", fmt.Errorf("unknown artifact type %d", t.Int64())
	}
}
