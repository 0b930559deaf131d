// Package receipts waits for transaction receipts and extracts the domain
// events their logs carry, grouped by event kind.
package receipts

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/rs/zerolog"
	logger "github.com/rs/zerolog/log"

	"github.com/polyswarm/go-polyswarmd/pkg/messages"
	"github.com/polyswarm/go-polyswarmd/pkg/relay"
)

const receiptPollInterval = time.Millisecond * 500

// revertSelector is the 4-byte selector of Error(string).
const revertSelector = "08c379a0"

// Backend is the node surface the extractor needs; *ethclient.Client
// satisfies it.
type Backend interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// Extraction selects logs from one contract's event for one output key. A
// zero Address matches any log address (used for the offer-multisig
// template, whose instances live at arbitrary addresses).
type Extraction struct {
	Address common.Address
	Topic   common.Hash
	Key     string
}

// Extractor decodes the events a transaction emitted once its receipt is
// final.
type Extractor struct {
	log      zerolog.Logger
	backend  Backend
	traceRPC *rpc.Client
	codec    *messages.Codec
	table    []Extraction
	timeout  time.Duration
}

// New builds an extractor. traceRPC may be nil, which disables revert-reason
// decoding.
func New(
	chain string,
	backend Backend,
	traceRPC *rpc.Client,
	codec *messages.Codec,
	table []Extraction,
	timeout time.Duration,
) *Extractor {
	return &Extractor{
		log:      logger.With().Str("component", "receipts").Str("chain", chain).Logger(),
		backend:  backend,
		traceRPC: traceRPC,
		codec:    codec,
		table:    table,
		timeout:  timeout,
	}
}

// EventsFromTransaction waits for the receipt of txHash under the chain's
// timeout and returns the decoded events grouped by kind, or the errors that
// prevented extraction.
func (e *Extractor) EventsFromTransaction(
	ctx context.Context,
	txHash common.Hash,
) (map[string][]messages.Message, []string) {
	ctx, cls := context.WithTimeout(ctx, e.timeout)
	defer cls()

	receipt, err := e.awaitReceipt(ctx, txHash)
	if err != nil {
		return nil, []string{fmt.Sprintf("transaction %s: timeout during wait for receipt", txHash.Hex())}
	}

	if receipt.GasUsed == relay.MaxGasLimit {
		return nil, []string{fmt.Sprintf("transaction %s: out of gas", txHash.Hex())}
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		msg := fmt.Sprintf("transaction %s: transaction failed at block %d, check parameters",
			txHash.Hex(), receipt.BlockNumber.Uint64())
		if reason := e.revertReason(ctx, txHash); reason != "" {
			msg += fmt.Sprintf(", error: %s", reason)
		}
		return nil, []string{msg}
	}

	grouped := map[string][]messages.Message{}
	for _, l := range receipt.Logs {
		if len(l.Topics) == 0 {
			continue
		}
		for _, extraction := range e.table {
			var zero common.Address
			if extraction.Address != zero && extraction.Address != l.Address {
				continue
			}
			if extraction.Topic != l.Topics[0] {
				continue
			}
			msg, err := e.codec.Decode(ctx, *l)
			if err != nil {
				e.log.Warn().Err(err).Str("txn_hash", txHash.Hex()).Msg("decoding receipt log")
				continue
			}
			grouped[extraction.Key] = append(grouped[extraction.Key], msg)
		}
	}
	return grouped, nil
}

// awaitReceipt polls until the transaction is mined and at least one block
// deep.
func (e *Extractor) awaitReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	var receipt *types.Receipt
	for {
		r, err := e.backend.TransactionReceipt(ctx, txHash)
		if err == nil && r != nil && r.BlockNumber != nil {
			receipt = r
			break
		}
		if err := wait(ctx); err != nil {
			return nil, err
		}
	}
	for {
		current, err := e.backend.BlockNumber(ctx)
		if err == nil && current >= receipt.BlockNumber.Uint64()+1 {
			return receipt, nil
		}
		if err := wait(ctx); err != nil {
			return nil, err
		}
	}
}

// revertReason asks the node to replay the transaction and decodes the
// Error(string) payload, when tracing is enabled.
func (e *Extractor) revertReason(ctx context.Context, txHash common.Hash) string {
	if e.traceRPC == nil {
		return ""
	}
	var trace struct {
		ReturnValue string `json:"returnValue"`
	}
	if err := e.traceRPC.CallContext(ctx, &trace, "debug_traceTransaction", txHash, map[string]interface{}{}); err != nil {
		e.log.Warn().Err(err).Str("txn_hash", txHash.Hex()).Msg("tracing transaction")
		return ""
	}
	return DecodeRevertReason(trace.ReturnValue)
}

// DecodeRevertReason extracts the human-readable message from an
// Error(string) return payload, hex-encoded with or without 0x.
func DecodeRevertReason(returnValue string) string {
	payload := strings.TrimPrefix(returnValue, "0x")
	if !strings.HasPrefix(payload, revertSelector) {
		return ""
	}
	raw, err := hex.DecodeString(payload[len(revertSelector):])
	if err != nil || len(raw) < 64 {
		return ""
	}
	length := new(big.Int).SetBytes(raw[32:64]).Int64()
	if length < 0 || 64+length > int64(len(raw)) {
		return ""
	}
	return string(raw[64 : 64+length])
}

func wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(receiptPollInterval):
		return nil
	}
}
