// Package eventfilter maintains installed contract-log filters on a chain
// node and polls them with adaptive backoff, decoding matching logs into
// wire messages.
package eventfilter

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
)

// ChainClient is the narrow node surface the filter manager needs: the
// installed-filter lifecycle plus the block height for the latest-block
// pseudo filter.
type ChainClient interface {
	NewFilter(ctx context.Context, q ethereum.FilterQuery) (string, error)
	FilterChanges(ctx context.Context, id string) ([]types.Log, error)
	UninstallFilter(ctx context.Context, id string) (bool, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// Client implements ChainClient over a raw RPC connection. ethclient doesn't
// expose installed filters, so the eth_*Filter methods are called directly.
type Client struct {
	rpc *rpc.Client
}

// NewClient wraps an RPC connection.
func NewClient(conn *rpc.Client) *Client {
	return &Client{rpc: conn}
}

// NewFilter installs a log filter on the node and returns its id.
func (c *Client) NewFilter(ctx context.Context, q ethereum.FilterQuery) (string, error) {
	var id string
	if err := c.rpc.CallContext(ctx, &id, "eth_newFilter", toFilterArg(q)); err != nil {
		return "", fmt.Errorf("eth_newFilter: %s", err)
	}
	return id, nil
}

// FilterChanges returns the log entries that arrived since the last poll.
func (c *Client) FilterChanges(ctx context.Context, id string) ([]types.Log, error) {
	var logs []types.Log
	if err := c.rpc.CallContext(ctx, &logs, "eth_getFilterChanges", id); err != nil {
		return nil, fmt.Errorf("eth_getFilterChanges: %s", err)
	}
	return logs, nil
}

// UninstallFilter removes an installed filter from the node.
func (c *Client) UninstallFilter(ctx context.Context, id string) (bool, error) {
	var ok bool
	if err := c.rpc.CallContext(ctx, &ok, "eth_uninstallFilter", id); err != nil {
		return false, fmt.Errorf("eth_uninstallFilter: %s", err)
	}
	return ok, nil
}

// BlockNumber returns the node's latest block height.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	var result hexutil.Uint64
	if err := c.rpc.CallContext(ctx, &result, "eth_blockNumber"); err != nil {
		return 0, fmt.Errorf("eth_blockNumber: %s", err)
	}
	return uint64(result), nil
}

func toFilterArg(q ethereum.FilterQuery) interface{} {
	arg := map[string]interface{}{
		"address": q.Addresses,
		"topics":  q.Topics,
	}
	if q.FromBlock != nil {
		arg["fromBlock"] = hexutil.EncodeBig(q.FromBlock)
	} else {
		arg["fromBlock"] = "latest"
	}
	if q.ToBlock != nil {
		arg["toBlock"] = hexutil.EncodeBig(q.ToBlock)
	}
	return arg
}

// Spec describes one filter the manager should maintain. A zero Event means
// the latest-block pseudo filter, which installs nothing on the node and
// emits `block` ticks.
type Spec struct {
	Event   string
	Address common.Address
	Topic   common.Hash
	Backoff bool
}

// BlockTickSpec returns the latest-block pseudo filter spec.
func BlockTickSpec() Spec {
	return Spec{Backoff: false}
}
