package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/polyswarm/go-polyswarmd/internal/chains"
	"github.com/polyswarm/go-polyswarmd/internal/router/middlewares"
	"github.com/polyswarm/go-polyswarmd/pkg/contracts"
	"github.com/polyswarm/go-polyswarmd/pkg/messages"
	"github.com/polyswarm/go-polyswarmd/pkg/receipts"
)

type fakeReceiptBackend struct {
	receipts map[common.Hash]*types.Receipt
	block    uint64
}

func (b *fakeReceiptBackend) TransactionReceipt(_ context.Context, h common.Hash) (*types.Receipt, error) {
	if r, ok := b.receipts[h]; ok {
		return r, nil
	}
	return nil, errors.New("not found")
}

func (b *fakeReceiptBackend) BlockNumber(context.Context) (uint64, error) {
	return b.block, nil
}

func newExtractorChain(backend receipts.Backend, codec *messages.Codec, table []receipts.Extraction, timeout time.Duration) *chains.Chain {
	return &chains.Chain{
		Name:      chains.HomeName,
		Extractor: receipts.New(chains.HomeName, backend, nil, codec, table, timeout),
	}
}

func eventsRequest(t *testing.T, chain *chains.Chain, hashes []string) *http.Request {
	t.Helper()
	body, err := json.Marshal(map[string][]string{"transactions": hashes})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/transactions", bytes.NewReader(body))
	return req.WithContext(context.WithValue(req.Context(), middlewares.ContextKeyChain, chain))
}

func TestGetTransactionsFailsEnvelopeOnError(t *testing.T) {
	t.Parallel()

	nectar := contracts.MustABI(contracts.NectarTokenABI)
	codec := messages.NewCodec([]abi.ABI{nectar}, nil)
	backend := &fakeReceiptBackend{receipts: map[common.Hash]*types.Receipt{}, block: 51}
	chain := newExtractorChain(backend, codec, nil, time.Millisecond*50)
	c := New(&chains.Set{Home: chain}, nil, "test")

	rec := httptest.NewRecorder()
	c.GetTransactions(rec, eventsRequest(t, chain, []string{common.HexToHash("0xbb").Hex()}))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var env struct {
		Status string   `json:"status"`
		Errors []string `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.Equal(t, "FAIL", env.Status)
	require.Len(t, env.Errors, 1)
	require.Contains(t, env.Errors[0], "timeout during wait for receipt")
}

func TestGetTransactionsReturnsFullFrames(t *testing.T) {
	t.Parallel()

	nectar := contracts.MustABI(contracts.NectarTokenABI)
	codec := messages.NewCodec([]abi.ABI{nectar}, nil)
	nectarAddr := common.HexToAddress("0x100")
	txHash := common.HexToHash("0xbb")

	ev := nectar.Events["Transfer"]
	data, err := abi.Arguments{ev.Inputs[2]}.Pack(big.NewInt(10))
	require.NoError(t, err)
	receipt := &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		BlockNumber: big.NewInt(50),
		GasUsed:     100_000,
		Logs: []*types.Log{{
			Address: nectarAddr,
			Topics: []common.Hash{
				ev.ID,
				common.BytesToHash(common.HexToAddress("0x1").Bytes()),
				common.BytesToHash(common.HexToAddress("0x2").Bytes()),
			},
			Data:        data,
			BlockNumber: 50,
			TxHash:      txHash,
		}},
	}
	backend := &fakeReceiptBackend{
		receipts: map[common.Hash]*types.Receipt{txHash: receipt},
		block:    51,
	}
	table := []receipts.Extraction{{Address: nectarAddr, Topic: ev.ID, Key: "transfers"}}
	chain := newExtractorChain(backend, codec, table, time.Second*5)
	c := New(&chains.Set{Home: chain}, nil, "test")

	rec := httptest.NewRecorder()
	c.GetTransactions(rec, eventsRequest(t, chain, []string{txHash.Hex()}))

	require.Equal(t, http.StatusOK, rec.Code)
	var env struct {
		Status string                              `json:"status"`
		Result map[string][]map[string]interface{} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.Equal(t, "OK", env.Status)
	require.Len(t, env.Result["transfers"], 1)

	// Grouped results are whole wire frames, not bare data payloads.
	frame := env.Result["transfers"][0]
	require.Equal(t, "transfer", frame["event"])
	require.Equal(t, float64(50), frame["block_number"])
	require.Equal(t, txHash.Hex(), frame["txhash"])
	require.Contains(t, frame, "data")
}
