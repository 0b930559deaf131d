package receipts

import (
	"context"
	"encoding/hex"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/polyswarm/go-polyswarmd/pkg/contracts"
	"github.com/polyswarm/go-polyswarmd/pkg/messages"
	"github.com/polyswarm/go-polyswarmd/pkg/relay"
)

type fakeReceiptBackend struct {
	mu       sync.Mutex
	receipts map[common.Hash]*types.Receipt
	block    uint64
}

func (b *fakeReceiptBackend) TransactionReceipt(_ context.Context, h common.Hash) (*types.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if r, ok := b.receipts[h]; ok {
		return r, nil
	}
	return nil, context.DeadlineExceeded
}

func (b *fakeReceiptBackend) BlockNumber(context.Context) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.block, nil
}

var registryAddr = common.HexToAddress("0x0000000000000000000000000000000000000bbb")

func testExtractor(backend Backend, timeout time.Duration) *Extractor {
	registry := contracts.MustABI(contracts.BountyRegistryABI)
	codec := messages.NewCodec([]abi.ABI{registry}, nil)
	table := []Extraction{
		{Address: registryAddr, Topic: registry.Events["NewBounty"].ID, Key: "bounties"},
	}
	return New("home", backend, nil, codec, table, timeout)
}

func bountyLog(t *testing.T) *types.Log {
	t.Helper()
	registry := contracts.MustABI(contracts.BountyRegistryABI)
	ev := registry.Events["NewBounty"]
	data, err := ev.Inputs.Pack(
		big.NewInt(0x40c1),
		big.NewInt(0),
		common.HexToAddress("0x1"),
		big.NewInt(1000),
		"QmArtifact",
		big.NewInt(200),
		"")
	require.NoError(t, err)
	return &types.Log{
		Address:     registryAddr,
		Topics:      []common.Hash{ev.ID},
		Data:        data,
		BlockNumber: 50,
	}
}

func TestEventsFromTransaction(t *testing.T) {
	t.Parallel()

	txHash := common.HexToHash("0xaa")
	backend := &fakeReceiptBackend{
		receipts: map[common.Hash]*types.Receipt{
			txHash: {
				Status:      types.ReceiptStatusSuccessful,
				BlockNumber: big.NewInt(50),
				GasUsed:     100_000,
				Logs:        []*types.Log{bountyLog(t)},
			},
		},
		block: 51,
	}

	e := testExtractor(backend, time.Second*5)
	grouped, errs := e.EventsFromTransaction(context.Background(), txHash)
	require.Empty(t, errs)
	require.Len(t, grouped["bounties"], 1)

	data := grouped["bounties"][0].Data.(map[string]interface{})
	require.Equal(t, "00000000-0000-0000-0000-0000000040c1", data["guid"])
}

func TestEventsFromTransactionIgnoresUnrelatedLogs(t *testing.T) {
	t.Parallel()

	txHash := common.HexToHash("0xab")
	unrelated := bountyLog(t)
	unrelated.Address = common.HexToAddress("0x9999")
	backend := &fakeReceiptBackend{
		receipts: map[common.Hash]*types.Receipt{
			txHash: {
				Status:      types.ReceiptStatusSuccessful,
				BlockNumber: big.NewInt(50),
				GasUsed:     100_000,
				Logs:        []*types.Log{unrelated},
			},
		},
		block: 51,
	}

	e := testExtractor(backend, time.Second*5)
	grouped, errs := e.EventsFromTransaction(context.Background(), txHash)
	require.Empty(t, errs)
	require.Empty(t, grouped)
}

func TestEventsFromTransactionTimeout(t *testing.T) {
	t.Parallel()

	backend := &fakeReceiptBackend{receipts: map[common.Hash]*types.Receipt{}}
	e := testExtractor(backend, time.Millisecond*50)

	txHash := common.HexToHash("0xac")
	grouped, errs := e.EventsFromTransaction(context.Background(), txHash)
	require.Nil(t, grouped)
	require.Len(t, errs, 1)
	require.Contains(t, errs[0], "timeout during wait for receipt")
	require.Contains(t, errs[0], txHash.Hex())
}

func TestEventsFromTransactionOutOfGas(t *testing.T) {
	t.Parallel()

	txHash := common.HexToHash("0xad")
	backend := &fakeReceiptBackend{
		receipts: map[common.Hash]*types.Receipt{
			txHash: {
				Status:      types.ReceiptStatusFailed,
				BlockNumber: big.NewInt(50),
				GasUsed:     relay.MaxGasLimit,
			},
		},
		block: 51,
	}

	e := testExtractor(backend, time.Second*5)
	_, errs := e.EventsFromTransaction(context.Background(), txHash)
	require.Len(t, errs, 1)
	require.Contains(t, errs[0], "out of gas")
}

func TestEventsFromTransactionFailed(t *testing.T) {
	t.Parallel()

	txHash := common.HexToHash("0xae")
	backend := &fakeReceiptBackend{
		receipts: map[common.Hash]*types.Receipt{
			txHash: {
				Status:      types.ReceiptStatusFailed,
				BlockNumber: big.NewInt(77),
				GasUsed:     100_000,
			},
		},
		block: 78,
	}

	e := testExtractor(backend, time.Second*5)
	_, errs := e.EventsFromTransaction(context.Background(), txHash)
	require.Len(t, errs, 1)
	require.Contains(t, errs[0], "transaction failed at block 77, check parameters")
}

func TestDecodeRevertReason(t *testing.T) {
	t.Parallel()

	// Error(string) payload carrying "Not enough balance".
	message := "Not enough balance"
	payload := make([]byte, 64+32)
	payload[31] = 0x20
	payload[63] = byte(len(message))
	copy(payload[64:], message)
	encoded := revertSelector + hex.EncodeToString(payload)

	require.Equal(t, message, DecodeRevertReason(encoded))
	require.Equal(t, message, DecodeRevertReason("0x"+encoded))

	require.Empty(t, DecodeRevertReason("0xdeadbeef"))
	require.Empty(t, DecodeRevertReason(revertSelector+"00"))
	require.Empty(t, DecodeRevertReason(""))
}
