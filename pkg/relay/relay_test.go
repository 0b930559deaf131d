package relay

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/polyswarm/go-polyswarmd/pkg/contracts"
)

var (
	nectarAddr = common.HexToAddress("0x0000000000000000000000000000000000000111")
	relayAddr  = common.HexToAddress("0x0000000000000000000000000000000000000222")
	otherAddr  = common.HexToAddress("0x0000000000000000000000000000000000000333")

	sideChainID = big.NewInt(1337)
)

type fakeBackend struct {
	mu   sync.Mutex
	sent []*types.Transaction
}

func (b *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, tx)
	return nil
}

func (b *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 50_000, nil
}

func (b *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (b *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return 7, nil
}

func (b *fakeBackend) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{Number: big.NewInt(1), GasLimit: 8_000_000}, nil
}

func newSideRelay() *Relay {
	return New(
		"side",
		sideChainID,
		map[common.Address]string{
			nectarAddr: contracts.NectarToken,
			relayAddr:  contracts.ERC20Relay,
		},
		nectarAddr,
		relayAddr,
		contracts.MustABI(contracts.NectarTokenABI),
	)
}

func signedTransfer(t *testing.T, key *ecdsa.PrivateKey, chainID *big.Int, to, recipient common.Address, amount *big.Int) string {
	t.Helper()
	nectar := contracts.MustABI(contracts.NectarTokenABI)
	calldata, err := nectar.Pack("transfer", recipient, amount)
	require.NoError(t, err)
	return signedRaw(t, key, chainID, &to, calldata, big.NewInt(0))
}

func signedRaw(t *testing.T, key *ecdsa.PrivateKey, chainID *big.Int, to *common.Address, calldata []byte, value *big.Int) string {
	t.Helper()
	signer := types.LatestSignerForChainID(chainID)
	tx := types.MustSignNewTx(key, signer, &types.LegacyTx{
		Nonce:    0,
		To:       to,
		Value:    value,
		Gas:      100_000,
		GasPrice: big.NewInt(0),
		Data:     calldata,
	})
	raw, err := tx.MarshalBinary()
	require.NoError(t, err)
	return hexutil.Encode(raw)
}

func TestProcessAuthenticated(t *testing.T) {
	t.Parallel()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	caller := crypto.PubkeyToAddress(key.PublicKey)
	r := newSideRelay()
	backend := &fakeBackend{}

	raw := signedTransfer(t, key, sideChainID, nectarAddr, otherAddr, big.NewInt(1000))
	results, anyError, err := r.Process(context.Background(), backend, []string{raw}, caller, true)
	require.NoError(t, err)
	require.False(t, anyError)
	require.Len(t, results, 1)
	require.False(t, results[0].IsError)
	require.Len(t, backend.sent, 1)
	require.Equal(t, backend.sent[0].Hash().Hex(), results[0].Message)
}

func TestProcessAuthenticatedRejections(t *testing.T) {
	t.Parallel()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	caller := crypto.PubkeyToAddress(key.PublicKey)
	otherKey, err := crypto.GenerateKey()
	require.NoError(t, err)

	r := newSideRelay()

	cases := []struct {
		name string
		raw  string
	}{
		{
			name: "sender mismatch",
			raw:  signedTransfer(t, otherKey, sideChainID, nectarAddr, otherAddr, big.NewInt(1)),
		},
		{
			name: "recipient not whitelisted",
			raw:  signedTransfer(t, key, sideChainID, otherAddr, otherAddr, big.NewInt(1)),
		},
		{
			name: "wrong network",
			raw:  signedTransfer(t, key, big.NewInt(1), nectarAddr, otherAddr, big.NewInt(1)),
		},
		{
			name: "contract deployment",
			raw:  signedRaw(t, key, sideChainID, nil, []byte{0x60, 0x60}, big.NewInt(0)),
		},
		{
			name: "undecodable",
			raw:  "0xzzzz",
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			backend := &fakeBackend{}
			results, anyError, err := r.Process(context.Background(), backend, []string{tc.raw}, caller, true)
			require.NoError(t, err)
			require.True(t, anyError)
			require.True(t, results[0].IsError)
			require.Empty(t, backend.sent)
		})
	}
}

func TestProcessUnauthenticatedWithdrawal(t *testing.T) {
	t.Parallel()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	r := newSideRelay()
	backend := &fakeBackend{}

	raw := signedTransfer(t, key, sideChainID, nectarAddr, relayAddr, big.NewInt(5000))
	results, anyError, err := r.Process(context.Background(), backend, []string{raw}, common.Address{}, false)
	require.NoError(t, err)
	require.False(t, anyError)
	require.False(t, results[0].IsError)
	require.Len(t, backend.sent, 1)
}

func TestProcessUnauthenticatedRejectsNonWithdrawals(t *testing.T) {
	t.Parallel()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	r := newSideRelay()

	nectar := contracts.MustABI(contracts.NectarTokenABI)
	valueTransfer, err := nectar.Pack("transfer", relayAddr, big.NewInt(100))
	require.NoError(t, err)

	cases := []struct {
		name string
		raw  string
	}{
		{
			name: "transfer to a non relay recipient",
			raw:  signedTransfer(t, key, sideChainID, nectarAddr, otherAddr, big.NewInt(100)),
		},
		{
			name: "zero amount",
			raw:  signedTransfer(t, key, sideChainID, nectarAddr, relayAddr, big.NewInt(0)),
		},
		{
			name: "nonzero eth value",
			raw:  signedRaw(t, key, sideChainID, &nectarAddr, valueTransfer, big.NewInt(1)),
		},
		{
			name: "not the token contract",
			raw:  signedTransfer(t, key, sideChainID, otherAddr, relayAddr, big.NewInt(100)),
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			backend := &fakeBackend{}
			results, anyError, err := r.Process(context.Background(), backend, []string{tc.raw}, common.Address{}, false)
			require.NoError(t, err)
			require.True(t, anyError)
			require.Contains(t, results[0].Message, "only withdrawals allowed without an API key")
			require.Empty(t, backend.sent)
		})
	}
}

func TestProcessUnauthenticatedWithdrawalHomeChainRejected(t *testing.T) {
	t.Parallel()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	homeChainID := big.NewInt(1)
	r := New(
		"home",
		homeChainID,
		map[common.Address]string{nectarAddr: contracts.NectarToken, relayAddr: contracts.ERC20Relay},
		nectarAddr,
		relayAddr,
		contracts.MustABI(contracts.NectarTokenABI),
	)
	backend := &fakeBackend{}

	raw := signedTransfer(t, key, homeChainID, nectarAddr, relayAddr, big.NewInt(100))
	results, anyError, err := r.Process(context.Background(), backend, []string{raw}, common.Address{}, false)
	require.NoError(t, err)
	require.True(t, anyError)
	require.True(t, results[0].IsError)
}

func TestProcessBatchLimits(t *testing.T) {
	t.Parallel()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	caller := crypto.PubkeyToAddress(key.PublicKey)
	r := newSideRelay()
	backend := &fakeBackend{}

	raw := signedTransfer(t, key, sideChainID, nectarAddr, relayAddr, big.NewInt(100))

	tooMany := make([]string, MaxBatchSize+1)
	for i := range tooMany {
		tooMany[i] = raw
	}
	_, _, err = r.Process(context.Background(), backend, tooMany, caller, true)
	require.ErrorIs(t, err, ErrBatchTooLarge)

	_, _, err = r.Process(context.Background(), backend, []string{raw, raw}, common.Address{}, false)
	require.ErrorIs(t, err, ErrAPIKeyRequired)
}

func TestBuildCall(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{}
	tx, err := BuildCall(context.Background(), backend, sideChainID, otherAddr, nectarAddr, []byte{1, 2}, true)
	require.NoError(t, err)

	require.Equal(t, sideChainID.Int64(), tx.ChainID)
	require.Equal(t, otherAddr, tx.From)
	require.Equal(t, nectarAddr, tx.To)
	require.Equal(t, uint64(75_000), tx.Gas) // estimate scaled by 1.5
	require.Equal(t, uint64(7), tx.Nonce)
	require.Equal(t, "0x0102", tx.Data)
	require.NotNil(t, tx.GasPrice)
	require.Equal(t, "0x0", *tx.GasPrice)

	tx, err = BuildCall(context.Background(), backend, sideChainID, otherAddr, nectarAddr, nil, false)
	require.NoError(t, err)
	require.Equal(t, "0x3b9aca00", *tx.GasPrice)
}
