package offers

import (
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildState(words ...[]byte) string {
	blob := make([]byte, 0, len(words)*wordSize)
	for _, w := range words {
		padded := make([]byte, wordSize)
		copy(padded[wordSize-len(w):], w)
		blob = append(blob, padded...)
	}
	return hex.EncodeToString(blob)
}

func TestDecodeState(t *testing.T) {
	t.Parallel()

	ambassador, _ := hex.DecodeString("34e583cf9c1789c3141538eec77d9f0b8f7e89f2")
	// is_closed, nonce, ambassador, expert, msig, balances, token, guid,
	// offer_amount.
	raw := buildState(
		[]byte{0},
		[]byte{7},
		ambassador,
		[]byte{0x02},
		[]byte{0x03},
		[]byte{0x64},
		[]byte{0x32},
		[]byte{0x04},
		[]byte{0x40, 0xc1},
		[]byte{0x0a},
	)

	state, err := DecodeState(raw)
	require.NoError(t, err)

	require.Equal(t, false, state["is_closed"])
	require.Equal(t, big.NewInt(7), state["nonce"])
	require.Equal(t, "0x34E583cf9C1789c3141538EeC77D9F0B8F7E89f2", state["ambassador"])
	require.Equal(t, "00000000-0000-0000-0000-0000000040c1", state["guid"])
	require.Equal(t, big.NewInt(10), state["offer_amount"])
	require.NotContains(t, state, "mask")
	require.NotContains(t, state, "verdicts")
}

func TestDecodeStateWithEngagement(t *testing.T) {
	t.Parallel()

	words := make([][]byte, 15)
	for i := range words {
		words[i] = []byte{byte(i + 1)}
	}
	state, err := DecodeState("0x" + buildState(words...))
	require.NoError(t, err)

	require.Equal(t, true, state["is_closed"])
	require.Equal(t, big.NewInt(14), state["mask"])
	require.Equal(t, big.NewInt(15), state["verdicts"])
	require.Equal(t,
		"0x000000000000000000000000000000000000000000000000000000000000000b",
		state["artifact_hash"])
}

func TestDecodeStateRejectsMalformedBlobs(t *testing.T) {
	t.Parallel()

	_, err := DecodeState("zzzz")
	require.Error(t, err)

	// Not word aligned.
	_, err = DecodeState(hex.EncodeToString(make([]byte, 33)))
	require.Error(t, err)

	// Too short.
	_, err = DecodeState(hex.EncodeToString(make([]byte, wordSize*5)))
	require.Error(t, err)
}
