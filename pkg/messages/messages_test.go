package messages

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGUID(t *testing.T) {
	t.Parallel()

	require.Equal(t, "00000000-0000-0000-0000-0000000040c1", GUID(big.NewInt(0x40c1)))
	require.Equal(t, "00000000-0000-0000-0000-000000000000", GUID(big.NewInt(0)))

	// Values beyond 128 bits wrap around.
	big129 := new(big.Int).Lsh(big.NewInt(1), 128)
	big129.Add(big129, big.NewInt(5))
	require.Equal(t, "00000000-0000-0000-0000-000000000005", GUID(big129))
}

func TestIntToBoolList(t *testing.T) {
	t.Parallel()

	require.Equal(t,
		[]bool{true, false, true, false, true},
		IntToBoolList(big.NewInt(0b10101), 5))

	// Bits above the artifact count are truncated.
	require.Equal(t,
		[]bool{false, false, false, false, false, false, false},
		IntToBoolList(big.NewInt(128), 7))

	require.Empty(t, IntToBoolList(big.NewInt(42), 0))
}

func TestMessageMarshal(t *testing.T) {
	t.Parallel()

	// A genesis-block log still renders its block number.
	raw, err := json.Marshal(Message{
		Event:       "transfer",
		Data:        map[string]interface{}{"value": "10"},
		BlockNumber: 0,
		TxHash:      "0xaa",
	})
	require.NoError(t, err)
	var frame map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &frame))
	require.Equal(t, float64(0), frame["block_number"])
	require.Equal(t, "0xaa", frame["txhash"])

	// Synthetic frames carry neither field.
	raw, err = json.Marshal(NewBlockTick(1234))
	require.NoError(t, err)
	frame = map[string]interface{}{}
	require.NoError(t, json.Unmarshal(raw, &frame))
	require.NotContains(t, frame, "block_number")
	require.NotContains(t, frame, "txhash")
}

func TestBoolListRoundTrip(t *testing.T) {
	t.Parallel()

	cases := [][]bool{
		{},
		{true},
		{false, true, true, false, true, false, false, true},
		{true, true, true, true},
	}
	for _, bools := range cases {
		packed := BoolListToInt(bools)
		require.Equal(t, bools, IntToBoolList(packed, len(bools)))
	}
}
