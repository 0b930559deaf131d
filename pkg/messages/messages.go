package messages

import (
	"encoding/json"
	"math/big"

	"github.com/google/uuid"
)

// Message is the wire frame delivered to websocket subscribers and returned
// by the transaction event extractor. Block ticks and synthetic frames omit
// BlockNumber/TxHash.
type Message struct {
	Event       string      `json:"event"`
	Data        interface{} `json:"data"`
	BlockNumber uint64      `json:"block_number"`
	TxHash      string      `json:"txhash"`
}

// wireFrame is the rendered form of a Message. BlockNumber is a pointer so
// that frames tied to a transaction carry it even at block zero, while
// synthetic frames omit it.
type wireFrame struct {
	Event       string      `json:"event"`
	Data        interface{} `json:"data"`
	BlockNumber *uint64     `json:"block_number,omitempty"`
	TxHash      string      `json:"txhash,omitempty"`
}

// MarshalJSON renders the frame, keeping block_number on every message that
// carries a transaction hash.
func (m Message) MarshalJSON() ([]byte, error) {
	f := wireFrame{Event: m.Event, Data: m.Data, TxHash: m.TxHash}
	if m.TxHash != "" {
		f.BlockNumber = &m.BlockNumber
	}
	return json.Marshal(f)
}

// NewBlockTick returns the frame emitted by the latest-block pseudo filter.
func NewBlockTick(number uint64) Message {
	return Message{
		Event: "block",
		Data:  map[string]interface{}{"number": number},
	}
}

// NewConnected returns the synthetic frame sent when a subscriber attaches.
// startTime is the process start unix time rendered as a string.
func NewConnected(startTime string) Message {
	return Message{
		Event: "connected",
		Data:  map[string]interface{}{"start_time": startTime},
	}
}

// IntToBoolList decodes a packed bit vector into a length-n list, where index
// i holds bit i of m. Bits at or above n are truncated.
func IntToBoolList(m *big.Int, n int) []bool {
	bools := make([]bool, n)
	for i := 0; i < n; i++ {
		bools[i] = m.Bit(i) == 1
	}
	return bools
}

// BoolListToInt is the inverse of IntToBoolList.
func BoolListToInt(bools []bool) *big.Int {
	m := new(big.Int)
	for i, b := range bools {
		if b {
			m.SetBit(m, i, 1)
		}
	}
	return m
}

var maxUUID = new(big.Int).Lsh(big.NewInt(1), 128)

// GUID renders a contract-side uint256 GUID in the canonical 36-char
// hyphenated form. Values are taken modulo 2^128.
func GUID(g *big.Int) string {
	var buf [16]byte
	new(big.Int).Mod(g, maxUUID).FillBytes(buf[:])
	id, err := uuid.FromBytes(buf[:])
	if err != nil {
		// FromBytes only fails on wrong length, which can't happen here.
		panic(err)
	}
	return id.String()
}
