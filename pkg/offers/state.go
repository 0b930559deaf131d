// Package offers decodes offer-channel state blobs exchanged over the
// message relay.
package offers

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/polyswarm/go-polyswarmd/pkg/messages"
)

const wordSize = 32

// stateWords names the 32-byte words of an offer state blob in order. The
// first ten are mandatory; the rest appear once the channel carries an
// active engagement.
var stateWords = []string{
	"is_closed",
	"nonce",
	"ambassador",
	"expert",
	"msig_address",
	"ambassador_balance",
	"expert_balance",
	"token",
	"guid",
	"offer_amount",
	"artifact_hash",
	"engagement_deadline",
	"assertion_deadline",
	"mask",
	"verdicts",
}

const requiredWords = 10

// DecodeState parses a hex-encoded offer state blob into its named fields.
func DecodeState(raw string) (map[string]interface{}, error) {
	if !strings.HasPrefix(raw, "0x") {
		raw = "0x" + raw
	}
	blob, err := hexutil.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding state hex: %s", err)
	}
	if len(blob)%wordSize != 0 {
		return nil, fmt.Errorf("state length %d is not a multiple of %d", len(blob), wordSize)
	}
	words := len(blob) / wordSize
	if words < requiredWords {
		return nil, fmt.Errorf("state has %d words, need at least %d", words, requiredWords)
	}
	if words > len(stateWords) {
		words = len(stateWords)
	}

	state := make(map[string]interface{}, words)
	for i := 0; i < words; i++ {
		word := blob[i*wordSize : (i+1)*wordSize]
		name := stateWords[i]
		switch name {
		case "ambassador", "expert", "msig_address", "token":
			state[name] = common.BytesToAddress(word[12:]).Hex()
		case "guid":
			state[name] = messages.GUID(new(big.Int).SetBytes(word))
		case "is_closed":
			state[name] = new(big.Int).SetBytes(word).Sign() != 0
		case "artifact_hash":
			state[name] = hexutil.Encode(word)
		default:
			state[name] = new(big.Int).SetBytes(word)
		}
	}
	return state, nil
}
