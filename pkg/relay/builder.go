package relay

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// UnsignedTx is a transaction built by the gateway for the client to sign
// and post back through POST /transactions.
type UnsignedTx struct {
	ChainID  int64          `json:"chainId"`
	From     common.Address `json:"from"`
	To       common.Address `json:"to"`
	Value    string         `json:"value"`
	Data     string         `json:"data"`
	Gas      uint64         `json:"gas"`
	GasPrice *string        `json:"gasPrice,omitempty"`
	Nonce    uint64         `json:"nonce"`
}

// BuildCall assembles an unsigned contract call. Gas is the node estimate
// scaled by 1.5, capped by the latest block's gas limit, itself capped by
// MaxGasLimit. Free chains pin gasPrice to zero; elsewhere the node's
// suggested price is used.
func BuildCall(
	ctx context.Context,
	backend Backend,
	chainID *big.Int,
	from, to common.Address,
	calldata []byte,
	free bool,
) (*UnsignedTx, error) {
	estimate, err := backend.EstimateGas(ctx, ethereum.CallMsg{
		From: from,
		To:   &to,
		Data: calldata,
	})
	if err != nil {
		return nil, fmt.Errorf("estimating gas: %s", err)
	}
	header, err := backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching latest header: %s", err)
	}
	gas := estimate + estimate/2
	limit := header.GasLimit
	if limit > MaxGasLimit {
		limit = MaxGasLimit
	}
	if gas > limit {
		gas = limit
	}

	nonce, err := backend.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("fetching pending nonce: %s", err)
	}

	tx := &UnsignedTx{
		ChainID: chainID.Int64(),
		From:    from,
		To:      to,
		Value:   "0x0",
		Data:    hexutil.Encode(calldata),
		Gas:     gas,
		Nonce:   nonce,
	}
	if free {
		zero := "0x0"
		tx.GasPrice = &zero
	} else {
		price, err := backend.SuggestGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetching suggested gas price: %s", err)
		}
		encoded := hexutil.EncodeBig(price)
		tx.GasPrice = &encoded
	}
	return tx, nil
}
