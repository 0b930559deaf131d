package controllers

import (
	"encoding/json"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/polyswarm/go-polyswarmd/internal/chains"
	"github.com/polyswarm/go-polyswarmd/pkg/contracts"
	"github.com/polyswarm/go-polyswarmd/pkg/relay"
)

// RelayFees returns the current bridge fee from the erc20-relay contract.
func (c *Controller) RelayFees(w http.ResponseWriter, r *http.Request) {
	chain := chainFrom(r)
	var out []interface{}
	if err := chain.Bindings[contracts.ERC20Relay].Call(r.Context(), &out, "fees"); err != nil {
		c.log.Warn().Err(err).Msg("fetching relay fees")
		writeFail(w, http.StatusInternalServerError, "fetching relay fees")
		return
	}
	fees, ok := out[0].(*big.Int)
	if !ok {
		writeFail(w, http.StatusInternalServerError, "fees() returned a non-integer")
		return
	}
	writeOK(w, map[string]interface{}{"fees": fees.String()})
}

// RelayDeposit builds the unsigned home-chain transfer moving nectar into
// the bridge.
func (c *Controller) RelayDeposit(w http.ResponseWriter, r *http.Request) {
	c.buildRelayTransfer(w, r, chains.HomeName)
}

// RelayWithdrawal builds the unsigned side-chain transfer moving nectar out
// of the bridge.
func (c *Controller) RelayWithdrawal(w http.ResponseWriter, r *http.Request) {
	c.buildRelayTransfer(w, r, chains.SideName)
}

type relayTransferRequest struct {
	Amount string `json:"amount"`
}

func (c *Controller) buildRelayTransfer(w http.ResponseWriter, r *http.Request, wantChain string) {
	chain := chainFrom(r)
	if chain.Name != wantChain {
		writeFail(w, http.StatusBadRequest, "operation requires the "+wantChain+" chain")
		return
	}
	caller, authed := callerFrom(r)
	if !authed {
		account := r.URL.Query().Get("account")
		if !common.IsHexAddress(account) {
			writeFail(w, http.StatusBadRequest, "account query parameter is required")
			return
		}
		caller = common.HexToAddress(account)
	}

	var req relayTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFail(w, http.StatusBadRequest, "request body must carry an amount")
		return
	}
	amount, ok := new(big.Int).SetString(req.Amount, 10)
	if !ok || amount.Sign() <= 0 {
		writeFail(w, http.StatusBadRequest, "amount must be a positive base-10 integer")
		return
	}

	nectar := chain.Bindings[contracts.NectarToken]
	calldata, err := nectar.Pack("transfer", chain.Bindings[contracts.ERC20Relay].Address, amount)
	if err != nil {
		c.log.Warn().Err(err).Msg("packing transfer calldata")
		writeFail(w, http.StatusInternalServerError, "packing transfer calldata")
		return
	}
	tx, err := relay.BuildCall(r.Context(), chain.Client, chain.ID, caller, nectar.Address, calldata, chain.Free)
	if err != nil {
		c.log.Warn().Err(err).Msg("building relay transfer")
		writeFail(w, http.StatusInternalServerError, "building relay transfer")
		return
	}
	writeOK(w, map[string]interface{}{"transactions": []*relay.UnsignedTx{tx}})
}
