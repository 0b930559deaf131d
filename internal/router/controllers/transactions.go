package controllers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/polyswarm/go-polyswarmd/pkg/messages"
	"github.com/polyswarm/go-polyswarmd/pkg/relay"
)

// Nonce returns the pending-state nonce of an account. Authenticated callers
// default to their bound account; anyone may ask about an explicit account
// query parameter.
func (c *Controller) Nonce(w http.ResponseWriter, r *http.Request) {
	chain := chainFrom(r)
	target := r.URL.Query().Get("account")
	if target == "" {
		account, authed := callerFrom(r)
		if !authed {
			writeFail(w, http.StatusBadRequest, "account query parameter is required")
			return
		}
		target = account.Hex()
	}
	if !common.IsHexAddress(target) {
		writeFail(w, http.StatusBadRequest, "invalid account address")
		return
	}
	nonce, err := chain.Client.PendingNonceAt(r.Context(), common.HexToAddress(target))
	if err != nil {
		c.log.Warn().Err(err).Msg("fetching pending nonce")
		writeFail(w, http.StatusInternalServerError, "fetching pending nonce")
		return
	}
	writeOK(w, nonce)
}

type transactionsRequest struct {
	Transactions []string `json:"transactions"`
}

// GetTransactions waits for the listed transactions to finalize and returns
// their emitted events grouped by kind, as the codec frames them. Any
// per-transaction failure fails the whole envelope with a 400.
func (c *Controller) GetTransactions(w http.ResponseWriter, r *http.Request) {
	chain := chainFrom(r)
	var req transactionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFail(w, http.StatusBadRequest, "request body must list transaction hashes")
		return
	}
	if len(req.Transactions) == 0 {
		writeFail(w, http.StatusBadRequest, "no transactions provided")
		return
	}

	grouped := map[string][]messages.Message{}
	var errs []string
	for _, h := range req.Transactions {
		if len(h) < 2 || h[:2] != "0x" {
			h = "0x" + h
		}
		if len(h) != 66 {
			errs = append(errs, "invalid transaction hash "+h)
			continue
		}
		events, extractErrs := chain.Extractor.EventsFromTransaction(r.Context(), common.HexToHash(h))
		errs = append(errs, extractErrs...)
		for key, msgs := range events {
			grouped[key] = append(grouped[key], msgs...)
		}
	}

	if len(errs) > 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(envelope{Status: "FAIL", Result: grouped, Errors: errs})
		return
	}
	writeOK(w, grouped)
}

// PostTransactions validates and submits a batch of signed raw transactions.
// Unauthenticated callers may post exactly one side-chain withdrawal.
func (c *Controller) PostTransactions(w http.ResponseWriter, r *http.Request) {
	chain := chainFrom(r)
	var req transactionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFail(w, http.StatusBadRequest, "request body must list signed transactions")
		return
	}
	if len(req.Transactions) == 0 {
		writeFail(w, http.StatusBadRequest, "no transactions provided")
		return
	}

	caller, authed := callerFrom(r)
	results, anyError, err := chain.Relay.Process(r.Context(), chain.Client, req.Transactions, caller, authed)
	if err != nil {
		switch {
		case errors.Is(err, relay.ErrBatchTooLarge):
			writeFail(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, relay.ErrAPIKeyRequired):
			writeFail(w, http.StatusForbidden, err.Error())
		default:
			c.log.Warn().Err(err).Msg("processing transaction batch")
			writeFail(w, http.StatusInternalServerError, "processing transaction batch")
		}
		return
	}
	if anyError {
		msgs := make([]string, 0, len(results))
		for _, res := range results {
			if res.IsError {
				msgs = append(msgs, res.Message)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(envelope{Status: "FAIL", Result: results, Errors: msgs})
		return
	}
	hashes := make([]string, len(results))
	for i, res := range results {
		hashes[i] = res.Message
	}
	writeOK(w, map[string]interface{}{"txhashes": hashes})
}
