package controllers

import (
	"errors"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/polyswarm/go-polyswarmd/internal/chains"
	"github.com/polyswarm/go-polyswarmd/internal/events"
	"github.com/polyswarm/go-polyswarmd/pkg/contracts"
)

var (
	errOffersUnavailable = errors.New("offer channels are not available on this deployment")
	errChannelLookup     = errors.New("resolving channel multisig address")
	errUnknownChannel    = errors.New("unknown offer channel")
)

// Events upgrades to a websocket and streams the chain-wide event feed.
func (c *Controller) Events(w http.ResponseWriter, r *http.Request) {
	chain := chainFrom(r)
	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	sub := events.NewSubscriber(chain.Hub, conn)
	if err := chain.Hub.Register(sub); err != nil {
		c.log.Warn().Err(err).Msg("registering event subscriber")
		_ = conn.Close()
		return
	}
	sub.Run(c.startTime)
}

// OfferEvents streams the multisig events of a single offer channel. The
// channel GUID in the path is resolved to its multisig address through the
// offer registry on the home chain.
func (c *Controller) OfferEvents(w http.ResponseWriter, r *http.Request) {
	guid, err := uuid.Parse(mux.Vars(r)["guid"])
	if err != nil {
		writeFail(w, http.StatusBadRequest, "invalid channel guid")
		return
	}
	chain := c.set.Home
	msig, err := c.resolveChannel(r, chain, guid)
	if err != nil {
		writeFail(w, http.StatusBadRequest, err.Error())
		return
	}

	conn, upErr := c.upgrader.Upgrade(w, r, nil)
	if upErr != nil {
		return
	}
	hub := chain.OfferHub(guid.String(), msig)
	sub := events.NewSubscriber(hub, conn)
	if err := hub.Register(sub); err != nil {
		c.log.Warn().Err(err).Msg("registering offer subscriber")
		_ = conn.Close()
		return
	}
	sub.Run(c.startTime)
}

func (c *Controller) resolveChannel(r *http.Request, chain *chains.Chain, guid uuid.UUID) (common.Address, error) {
	registry, ok := chain.Bindings[contracts.OfferRegistry]
	if !ok {
		return common.Address{}, errOffersUnavailable
	}
	var out []interface{}
	asInt := new(big.Int).SetBytes(guid[:])
	if err := registry.Call(r.Context(), &out, "guidToChannel", asInt); err != nil {
		return common.Address{}, errChannelLookup
	}
	msig, ok := out[0].(common.Address)
	if !ok || msig == (common.Address{}) {
		return common.Address{}, errUnknownChannel
	}
	return msig, nil
}
