// Package controllers implements the gateway's HTTP and websocket handlers.
// Every JSON response is wrapped in the {status, result?, errors?} envelope.
package controllers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	logger "github.com/rs/zerolog/log"

	"github.com/polyswarm/go-polyswarmd/internal/chains"
	"github.com/polyswarm/go-polyswarmd/internal/events"
	"github.com/polyswarm/go-polyswarmd/internal/router/middlewares"
	"github.com/polyswarm/go-polyswarmd/pkg/artifacts"
)

// Controller serves the gateway's routes.
type Controller struct {
	log       zerolog.Logger
	set       *chains.Set
	artifact  *artifacts.Client
	groups    *events.GroupRegistry
	community string
	startTime string
	upgrader  websocket.Upgrader
}

// New wires a controller over the configured chain set.
func New(set *chains.Set, artifact *artifacts.Client, community string) *Controller {
	return &Controller{
		log:       logger.With().Str("component", "controllers").Logger(),
		set:       set,
		artifact:  artifact,
		groups:    events.NewGroupRegistry(),
		community: community,
		startTime: strconv.FormatInt(time.Now().Unix(), 10),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

type envelope struct {
	Status string      `json:"status"`
	Result interface{} `json:"result,omitempty"`
	Errors []string    `json:"errors,omitempty"`
}

func writeOK(w http.ResponseWriter, result interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(envelope{Status: "OK", Result: result})
}

func writeFail(w http.ResponseWriter, status int, msgs ...string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Status: "FAIL", Errors: msgs})
}

// chainFrom returns the chain the selector middleware stored in the request
// context.
func chainFrom(r *http.Request) *chains.Chain {
	chain, _ := r.Context().Value(middlewares.ContextKeyChain).(*chains.Chain)
	return chain
}

// callerFrom returns the authenticated account and whether the caller
// presented a valid API key.
func callerFrom(r *http.Request) (common.Address, bool) {
	authed, _ := r.Context().Value(middlewares.ContextKeyAuthed).(bool)
	account, _ := r.Context().Value(middlewares.ContextKeyAccount).(common.Address)
	return account, authed
}
