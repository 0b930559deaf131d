// Package router assembles the gateway's HTTP surface over gorilla/mux.
package router

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/polyswarm/go-polyswarmd/internal/chains"
	"github.com/polyswarm/go-polyswarmd/internal/router/controllers"
	"github.com/polyswarm/go-polyswarmd/internal/router/middlewares"
	"github.com/polyswarm/go-polyswarmd/pkg/artifacts"
	"github.com/polyswarm/go-polyswarmd/pkg/auth"
)

// ConfiguredRouter returns a fully configured Router that can be used as an
// http handler. verifier may be nil, which disables authentication entirely.
func ConfiguredRouter(
	set *chains.Set,
	artifact *artifacts.Client,
	verifier auth.Verifier,
	authRequired bool,
	community string,
	maxRPI uint64,
	rateLimInterval time.Duration,
) (*Router, error) {
	controller := controllers.New(set, artifact, community)

	router := NewRouter()
	router.Use(middlewares.CORS, middlewares.TraceID)

	chainSel := middlewares.ChainSelector(set)
	var authn mux.MiddlewareFunc = passthrough
	if verifier != nil {
		// The whitelist matches the routes usable without a key even when a
		// key is otherwise demanded; unauthenticated POST /transactions is
		// narrowed to single withdrawals downstream.
		authn = middlewares.Authentication(verifier, authRequired, map[string]struct{}{
			"GET /status":            {},
			"POST /relay/withdrawal": {},
			"POST /transactions":     {},
		})
	}
	rateLim, err := middlewares.RateLimitController(middlewares.RateLimiterConfig{
		MaxRPI:   maxRPI,
		Interval: rateLimInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("creating rate limit controller middleware: %s", err)
	}

	router.Get("/status", controller.Status, middlewares.WithLogging, middlewares.OtelHTTP("Status"), rateLim)
	router.Get("/nonce", controller.Nonce, middlewares.WithLogging, middlewares.OtelHTTP("Nonce"), authn, chainSel, rateLim)
	router.Get("/transactions", controller.GetTransactions, middlewares.WithLogging, middlewares.OtelHTTP("GetTransactions"), authn, chainSel, rateLim)
	router.Post("/transactions", controller.PostTransactions, middlewares.WithLogging, middlewares.OtelHTTP("PostTransactions"), authn, chainSel, rateLim)
	router.Get("/relay/fees", controller.RelayFees, middlewares.WithLogging, middlewares.OtelHTTP("RelayFees"), authn, chainSel, rateLim)
	router.Post("/relay/deposit", controller.RelayDeposit, middlewares.WithLogging, middlewares.OtelHTTP("RelayDeposit"), authn, chainSel, rateLim)
	router.Post("/relay/withdrawal", controller.RelayWithdrawal, middlewares.WithLogging, middlewares.OtelHTTP("RelayWithdrawal"), authn, chainSel, rateLim)

	// Websocket routes skip the rate limiter; they hold one long-lived
	// connection.
	router.Get("/events", controller.Events, authn, chainSel)
	router.Get("/events/{guid}", controller.OfferEvents, authn)
	router.Get("/messages/{guid}", controller.Messages, authn)

	// Health endpoint configuration.
	router.Get("/healthz", healthHandler)
	router.Get("/health", healthHandler)

	return router, nil
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func passthrough(next http.Handler) http.Handler { return next }

// Router provides a nice api around mux.Router.
type Router struct {
	r *mux.Router
}

// NewRouter is a Mux HTTP router constructor.
func NewRouter() *Router {
	r := mux.NewRouter()
	r.PathPrefix("/").Methods(http.MethodOptions) // accept OPTIONS on all routes and do nothing
	return &Router{r: r}
}

// Get creates a subroute on the specified URI that only accepts GET. You can provide specific middlewares.
func (r *Router) Get(uri string, f func(http.ResponseWriter, *http.Request), mid ...mux.MiddlewareFunc) {
	sub := r.r.Path(uri).Subrouter()
	sub.HandleFunc("", f).Methods(http.MethodGet)
	sub.Use(mid...)
}

// Post creates a subroute on the specified URI that only accepts POST. You can provide specific middlewares.
func (r *Router) Post(uri string, f func(http.ResponseWriter, *http.Request), mid ...mux.MiddlewareFunc) {
	sub := r.r.Path(uri).Subrouter()
	sub.HandleFunc("", f).Methods(http.MethodPost)
	sub.Use(mid...)
}

// Use adds middlewares to all routes. Should be used when a middleware should be executed on all routes (e.g. CORS).
func (r *Router) Use(mid ...mux.MiddlewareFunc) {
	r.r.Use(mid...)
}

// Handler returns the configured router http handler.
func (r *Router) Handler() http.Handler {
	return r.r
}
