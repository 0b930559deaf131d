package middlewares

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/polyswarm/go-polyswarmd/internal/chains"
)

// ChainSelector resolves the chain query parameter against the configured
// set and stores the selected chain in the request context. Home is the
// default; naming an unconfigured or unknown chain is a 400.
func ChainSelector(set *chains.Set) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			chain, err := set.ByName(r.URL.Query().Get("chain"))
			if err != nil {
				writeFail(w, http.StatusBadRequest, err.Error())
				return
			}
			ctx := context.WithValue(r.Context(), ContextKeyChain, chain)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
