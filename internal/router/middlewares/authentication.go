package middlewares

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/polyswarm/go-polyswarmd/pkg/auth"
)

type failEnvelope struct {
	Status string   `json:"status"`
	Errors []string `json:"errors"`
}

func writeFail(w http.ResponseWriter, status int, msgs ...string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(failEnvelope{Status: "FAIL", Errors: msgs})
}

// Authentication resolves the caller's API key through the verifier and
// stores the bound account in the request context. Requests without a key
// pass through unauthenticated when required is false or the route is
// whitelisted; otherwise they are rejected with 401. Whitelist keys are
// "METHOD /path".
func Authentication(verifier auth.Verifier, required bool, whitelist map[string]struct{}) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey := r.Header.Get("Authorization")
			if apiKey == "" {
				_, whitelisted := whitelist[r.Method+" "+r.URL.Path]
				if required && !whitelisted {
					writeFail(w, http.StatusUnauthorized, "api key is required")
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			account, err := verifier.Verify(r.Context(), apiKey)
			if err != nil {
				if errors.Is(err, auth.ErrUnauthorized) {
					writeFail(w, http.StatusUnauthorized, "api key is not authorized")
					return
				}
				log.Ctx(r.Context()).Warn().Err(err).Msg("verifying api key")
				writeFail(w, http.StatusInternalServerError, "verifying api key")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyAccount, account)
			ctx = context.WithValue(ctx, ContextKeyAuthed, true)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
