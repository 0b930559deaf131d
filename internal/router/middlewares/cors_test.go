package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCORS(t *testing.T) {
	t.Parallel()

	var reached bool
	h := CORS(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		reached = true
	}))

	// Preflight is answered without reaching the routed handler.
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/status", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.False(t, reached)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "600", rec.Header().Get("Access-Control-Max-Age"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.True(t, reached)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
