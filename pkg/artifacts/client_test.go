package artifacts

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

const validURI = "QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG"

func TestIsValidURI(t *testing.T) {
	t.Parallel()

	c, err := NewClient("http://localhost:8080", 0)
	require.NoError(t, err)

	require.True(t, c.IsValidURI(validURI))
	require.False(t, c.IsValidURI(""))
	require.False(t, c.IsValidURI("QmTooShort"))
	require.False(t, c.IsValidURI("XX"+validURI[2:]))
	// 0, O, I and l are not base58.
	require.False(t, c.IsValidURI(validURI[:45]+"0"))
}

func TestFetch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/artifacts/" + validURI:
			_, _ = w.Write([]byte("artifact body"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, 0)
	require.NoError(t, err)

	body, err := c.Fetch(context.Background(), validURI)
	require.NoError(t, err)
	require.Equal(t, []byte("artifact body"), body)

	_, err = c.Fetch(context.Background(), "not-a-uri")
	require.Error(t, err)

	missing := "Qm" + validURI[2:22] + validURI[2:26]
	_, err = c.Fetch(context.Background(), missing)
	require.Error(t, err)
}

func TestFetchBounded(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(make([]byte, 1024))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, 16)
	require.NoError(t, err)

	body, err := c.Fetch(context.Background(), validURI)
	require.NoError(t, err)
	require.Len(t, body, 16)
}

func TestStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/status" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, 0)
	require.NoError(t, err)
	require.NoError(t, c.Status(context.Background()))

	srv.Close()
	require.Error(t, c.Status(context.Background()))
}
