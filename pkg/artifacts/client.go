// Package artifacts is a thin client of the content-addressed artifact
// service the gateway fronts.
package artifacts

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	uriLength       = 46
	uriPrefix       = "Qm"
	base58Alphabet  = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"
	defaultMaxBytes = 32 << 20
)

// Client talks to the artifact service over HTTP. Fetch deadlines are
// supplied by callers through the context.
type Client struct {
	base     *url.URL
	hc       *http.Client
	maxBytes int64
}

// NewClient parses the service base URI.
func NewClient(base string, maxBytes int64) (*Client, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parsing artifact service uri: %s", err)
	}
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	return &Client{base: u, hc: &http.Client{}, maxBytes: maxBytes}, nil
}

// IsValidURI reports whether uri looks like a content address the service
// can serve: multihash form, base58, "Qm" prefix, length 46.
func (c *Client) IsValidURI(uri string) bool {
	if len(uri) != uriLength || !strings.HasPrefix(uri, uriPrefix) {
		return false
	}
	for _, r := range uri {
		if !strings.ContainsRune(base58Alphabet, r) {
			return false
		}
	}
	return true
}

// Fetch retrieves the raw bytes of the artifact addressed by uri.
func (c *Client) Fetch(ctx context.Context, uri string) ([]byte, error) {
	if !c.IsValidURI(uri) {
		return nil, fmt.Errorf("invalid artifact uri %q", uri)
	}
	target := c.base.JoinPath("artifacts", uri)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("building artifact request: %s", err)
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching artifact: %s", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("artifact %s not found", uri)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("artifact service returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("reading artifact body: %s", err)
	}
	return body, nil
}

// Status probes service reachability; used by the gateway's /status.
func (c *Client) Status(ctx context.Context) error {
	ctx, cls := context.WithTimeout(ctx, time.Second)
	defer cls()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base.JoinPath("status").String(), nil)
	if err != nil {
		return fmt.Errorf("building status request: %s", err)
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("artifact service unreachable: %s", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("artifact service returned status %d", resp.StatusCode)
	}
	return nil
}
