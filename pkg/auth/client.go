// Package auth resolves API keys against the external authorization
// service fronting the community.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const verifyTimeout = time.Second * 5

// ErrUnauthorized is returned for keys the service does not recognize.
var ErrUnauthorized = errors.New("api key is not authorized")

// Verifier resolves an API key to the account address it is bound to.
type Verifier interface {
	Verify(ctx context.Context, apiKey string) (common.Address, error)
}

// Client verifies keys against the authorization service over HTTP.
type Client struct {
	base      *url.URL
	community string
	hc        *http.Client
}

// NewClient parses the service base URI.
func NewClient(base, community string) (*Client, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parsing auth service uri: %s", err)
	}
	return &Client{base: u, community: community, hc: &http.Client{}}, nil
}

// Verify asks the service which account the key belongs to and whether it
// may use this community.
func (c *Client) Verify(ctx context.Context, apiKey string) (common.Address, error) {
	ctx, cls := context.WithTimeout(ctx, verifyTimeout)
	defer cls()

	target := c.base.JoinPath("communities", c.community, "auth")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return common.Address{}, fmt.Errorf("building auth request: %s", err)
	}
	req.Header.Set("Authorization", apiKey)

	resp, err := c.hc.Do(req)
	if err != nil {
		return common.Address{}, fmt.Errorf("reaching auth service: %s", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return common.Address{}, ErrUnauthorized
	default:
		return common.Address{}, fmt.Errorf("auth service returned status %d", resp.StatusCode)
	}

	var body struct {
		Result struct {
			EthAddress string `json:"eth_address"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return common.Address{}, fmt.Errorf("decoding auth response: %s", err)
	}
	if !common.IsHexAddress(body.Result.EthAddress) {
		return common.Address{}, fmt.Errorf("auth service returned invalid address %q", body.Result.EthAddress)
	}
	return common.HexToAddress(body.Result.EthAddress), nil
}
