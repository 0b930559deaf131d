package metadata

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type stubFetcher struct {
	content map[string][]byte
	calls   int
}

func (f *stubFetcher) IsValidURI(uri string) bool {
	return len(uri) > 2 && uri[:2] == "Qm"
}

func (f *stubFetcher) Fetch(_ context.Context, uri string) ([]byte, error) {
	f.calls++
	body, ok := f.content[uri]
	if !ok {
		return nil, errors.New("not found")
	}
	return body, nil
}

func TestResolveValidBountyMetadata(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{content: map[string][]byte{
		"QmBounty": []byte(`[{"mimetype": "text/plain", "size": 10}]`),
	}}
	r, err := NewResolver(fetcher)
	require.NoError(t, err)

	got := r.Resolve(context.Background(), "QmBounty", Bounty)
	parsed, ok := got.([]interface{})
	require.True(t, ok)
	require.Len(t, parsed, 1)
	require.Equal(t, "text/plain", parsed[0].(map[string]interface{})["mimetype"])
}

func TestResolvePassesThroughOnFailure(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{content: map[string][]byte{
		"QmBadJSON":   []byte(`{not json`),
		"QmBadSchema": []byte(`[{"size": 10}]`),
	}}
	r, err := NewResolver(fetcher)
	require.NoError(t, err)

	// Not a well-formed artifact URI: no fetch at all.
	require.Equal(t, "plaintext", r.Resolve(context.Background(), "plaintext", Bounty))
	require.Zero(t, fetcher.calls)

	// Fetch failure, bad JSON, and schema mismatch all fall back to the URI.
	require.Equal(t, "QmMissing", r.Resolve(context.Background(), "QmMissing", Bounty))
	require.Equal(t, "QmBadJSON", r.Resolve(context.Background(), "QmBadJSON", Bounty))
	require.Equal(t, "QmBadSchema", r.Resolve(context.Background(), "QmBadSchema", Bounty))
}

func TestResolveMemoizes(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{content: map[string][]byte{
		"QmAssertion": []byte(`[{"malware_family": "trojan"}]`),
	}}
	r, err := NewResolver(fetcher)
	require.NoError(t, err)

	first := r.Resolve(context.Background(), "QmAssertion", Assertion)
	second := r.Resolve(context.Background(), "QmAssertion", Assertion)
	require.Equal(t, first, second)
	require.Equal(t, 1, fetcher.calls)
}

func TestResolveExpiredEntryRefetches(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{content: map[string][]byte{
		"QmAssertion": []byte(`[{"malware_family": "worm"}]`),
	}}
	r, err := NewResolver(fetcher, WithTTL(time.Millisecond))
	require.NoError(t, err)

	r.Resolve(context.Background(), "QmAssertion", Assertion)
	time.Sleep(time.Millisecond * 5)
	r.Resolve(context.Background(), "QmAssertion", Assertion)
	require.Equal(t, 2, fetcher.calls)
}
