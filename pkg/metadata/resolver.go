package metadata

import (
	"context"
	"encoding/json"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog"
	logger "github.com/rs/zerolog/log"
)

const (
	defaultCacheSize = 15
	defaultCacheTTL  = time.Second * 30
	defaultTimeout   = time.Second
)

// Fetcher retrieves the raw bytes of an artifact by its URI. The artifact
// service client satisfies this.
type Fetcher interface {
	IsValidURI(uri string) bool
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// Resolver substitutes artifact URIs with their parsed JSON content when the
// content can be fetched and validates against the schema for its kind.
// On any failure the original URI is returned unchanged. Results are
// memoized per URI with a short TTL; concurrent misses for the same URI may
// fetch twice, which is fine.
type Resolver struct {
	log     zerolog.Logger
	fetcher Fetcher
	ttl     time.Duration
	timeout time.Duration
	cache   *lru.Cache
}

type cacheEntry struct {
	value    interface{}
	deadline time.Time
}

// Option modifies a Resolver attribute.
type Option func(r *Resolver)

// WithTTL overrides the memoization TTL.
func WithTTL(ttl time.Duration) Option {
	return func(r *Resolver) { r.ttl = ttl }
}

// WithFetchTimeout overrides the per-fetch deadline.
func WithFetchTimeout(timeout time.Duration) Option {
	return func(r *Resolver) { r.timeout = timeout }
}

// NewResolver returns a resolver backed by fetcher.
func NewResolver(fetcher Fetcher, opts ...Option) (*Resolver, error) {
	cache, err := lru.New(defaultCacheSize)
	if err != nil {
		return nil, err
	}
	r := &Resolver{
		log:     logger.With().Str("component", "metadata").Logger(),
		fetcher: fetcher,
		ttl:     defaultCacheTTL,
		timeout: defaultTimeout,
		cache:   cache,
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// Resolve returns the parsed and validated artifact content for uri, or uri
// itself when it isn't a well-formed artifact identifier or the content
// can't be fetched, parsed, or validated.
func (r *Resolver) Resolve(ctx context.Context, uri string, kind Kind) interface{} {
	if !r.fetcher.IsValidURI(uri) {
		return uri
	}
	key := cacheKey(uri, kind)
	if v, ok := r.cache.Get(key); ok {
		entry := v.(cacheEntry)
		if time.Now().Before(entry.deadline) {
			return entry.value
		}
		r.cache.Remove(key)
	}

	value := r.fetch(ctx, uri, kind)
	r.cache.Add(key, cacheEntry{value: value, deadline: time.Now().Add(r.ttl)})
	return value
}

func (r *Resolver) fetch(ctx context.Context, uri string, kind Kind) interface{} {
	ctx, cls := context.WithTimeout(ctx, r.timeout)
	defer cls()

	body, err := r.fetcher.Fetch(ctx, uri)
	if err != nil {
		r.log.Debug().Err(err).Str("uri", uri).Msg("fetching artifact metadata")
		return uri
	}
	var parsed interface{}
	if err := json.Unmarshal(body, &parsed); err != nil {
		r.log.Debug().Err(err).Str("uri", uri).Msg("parsing artifact metadata")
		return uri
	}
	if err := Schema(kind).Validate(parsed); err != nil {
		r.log.Debug().Err(err).Str("uri", uri).Msg("validating artifact metadata")
		return uri
	}
	return parsed
}

func cacheKey(uri string, kind Kind) string {
	if kind == Assertion {
		return "a:" + uri
	}
	return "b:" + uri
}
