package actoken

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-jose/go-jose/v4"
)

// FetchJWKSHTTP builds a JWKSSource that fetches and caches the AC's JWKS
// document over HTTP. Used by GC and MC, which validate AC-issued tokens
// but are not themselves the issuer.
func FetchJWKSHTTP(client *http.Client, jwksURL string, cacheFor time.Duration) JWKSSource {
	f := &httpJWKSFetcher{client: client, url: jwksURL, cacheFor: cacheFor}
	return f.fetch
}

type httpJWKSFetcher struct {
	client   *http.Client
	url      string
	cacheFor time.Duration

	mu        sync.Mutex
	cached    jose.JSONWebKeySet
	fetchedAt time.Time
}

func (f *httpJWKSFetcher) fetch(ctx context.Context) (jose.JSONWebKeySet, error) {
	f.mu.Lock()
	if !f.fetchedAt.IsZero() && time.Since(f.fetchedAt) < f.cacheFor {
		cached := f.cached
		f.mu.Unlock()
		return cached, nil
	}
	f.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return jose.JSONWebKeySet{}, fmt.Errorf("building jwks request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return jose.JSONWebKeySet{}, fmt.Errorf("fetching jwks: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return jose.JSONWebKeySet{}, fmt.Errorf("fetching jwks: unexpected status %d", resp.StatusCode)
	}

	var set jose.JSONWebKeySet
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return jose.JSONWebKeySet{}, fmt.Errorf("decoding jwks: %w", err)
	}

	f.mu.Lock()
	f.cached = set
	f.fetchedAt = time.Now()
	f.mu.Unlock()

	return set, nil
}
