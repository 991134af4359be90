package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-jose/go-jose/v3"
)

const (
	// KeyCacheTTL bounds how long a fetched key set is served without a
	// refresh attempt.
	KeyCacheTTL = time.Hour

	// FetchTimeout bounds every JWKS and discovery request.
	FetchTimeout = 10 * time.Second
)

type keyEntry struct {
	set     jose.JSONWebKeySet
	expires time.Time
}

// KeyCache holds the last-fetched signing key set per provider. Entries
// expire after KeyCacheTTL; a failed refresh keeps serving the stale set
// rather than degrading to no keys.
type KeyCache struct {
	mu      sync.RWMutex
	entries map[string]keyEntry
	client  *http.Client
	logger  *slog.Logger
	ttl     time.Duration
	now     func() time.Time
}

// NewKeyCache constructs the cache. A nil client gets one with the standard
// fetch timeout.
func NewKeyCache(client *http.Client, logger *slog.Logger) *KeyCache {
	if client == nil {
		client = &http.Client{Timeout: FetchTimeout}
	}
	return &KeyCache{
		entries: make(map[string]keyEntry),
		client:  client,
		logger:  logger,
		ttl:     KeyCacheTTL,
		now:     time.Now,
	}
}

// Keys returns the cached key set for provider name. A stale entry triggers
// one synchronous refresh from jwksURI first; if the refresh fails the stale
// set is returned. Returns false only if no set was ever fetched.
func (c *KeyCache) Keys(ctx context.Context, name, jwksURI string) (jose.JSONWebKeySet, bool) {
	c.mu.RLock()
	entry, ok := c.entries[name]
	c.mu.RUnlock()
	if !ok {
		return jose.JSONWebKeySet{}, false
	}

	if c.now().After(entry.expires) && jwksURI != "" {
		if err := c.Fetch(ctx, name, jwksURI); err != nil {
			c.logger.Warn("jwks refresh failed, serving stale keys", "provider", name, "error", err)
		}
		c.mu.RLock()
		entry = c.entries[name]
		c.mu.RUnlock()
	}

	return entry.set, true
}

// Fetch downloads the key set at jwksURI and replaces the cache entry for
// provider name. On failure the prior entry is left untouched.
func (c *KeyCache) Fetch(ctx context.Context, name, jwksURI string) error {
	set, err := c.download(ctx, jwksURI)
	if err != nil {
		c.logger.Warn("jwks fetch failed", "provider", name, "jwks_uri", jwksURI, "error", err)
		return err
	}

	c.mu.Lock()
	c.entries[name] = keyEntry{set: set, expires: c.now().Add(c.ttl)}
	c.mu.Unlock()

	c.logger.Debug("jwks cached", "provider", name, "keys", len(set.Keys))
	return nil
}

func (c *KeyCache) download(ctx context.Context, jwksURI string) (jose.JSONWebKeySet, error) {
	ctx, cancel := context.WithTimeout(ctx, FetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, jwksURI, nil)
	if err != nil {
		return jose.JSONWebKeySet{}, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return jose.JSONWebKeySet{}, fmt.Errorf("%w: %v", ErrNetworkFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return jose.JSONWebKeySet{}, fmt.Errorf("%w: jwks endpoint returned %s", ErrNetworkFailure, resp.Status)
	}

	var set jose.JSONWebKeySet
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return jose.JSONWebKeySet{}, fmt.Errorf("decode jwks: %w", err)
	}
	return set, nil
}
