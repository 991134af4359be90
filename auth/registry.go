package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
)

// Provider describes one configured OpenID Connect identity provider.
type Provider struct {
	Name       string
	Issuer     string
	ClientID   string
	Algorithms []string
	// JWKSURI may be set explicitly; otherwise discovery fills it in.
	JWKSURI string
}

// Registry holds configured providers and keeps the key cache primed for
// them. Providers are keyed by name, last write wins. Issuer uniqueness is a
// configuration invariant validated before registration, not enforced here.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	keys      *KeyCache
	client    *http.Client
	logger    *slog.Logger
}

// NewRegistry constructs an empty registry backed by the given key cache.
func NewRegistry(keys *KeyCache, client *http.Client, logger *slog.Logger) *Registry {
	if client == nil {
		client = &http.Client{Timeout: FetchTimeout}
	}
	return &Registry{
		providers: make(map[string]Provider),
		keys:      keys,
		client:    client,
		logger:    logger,
	}
}

// Keys exposes the backing key cache.
func (r *Registry) Keys() *KeyCache {
	return r.keys
}

// Add registers a provider and bootstraps its signing keys. When the JWKS
// URI is not configured it is discovered from the issuer's well-known
// endpoint. Discovery or fetch failures are logged and leave the provider
// registered without keys; validation against it fails closed until a later
// refresh succeeds.
func (r *Registry) Add(ctx context.Context, p Provider) {
	if p.JWKSURI == "" {
		uri, err := r.discover(ctx, p.Issuer)
		if err != nil {
			r.logger.Warn("oidc discovery failed", "provider", p.Name, "issuer", p.Issuer, "error", err)
			r.store(p)
			return
		}
		p.JWKSURI = uri
	}

	r.store(p)

	if err := r.keys.Fetch(ctx, p.Name, p.JWKSURI); err != nil {
		r.logger.Warn("initial jwks fetch failed", "provider", p.Name, "error", err)
	}
}

func (r *Registry) store(p Provider) {
	r.mu.Lock()
	r.providers[p.Name] = p
	r.mu.Unlock()
	r.logger.Info("oidc provider registered", "provider", p.Name, "issuer", p.Issuer)
}

// ByName returns the provider registered under name.
func (r *Registry) ByName(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// ByIssuer scans for the provider with the given issuer URL. First match
// wins; config validation guarantees there is at most one.
func (r *Registry) ByIssuer(issuer string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.providers {
		if p.Issuer == issuer {
			return p, true
		}
	}
	return Provider{}, false
}

// All returns every registered provider.
func (r *Registry) All() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		out = append(out, p)
	}
	return out
}

// discover resolves the jwks_uri claim from
// {issuer}/.well-known/openid-configuration.
func (r *Registry) discover(ctx context.Context, issuer string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, FetchTimeout)
	defer cancel()
	ctx = oidc.ClientContext(ctx, r.client)

	op, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNetworkFailure, err)
	}

	var meta struct {
		JWKSURI string `json:"jwks_uri"`
	}
	if err := op.Claims(&meta); err != nil {
		return "", fmt.Errorf("parse discovery document: %w", err)
	}
	if meta.JWKSURI == "" {
		return "", fmt.Errorf("discovery document for %s has no jwks_uri", issuer)
	}
	return meta.JWKSURI, nil
}
