package auth

import (
	"context"
	"log/slog"

	"github.com/golang-jwt/jwt/v5"
)

// Resolver maps an inbound bearer token to an authenticated account. It is
// the single entry point the rest of the system calls: federated validation
// first when enabled, local session verification as the fallback, with
// just-in-time provisioning for first-seen federated subjects.
type Resolver struct {
	accounts          *AccountStore
	tokens            *TokenService
	federation        *FederatedValidator
	registry          *Registry
	federationEnabled bool
	logger            *slog.Logger
}

// NewResolver wires the resolver. federation and registry may be nil when
// enabled is false.
func NewResolver(accounts *AccountStore, tokens *TokenService, federation *FederatedValidator, registry *Registry, enabled bool, logger *slog.Logger) *Resolver {
	return &Resolver{
		accounts:          accounts,
		tokens:            tokens,
		federation:        federation,
		registry:          registry,
		federationEnabled: enabled,
		logger:            logger,
	}
}

// Resolve authenticates a bearer token. Every failure, whatever its cause,
// returns ErrCredentials.
func (r *Resolver) Resolve(ctx context.Context, token string) (Account, error) {
	if r.federationEnabled {
		if claims, ok := r.federation.Validate(ctx, token); ok {
			if acct, ok := r.resolveFederated(claims); ok {
				return acct, nil
			}
			// Verified against a provider but missing subject or
			// provider mapping; fall through to local verification.
		}
	}

	subject, err := r.tokens.Verify(token)
	if err != nil {
		r.logger.Debug("local token rejected", "error", err)
		return Account{}, ErrCredentials
	}

	acct, ok := r.accounts.ByUsername(subject)
	if !ok {
		return Account{}, ErrCredentials
	}
	return acct, nil
}

func (r *Resolver) resolveFederated(claims jwt.MapClaims) (Account, bool) {
	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return Account{}, false
	}
	issuer, err := claims.GetIssuer()
	if err != nil || issuer == "" {
		return Account{}, false
	}
	provider, ok := r.registry.ByIssuer(issuer)
	if !ok {
		return Account{}, false
	}

	if acct, ok := r.accounts.ByFederation(subject, provider.Name); ok {
		return acct, true
	}

	email, _ := claims["email"].(string)
	if email == "" {
		email = subject + "@" + provider.Name
	}
	name, _ := claims["name"].(string)
	if name == "" {
		name, _ = claims["preferred_username"].(string)
	}
	if name == "" {
		name = subject
	}

	acct := r.accounts.FindOrCreateFederated(subject, provider.Name, email, name)
	r.logger.Info("provisioned federated account",
		"account_id", acct.ID, "provider", provider.Name, "subject", subject)
	return acct, true
}
