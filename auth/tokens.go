package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultSessionTTL applies when Issue is called without an explicit TTL.
const DefaultSessionTTL = 15 * time.Minute

// TokenService signs and verifies local session tokens. Tokens are
// self-contained: validity is fully delegated to signature plus expiry, no
// server-side state.
type TokenService struct {
	secret     []byte
	method     jwt.SigningMethod
	defaultTTL time.Duration
	now        func() time.Time
}

// NewTokenService constructs a TokenService for the given shared secret and
// HMAC algorithm name (HS256, HS384, or HS512).
func NewTokenService(secret, algorithm string, defaultTTL time.Duration) (*TokenService, error) {
	if secret == "" {
		return nil, errors.New("signing secret required")
	}
	method := jwt.GetSigningMethod(algorithm)
	if method == nil {
		return nil, fmt.Errorf("unknown signing algorithm %q", algorithm)
	}
	if _, ok := method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("algorithm %q is not symmetric", algorithm)
	}
	if defaultTTL <= 0 {
		defaultTTL = DefaultSessionTTL
	}
	return &TokenService{
		secret:     []byte(secret),
		method:     method,
		defaultTTL: defaultTTL,
		now:        time.Now,
	}, nil
}

// Issue signs a session token for subject expiring after ttl. A
// non-positive ttl selects the service default.
func (ts *TokenService) Issue(subject string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = ts.defaultTTL
	}
	now := ts.now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(ts.method, claims).SignedString(ts.secret)
}

// Verify checks signature and expiry and returns the subject claim. Failures
// map onto the internal taxonomy; callers at trust boundaries must collapse
// them before replying.
func (ts *TokenService) Verify(token string) (string, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{ts.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(ts.now),
	)
	claims := &jwt.RegisteredClaims{}
	_, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return ts.secret, nil
	})
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return "", ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "", ErrTokenMalformed
	default:
		return "", ErrSignatureInvalid
	}
	if claims.Subject == "" {
		return "", ErrTokenMalformed
	}
	return claims.Subject, nil
}
