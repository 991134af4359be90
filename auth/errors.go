package auth

import "errors"

// ErrCredentials is the only error the resolver surfaces to callers. Every
// validation failure collapses to it so a caller cannot distinguish an
// expired token from a forged one.
var ErrCredentials = errors.New("could not validate credentials")

// Internal failure taxonomy. These never cross the resolver boundary; they
// exist so logs and tests can tell failure modes apart.
var (
	ErrCredentialMismatch = errors.New("credential mismatch")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenMalformed     = errors.New("token malformed")
	ErrSignatureInvalid   = errors.New("signature invalid")
	ErrIssuerUnknown      = errors.New("issuer unknown")
	ErrKeyUnavailable     = errors.New("signing keys unavailable")
	ErrNetworkFailure     = errors.New("network failure")
	ErrDuplicateAccount   = errors.New("account already registered")
)
