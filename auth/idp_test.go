package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v3"
	"github.com/golang-jwt/jwt/v5"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeIDP serves a minimal OIDC discovery document and JWKS endpoint and
// signs tokens with its own RSA key.
type fakeIDP struct {
	srv           *httptest.Server
	key           *rsa.PrivateKey
	kid           string
	jwksHits      atomic.Int32
	wellKnownHits atomic.Int32
	failJWKS      atomic.Bool
}

func newFakeIDP(t *testing.T) *fakeIDP {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}
	idp := &fakeIDP{key: key, kid: "test-key"}

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		idp.wellKnownHits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"issuer":   idp.srv.URL,
			"jwks_uri": idp.srv.URL + "/jwks",
		})
	})
	mux.HandleFunc("/jwks", func(w http.ResponseWriter, r *http.Request) {
		idp.jwksHits.Add(1)
		if idp.failJWKS.Load() {
			http.Error(w, "unavailable", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(idp.keySet())
	})

	idp.srv = httptest.NewServer(mux)
	t.Cleanup(idp.srv.Close)
	return idp
}

func (f *fakeIDP) issuer() string {
	return f.srv.URL
}

func (f *fakeIDP) jwksURI() string {
	return f.srv.URL + "/jwks"
}

func (f *fakeIDP) keySet() jose.JSONWebKeySet {
	return jose.JSONWebKeySet{Keys: []jose.JSONWebKey{{
		Key:       &f.key.PublicKey,
		KeyID:     f.kid,
		Algorithm: "RS256",
		Use:       "sig",
	}}}
}

func (f *fakeIDP) provider(name, clientID string) Provider {
	return Provider{
		Name:       name,
		Issuer:     f.issuer(),
		ClientID:   clientID,
		Algorithms: []string{"RS256"},
		JWKSURI:    f.jwksURI(),
	}
}

// signToken mints an RS256 token with the given claims. Unset iss/aud/exp
// must be provided by the caller when the test cares about them.
func (f *fakeIDP) signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = f.kid
	signed, err := token.SignedString(f.key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

// federatedClaims builds a valid claim set for this IdP, expiring in an
// hour.
func (f *fakeIDP) federatedClaims(clientID, subject string) jwt.MapClaims {
	return jwt.MapClaims{
		"iss": f.issuer(),
		"aud": clientID,
		"sub": subject,
		"exp": time.Now().Add(time.Hour).Unix(),
		"iat": time.Now().Unix(),
	}
}
