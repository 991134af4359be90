package server

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if !cfg.Server.DevMode {
		t.Error("expected dev mode by default")
	}
	if cfg.Auth.Algorithm != "HS256" {
		t.Errorf("unexpected default algorithm: %q", cfg.Auth.Algorithm)
	}
	if cfg.Auth.AccessTokenTTL() != DefaultAccessTTL {
		t.Errorf("unexpected default access TTL: %v", cfg.Auth.AccessTokenTTL())
	}
	if cfg.Auth.LoginTokenTTL() != DefaultLoginTTL {
		t.Errorf("unexpected default login TTL: %v", cfg.Auth.LoginTokenTTL())
	}
	if cfg.OIDC.Enabled {
		t.Error("OIDC should be disabled by default")
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	path := writeConfigFile(t, `
# comment lines are stripped before parsing
server:
  public_url: "https://api.example.com"
  dev_mode: false
  tls:
    domains: ["api.example.com"]
auth:
  secret: "file-secret"
  access_ttl: "5m"
  login_ttl: "1h"
oidc:
  enabled: true
  providers:
    - name: "google"
      issuer: "https://accounts.google.com"
      client_id: "cid"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.PublicURL != "https://api.example.com" {
		t.Errorf("public_url not loaded: %q", cfg.Server.PublicURL)
	}
	if cfg.Auth.AccessTokenTTL() != 5*time.Minute {
		t.Errorf("access TTL not loaded: %v", cfg.Auth.AccessTokenTTL())
	}
	if cfg.Auth.LoginTokenTTL() != time.Hour {
		t.Errorf("login TTL not loaded: %v", cfg.Auth.LoginTokenTTL())
	}
	if !cfg.OIDC.Enabled || len(cfg.OIDC.Providers) != 1 {
		t.Fatalf("oidc section not loaded: %+v", cfg.OIDC)
	}
}

func TestLoadConfigRejectsUnknownFields(t *testing.T) {
	path := writeConfigFile(t, `
server:
  public_url: "http://127.0.0.1:8080"
  bogus_field: true
`)
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SECRET_KEY", "env-secret")
	t.Setenv("OIDC_ENABLED", "true")
	t.Setenv("GOOGLE_CLIENT_ID", "google-cid")
	t.Setenv("AUTHGATE_AUTH_ACCESS_TTL", "2m")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Auth.Secret != "env-secret" {
		t.Errorf("SECRET_KEY not applied: %q", cfg.Auth.Secret)
	}
	if cfg.Auth.AccessTokenTTL() != 2*time.Minute {
		t.Errorf("access TTL override not applied: %v", cfg.Auth.AccessTokenTTL())
	}
	if !cfg.OIDC.Enabled {
		t.Error("OIDC_ENABLED not applied")
	}
	if len(cfg.OIDC.Providers) != 1 || cfg.OIDC.Providers[0].Name != "google" {
		t.Fatalf("google provider not bootstrapped from env: %+v", cfg.OIDC.Providers)
	}
	if cfg.OIDC.Providers[0].Issuer != "https://accounts.google.com" {
		t.Errorf("unexpected google issuer: %q", cfg.OIDC.Providers[0].Issuer)
	}
}

func TestAuth0EnvProvider(t *testing.T) {
	t.Setenv("AUTH0_DOMAIN", "tenant.auth0.com")
	t.Setenv("AUTH0_CLIENT_ID", "auth0-cid")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if len(cfg.OIDC.Providers) != 1 {
		t.Fatalf("expected one provider, got %+v", cfg.OIDC.Providers)
	}
	if got := cfg.OIDC.Providers[0].Issuer; got != "https://tenant.auth0.com/" {
		t.Errorf("auth0 issuer must carry a trailing slash, got %q", got)
	}
}

func TestValidateDuplicateIssuer(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OIDC.Providers = []ProviderConfig{
		{Name: "a", Issuer: "https://idp.example.com", ClientID: "cid-a"},
		{Name: "b", Issuer: "https://idp.example.com", ClientID: "cid-b"},
	}
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "issuer") {
		t.Fatalf("expected duplicate issuer error, got %v", err)
	}
}

func TestValidateDuplicateProviderName(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OIDC.Providers = []ProviderConfig{
		{Name: "a", Issuer: "https://one.example.com", ClientID: "cid"},
		{Name: "a", Issuer: "https://two.example.com", ClientID: "cid"},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected duplicate name error")
	}
}

func TestValidateOIDCEnabledRequiresProviders(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OIDC.Enabled = true
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when oidc is enabled without providers")
	}
}

func TestValidateProductionRequiresSecret(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.DevMode = false
	cfg.Server.TLS.Domains = []string{"api.example.com"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing secret in production")
	}
	cfg.Auth.Secret = "prod-secret"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRejectsNonHMACAlgorithm(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Auth.Algorithm = "RS256"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for asymmetric session algorithm")
	}
}

func TestParseDurationFallback(t *testing.T) {
	if got := parseDuration("nonsense", time.Minute); got != time.Minute {
		t.Errorf("invalid input: got %v", got)
	}
	if got := parseDuration("-5m", time.Minute); got != time.Minute {
		t.Errorf("negative input: got %v", got)
	}
	if got := parseDuration("90s", time.Minute); got != 90*time.Second {
		t.Errorf("valid input: got %v", got)
	}
}

func TestAcceptedAlgorithmsDefault(t *testing.T) {
	p := ProviderConfig{}
	if got := p.AcceptedAlgorithms(); len(got) != 1 || got[0] != "RS256" {
		t.Errorf("unexpected default algorithms: %v", got)
	}
}
