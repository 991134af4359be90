package server

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Hardcoded token defaults.
const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultLoginTTL   = 30 * time.Minute
	DefaultBcryptCost = 10
)

var hmacAlgorithms = map[string]bool{"HS256": true, "HS384": true, "HS512": true}

// Config captures the full application configuration loaded from YAML and
// environment variables.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Auth   AuthConfig   `yaml:"auth"`
	OIDC   OIDCConfig   `yaml:"oidc"`
}

// ServerConfig controls listener, TLS, and HTTP concerns.
type ServerConfig struct {
	PublicURL       string    `yaml:"public_url"`
	DevListenAddr   string    `yaml:"dev_listen_addr"`
	HTTPListenAddr  string    `yaml:"http_listen_addr"`
	HTTPSListenAddr string    `yaml:"https_listen_addr"`
	DevMode         bool      `yaml:"dev_mode"`
	SecretsPath     string    `yaml:"secrets_path"`
	TLS             TLSConfig `yaml:"tls"`
}

// TLSConfig defines autocert behaviour and TLS constraints.
type TLSConfig struct {
	Domains    []string `yaml:"domains"`
	Email      string   `yaml:"email"`
	MinVersion string   `yaml:"min_version"`
}

// AuthConfig holds local session token and password hashing settings. TTLs
// are duration strings ("15m"); invalid values fall back to the defaults.
type AuthConfig struct {
	Secret     string `yaml:"secret"`
	Algorithm  string `yaml:"algorithm"`
	AccessTTL  string `yaml:"access_ttl"`
	LoginTTL   string `yaml:"login_ttl"`
	BcryptCost int    `yaml:"bcrypt_cost"`
}

// AccessTokenTTL returns the default session token lifetime.
func (a AuthConfig) AccessTokenTTL() time.Duration {
	return parseDuration(a.AccessTTL, DefaultAccessTTL)
}

// LoginTokenTTL returns the lifetime of tokens minted by the login endpoint.
func (a AuthConfig) LoginTokenTTL() time.Duration {
	return parseDuration(a.LoginTTL, DefaultLoginTTL)
}

// OIDCConfig enables federated authentication and lists identity providers.
type OIDCConfig struct {
	Enabled   bool             `yaml:"enabled"`
	Providers []ProviderConfig `yaml:"providers"`
}

// ProviderConfig describes one upstream identity provider.
type ProviderConfig struct {
	Name       string   `yaml:"name"`
	Issuer     string   `yaml:"issuer"`
	ClientID   string   `yaml:"client_id"`
	JWKSURI    string   `yaml:"jwks_uri"`
	Algorithms []string `yaml:"algorithms"`
}

// AcceptedAlgorithms returns the provider's accepted signature algorithms,
// defaulting to RS256.
func (p ProviderConfig) AcceptedAlgorithms() []string {
	if len(p.Algorithms) == 0 {
		return []string{"RS256"}
	}
	return p.Algorithms
}

// LoadConfig reads the YAML config file and merges environment overrides.
func LoadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		sanitized := stripYAMLComments(b)

		// Strict unmarshaling to detect unknown fields
		decoder := yaml.NewDecoder(bytes.NewReader(sanitized))
		decoder.KnownFields(true)

		if err := decoder.Decode(&cfg); err != nil {
			slog.Error("Failed to parse configuration", "error", err, "file", path)
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		slog.Error("Configuration validation failed", "error", err)
		return Config{}, err
	}

	return cfg, nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			PublicURL:       "http://127.0.0.1:8080",
			DevListenAddr:   "127.0.0.1:8080",
			HTTPListenAddr:  ":80",
			HTTPSListenAddr: ":443",
			DevMode:         true,
			SecretsPath:     ".secrets",
			TLS: TLSConfig{
				Domains:    []string{"localhost"},
				MinVersion: "1.2",
			},
		},
		Auth: AuthConfig{
			Algorithm:  "HS256",
			BcryptCost: DefaultBcryptCost,
		},
	}
}

// DefaultConfig returns the default configuration template.
func DefaultConfig() Config {
	return defaultConfig()
}

func stripYAMLComments(in []byte) []byte {
	lines := bytes.Split(in, []byte("\n"))
	out := make([][]byte, 0, len(lines))
	for _, line := range lines {
		trim := bytes.TrimLeft(line, " \t")
		if len(trim) > 0 && trim[0] == '#' {
			continue
		}
		out = append(out, line)
	}
	return bytes.Join(out, []byte("\n"))
}

func applyEnvOverrides(cfg *Config) {
	overrides := map[string]func(string){
		"AUTHGATE_SERVER_PUBLIC_URL":      func(v string) { cfg.Server.PublicURL = v },
		"AUTHGATE_SERVER_DEV_LISTEN_ADDR": func(v string) { cfg.Server.DevListenAddr = v },
		"AUTHGATE_SERVER_DEV_MODE":        func(v string) { cfg.Server.DevMode = parseBool(v, cfg.Server.DevMode) },
		"AUTHGATE_SERVER_TLS_DOMAINS":     func(v string) { cfg.Server.TLS.Domains = splitAndTrim(v) },
		"AUTHGATE_SERVER_TLS_EMAIL":       func(v string) { cfg.Server.TLS.Email = v },
		"SECRET_KEY":                      func(v string) { cfg.Auth.Secret = v },
		"AUTHGATE_AUTH_ALGORITHM":         func(v string) { cfg.Auth.Algorithm = v },
		"AUTHGATE_AUTH_ACCESS_TTL":        func(v string) { cfg.Auth.AccessTTL = v },
		"AUTHGATE_AUTH_LOGIN_TTL":         func(v string) { cfg.Auth.LoginTTL = v },
		"OIDC_ENABLED":                    func(v string) { cfg.OIDC.Enabled = parseBool(v, cfg.OIDC.Enabled) },
	}

	for key, fn := range overrides {
		if val, ok := os.LookupEnv(key); ok {
			fn(val)
		}
	}

	applyProviderEnvOverrides(cfg)
}

// applyProviderEnvOverrides keeps the original deployment contract: well
// known providers can be configured from bare environment variables without
// a config file entry.
func applyProviderEnvOverrides(cfg *Config) {
	if clientID := os.Getenv("GOOGLE_CLIENT_ID"); clientID != "" {
		upsertProvider(cfg, ProviderConfig{
			Name:       "google",
			Issuer:     "https://accounts.google.com",
			ClientID:   clientID,
			Algorithms: []string{"RS256"},
		})
	}

	domain := os.Getenv("AUTH0_DOMAIN")
	if clientID := os.Getenv("AUTH0_CLIENT_ID"); domain != "" && clientID != "" {
		upsertProvider(cfg, ProviderConfig{
			Name:       "auth0",
			Issuer:     fmt.Sprintf("https://%s/", domain),
			ClientID:   clientID,
			Algorithms: []string{"RS256"},
		})
	}

	issuer := os.Getenv("OIDC_ISSUER")
	if clientID := os.Getenv("OIDC_CLIENT_ID"); issuer != "" && clientID != "" {
		upsertProvider(cfg, ProviderConfig{
			Name:       "generic",
			Issuer:     issuer,
			ClientID:   clientID,
			Algorithms: []string{"RS256", "HS256"},
		})
	}
}

func upsertProvider(cfg *Config, p ProviderConfig) {
	for i, existing := range cfg.OIDC.Providers {
		if existing.Name == p.Name {
			cfg.OIDC.Providers[i] = p
			return
		}
	}
	cfg.OIDC.Providers = append(cfg.OIDC.Providers, p)
}

func parseDuration(val string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func parseBool(val string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func splitAndTrim(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Validate performs sanity checks on the config.
func (c Config) Validate() error {
	if c.Server.PublicURL == "" {
		slog.Error("Missing required configuration", "field", "server.public_url")
		return errors.New("server.public_url is required")
	}
	if !strings.HasPrefix(c.Server.PublicURL, "http://") && !strings.HasPrefix(c.Server.PublicURL, "https://") {
		slog.Error("Invalid configuration value", "field", "server.public_url", "value", c.Server.PublicURL)
		return fmt.Errorf("server.public_url must start with http:// or https://, got: %s", c.Server.PublicURL)
	}

	if !c.Server.DevMode && len(c.Server.TLS.Domains) == 0 {
		slog.Error("Missing required configuration for production mode", "field", "server.tls.domains")
		return errors.New("server.tls.domains must be provided in production")
	}
	if c.Server.TLS.MinVersion != "" {
		validVersions := map[string]bool{"1.2": true, "1.3": true}
		if !validVersions[c.Server.TLS.MinVersion] {
			slog.Error("Invalid TLS minimum version", "field", "server.tls.min_version", "value", c.Server.TLS.MinVersion)
			return fmt.Errorf("server.tls.min_version must be '1.2' or '1.3', got: %s", c.Server.TLS.MinVersion)
		}
	}

	if c.Auth.Secret == "" && !c.Server.DevMode {
		slog.Error("Missing required configuration", "field", "auth.secret")
		return errors.New("auth.secret is required in production mode")
	}
	if !hmacAlgorithms[c.Auth.Algorithm] {
		slog.Error("Invalid signing algorithm", "field", "auth.algorithm", "value", c.Auth.Algorithm)
		return fmt.Errorf("auth.algorithm must be one of HS256, HS384, HS512, got: %s", c.Auth.Algorithm)
	}

	// Issuer values must be unique: the registry resolves issuers with a
	// first-match scan, so a shared issuer would make validation arbitrary.
	seenNames := make(map[string]bool)
	seenIssuers := make(map[string]string)
	for i, p := range c.OIDC.Providers {
		if p.Name == "" {
			slog.Error("OIDC provider missing name", "index", i)
			return fmt.Errorf("oidc.providers[%d]: name is required", i)
		}
		if p.Issuer == "" {
			slog.Error("OIDC provider missing issuer", "provider", p.Name, "index", i)
			return fmt.Errorf("oidc.providers[%d] (%s): issuer is required", i, p.Name)
		}
		if !strings.HasPrefix(p.Issuer, "http://") && !strings.HasPrefix(p.Issuer, "https://") {
			slog.Error("Invalid issuer URL", "provider", p.Name, "issuer", p.Issuer)
			return fmt.Errorf("oidc.providers[%d] (%s): issuer must be an HTTP(S) URL, got: %s", i, p.Name, p.Issuer)
		}
		if p.ClientID == "" {
			slog.Error("OIDC provider missing client_id", "provider", p.Name, "index", i)
			return fmt.Errorf("oidc.providers[%d] (%s): client_id is required", i, p.Name)
		}
		if seenNames[p.Name] {
			slog.Error("Duplicate OIDC provider name", "provider", p.Name)
			return fmt.Errorf("oidc.providers: duplicate provider name %q", p.Name)
		}
		seenNames[p.Name] = true
		if other, dup := seenIssuers[p.Issuer]; dup {
			slog.Error("Duplicate OIDC issuer", "issuer", p.Issuer, "providers", []string{other, p.Name})
			return fmt.Errorf("oidc.providers: issuer %q configured for both %q and %q", p.Issuer, other, p.Name)
		}
		seenIssuers[p.Issuer] = p.Name
	}

	if c.OIDC.Enabled && len(c.OIDC.Providers) == 0 {
		slog.Error("OIDC enabled without providers", "field", "oidc.providers")
		return errors.New("oidc.enabled requires at least one provider")
	}

	return nil
}
