package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"authgate/auth"
)

// App bundles runtime dependencies for the HTTP service.
type App struct {
	Config   Config
	Logger   *slog.Logger
	Accounts *auth.AccountStore
	Items    *ItemStore
	Hasher   *auth.Hasher
	Tokens   *auth.TokenService
	Registry *auth.Registry
	Resolver *auth.Resolver
}

// NewApp wires together the application state from configuration. Provider
// registration performs network discovery and key fetches; failures there
// are non-fatal and logged.
func NewApp(ctx context.Context, cfg Config, logger *slog.Logger) (*App, error) {
	secret := cfg.Auth.Secret
	if secret == "" && cfg.Server.DevMode {
		secret = "dev-secret-change-in-production"
		logger.Warn("auth.secret not configured, using development default")
	}

	tokens, err := auth.NewTokenService(secret, cfg.Auth.Algorithm, cfg.Auth.AccessTokenTTL())
	if err != nil {
		return nil, err
	}

	accounts := auth.NewAccountStore()
	hasher := auth.NewHasher(cfg.Auth.BcryptCost)
	keys := auth.NewKeyCache(nil, logger)
	registry := auth.NewRegistry(keys, nil, logger)

	if cfg.OIDC.Enabled {
		for _, p := range cfg.OIDC.Providers {
			registry.Add(ctx, auth.Provider{
				Name:       p.Name,
				Issuer:     p.Issuer,
				ClientID:   p.ClientID,
				Algorithms: p.AcceptedAlgorithms(),
				JWKSURI:    p.JWKSURI,
			})
		}
	}

	federation := auth.NewFederatedValidator(registry, logger)
	resolver := auth.NewResolver(accounts, tokens, federation, registry, cfg.OIDC.Enabled, logger)

	return &App{
		Config:   cfg,
		Logger:   logger,
		Accounts: accounts,
		Items:    NewItemStore(),
		Hasher:   hasher,
		Tokens:   tokens,
		Registry: registry,
		Resolver: resolver,
	}, nil
}

func (a *App) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Welcome to authgate"})
}

func (a *App) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	digest, err := a.Hasher.Hash(req.Password)
	if err != nil {
		a.Logger.Error("hash password", "error", err)
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	acct, err := a.Accounts.CreateLocal(req.Username, req.Email, digest)
	if err != nil {
		if errors.Is(err, auth.ErrDuplicateAccount) {
			writeError(w, http.StatusBadRequest, "username already registered")
			return
		}
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	a.Logger.Info("account registered", "account_id", acct.ID, "username", acct.Username)
	writeJSON(w, http.StatusOK, AccountResponse{ID: acct.ID, Username: acct.Username, Email: acct.Email})
}

func (a *App) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	acct, err := auth.Authenticate(a.Accounts, a.Hasher, req.Username, req.Password)
	if err != nil {
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeError(w, http.StatusUnauthorized, "incorrect username or password")
		return
	}

	token, err := a.Tokens.Issue(acct.Username, a.Config.Auth.LoginTokenTTL())
	if err != nil {
		a.Logger.Error("issue token", "error", err)
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	writeJSON(w, http.StatusOK, TokenResponse{AccessToken: token, TokenType: "bearer"})
}

func (a *App) handleMe(w http.ResponseWriter, r *http.Request) {
	acct, ok := AccountFromContext(r.Context())
	if !ok {
		unauthorized(w)
		return
	}

	info := AccountInfo{
		ID:       acct.ID,
		Username: acct.Username,
		Email:    acct.Email,
		AuthType: acct.AuthType(),
	}
	if provider, ok := acct.FederatedProvider(); ok {
		info.OIDCProvider = provider
	}
	writeJSON(w, http.StatusOK, info)
}

func (a *App) handleOIDCConfig(w http.ResponseWriter, r *http.Request) {
	if !a.Config.OIDC.Enabled {
		writeJSON(w, http.StatusOK, OIDCConfigResponse{Enabled: false})
		return
	}

	providers := make(map[string]ProviderInfo)
	for _, p := range a.Registry.All() {
		providers[p.Name] = ProviderInfo{Issuer: p.Issuer, ClientID: p.ClientID}
	}
	writeJSON(w, http.StatusOK, OIDCConfigResponse{Enabled: true, Providers: providers})
}

func (a *App) handleListItems(w http.ResponseWriter, r *http.Request) {
	acct, _ := AccountFromContext(r.Context())
	writeJSON(w, http.StatusOK, a.Items.ByOwner(acct.ID))
}

func (a *App) handleGetItem(w http.ResponseWriter, r *http.Request) {
	acct, _ := AccountFromContext(r.Context())
	id, err := itemID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	item, ok := a.Items.Get(id)
	// A foreign item reads as missing so ids cannot be probed.
	if !ok || item.OwnerID != acct.ID {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (a *App) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	acct, _ := AccountFromContext(r.Context())
	var req ItemRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	item := a.Items.Create(Item{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		OwnerID:     acct.ID,
	})
	writeJSON(w, http.StatusOK, item)
}

func (a *App) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	acct, _ := AccountFromContext(r.Context())
	id, err := itemID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid item id")
		return
	}
	var req ItemRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, ok := a.Items.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}
	if item.OwnerID != acct.ID {
		writeError(w, http.StatusForbidden, "not authorized to update this item")
		return
	}

	updated, _ := a.Items.Update(id, req)
	writeJSON(w, http.StatusOK, updated)
}

func (a *App) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	acct, _ := AccountFromContext(r.Context())
	id, err := itemID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	item, ok := a.Items.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}
	if item.OwnerID != acct.ID {
		writeError(w, http.StatusForbidden, "not authorized to delete this item")
		return
	}

	a.Items.Delete(id)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Item deleted successfully"})
}

func itemID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func readJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
