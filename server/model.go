package server

// RegisterRequest is the payload for POST /register.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is the payload for POST /login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse is the login reply.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// AccountResponse renders an account without its credential.
type AccountResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// AccountInfo is the reply for GET /auth/me.
type AccountInfo struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	AuthType     string `json:"auth_type"`
	OIDCProvider string `json:"oidc_provider,omitempty"`
}

// ProviderInfo is one entry in the GET /auth/oidc/config reply.
type ProviderInfo struct {
	Issuer   string `json:"issuer"`
	ClientID string `json:"client_id"`
}

// OIDCConfigResponse is the reply for GET /auth/oidc/config.
type OIDCConfigResponse struct {
	Enabled   bool                    `json:"oidc_enabled"`
	Providers map[string]ProviderInfo `json:"providers,omitempty"`
}

// ItemRequest is the payload for creating or updating an item.
type ItemRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Price       float64 `json:"price"`
}

// Item is an owned resource record.
type Item struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Price       float64 `json:"price"`
	OwnerID     int64   `json:"owner_id"`
}
