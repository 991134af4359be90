package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes constructs the HTTP router.
func (a *App) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(a.Logger))
	r.Use(RecoveryMiddleware(a.Logger))

	r.Get("/", a.handleRoot)
	r.Post("/register", a.handleRegister)
	r.Post("/login", a.handleLogin)
	r.Get("/auth/oidc/config", a.handleOIDCConfig)

	r.Group(func(r chi.Router) {
		r.Use(RequireAccount(a.Resolver))

		r.Get("/auth/me", a.handleMe)
		r.Get("/items", a.handleListItems)
		r.Post("/items", a.handleCreateItem)
		r.Get("/items/{id}", a.handleGetItem)
		r.Put("/items/{id}", a.handleUpdateItem)
		r.Delete("/items/{id}", a.handleDeleteItem)
	})

	return r
}
