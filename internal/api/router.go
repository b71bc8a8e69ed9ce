package api

import (
	"context"
	"net/http"
)

// WelcomeMessage is returned by GET /.
const WelcomeMessage = "Welcome to the items API"

// Pinger reports whether the backing database is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(items ItemStore, db Pinger) http.Handler {
	mux := http.NewServeMux()

	itemsHandler := &ItemsHandler{Store: items}
	healthHandler := &HealthHandler{DB: db}

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusOK, map[string]string{"message": WelcomeMessage})
	})
	mux.HandleFunc("GET /healthz", healthHandler.Check)

	mux.HandleFunc("GET /items", itemsHandler.List)
	mux.HandleFunc("POST /items", itemsHandler.Create)
	mux.HandleFunc("GET /items/{id}", itemsHandler.Get)
	mux.HandleFunc("PUT /items/{id}", itemsHandler.Update)
	mux.HandleFunc("DELETE /items/{id}", itemsHandler.Delete)

	return mux
}
