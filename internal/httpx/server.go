package httpx

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Initializer is satisfied by every orders.Store.
type Initializer interface {
	Initialize(ctx context.Context) error
}

func NewRouter(store Initializer) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := store.Initialize(r.Context()); err != nil {
			log.Printf("readyz: %v", err)
			writeError(w, http.StatusServiceUnavailable, "Database not ready")
			return
		}
		_, _ = w.Write([]byte("ready"))
	})
	return r
}

// RequireStore makes sure the store finished initializing before a request touches it.
// Initialization is retried on the next request after a failure.
func RequireStore(store Initializer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := store.Initialize(r.Context()); err != nil {
				log.Printf("store init: %v", err)
				writeError(w, http.StatusInternalServerError, "Database unavailable")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Mount wires the order routes behind the store guard.
func Mount(r chi.Router, store Initializer, h *OrdersHandler) {
	r.Group(func(r chi.Router) {
		r.Use(RequireStore(store))
		h.Register(r)
	})
}
