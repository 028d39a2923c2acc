package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter assembles the relay's HTTP surface. The CORS middleware answers
// OPTIONS preflights directly, so a preflight never reaches the relay or
// upstream.
func NewRouter(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodPost, http.MethodOptions},
		// The browser consumer sends supabase-style client headers.
		AllowedHeaders: []string{"Authorization", "X-Client-Info", "Apikey", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", healthz)
	r.Post("/chat", h.Chat)

	return r
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
