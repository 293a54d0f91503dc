package api

import (
	"net/http"

	chatapi "github.com/futig/docchat/internal/api/chat"
	"github.com/futig/docchat/internal/api/docs"
	"github.com/futig/docchat/internal/api/middleware"
	"github.com/futig/docchat/internal/config"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// SetupRouter creates and configures the HTTP router
func SetupRouter(chatHandler *chatapi.Handler, cfg *config.Config, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(chimiddleware.Recoverer)   // Recover from panics
	r.Use(chimiddleware.RequestID)   // Add request ID
	r.Use(middleware.Logger(logger)) // Log requests
	if cfg.RequestTimeout > 0 {
		r.Use(chimiddleware.Timeout(cfg.RequestTimeout))
	}

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	// Swagger documentation endpoints
	docs.RegisterRoutes(r)

	// Chat page and API, bound to the browser session cookie
	r.Group(func(r chi.Router) {
		r.Use(middleware.Session(cfg.SessionCfg.CookieName, cfg.SessionCfg.TTL))
		chatapi.RegisterRoutes(r, chatHandler)
	})

	return r
}
