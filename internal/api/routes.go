package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter configures the chi router for the RPC boundary.
func NewRouter(h *Handlers, log *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))

	r.Route("/api", func(r chi.Router) {
		r.Post("/scrape/start", h.Start)
		r.Get("/scrape/status", h.GetStatus)
		r.Get("/scrape/history", h.GetHistory)
		r.Get("/properties", h.GetProperties)
		r.Post("/cache/clear", h.ClearCache)
		r.Post("/data/import", h.ImportJSON)
		r.Get("/data/export", h.ExportJSON)
		r.Get("/data/info", h.GetDataInfo)
	})

	return r
}

func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			log.Debug("request handled.", slog.String("method", r.Method),
				slog.String("path", r.URL.Path), slog.String("took", time.Since(start).String()))
		})
	}
}
