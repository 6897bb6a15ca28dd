// Package http is the transport layer between the desktop shell and the
// entitlement engine. The server listens on loopback only; the shell is the
// sole client.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers bundles the handlers the router mounts
type Handlers struct {
	License *LicenseHandler
	Auth    *AuthHandler
	Modules *ModulesHandler
}

// NewRouter assembles the API router: request ID first, then logging and
// recovery, then the JSON API under /api. Health and metrics sit outside
// the API group.
func NewRouter(h Handlers, readTimeout time.Duration, logger *slog.Logger) chi.Router {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(StructuredLogger(logger))
	r.Use(Recoverer(logger))

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Use(middleware.Timeout(readTimeout))

		r.Mount("/license", h.License.Routes())
		r.Mount("/auth", h.Auth.Routes())
		r.Mount("/modules", h.Modules.Routes())
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}
