// Package rpcserver assembles the registry's HTTP+JSON RPC surface: chi
// router, ambient middleware, health probes, and the domain handler's
// routes (spec.md §4.7). Grounded on the teacher's apps/api/main.go router
// wiring, trimmed of multi-tenant/auth machinery.
package rpcserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/cdl-project/schema-registry/domains/schema-registry/be/handler"
	platformlogging "github.com/cdl-project/schema-registry/platform/go/logging"
	platformmiddleware "github.com/cdl-project/schema-registry/platform/go/middleware"
)

// requestTimeout bounds every RPC handler per spec.md §5's suspension-point
// model: no user-visible call blocks indefinitely.
const requestTimeout = 30 * time.Second

// NewRouter builds the full HTTP handler for the registry service.
func NewRouter(h *handler.Handler, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(platformlogging.RequestLogger(logger))
	r.Use(platformmiddleware.DefaultCORS())

	r.Get("/healthz", healthz)
	r.Get("/readyz", healthz)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))
		h.Routes(r)
	})

	// WatchAllSchemaUpdates is a long-lived stream; it is intentionally
	// outside the request-timeout group.
	h.WatchRoute(r)

	return r
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
