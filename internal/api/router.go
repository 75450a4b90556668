package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"

	"github.com/starford/marksync/internal/syncservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// limiter, if non-nil, throttles manual sync requests.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *syncservice.Service, queue Requester, limiter *rate.Limiter, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc, queue)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.With(RateLimit(limiter)).Post("/sync", h.Sync)
	r.Get("/status", h.Status)
	r.Get("/cycles", h.ListCycles)
	r.Get("/cycles/{id}", h.GetCycle)
	r.Get("/timeline", h.Timeline)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
