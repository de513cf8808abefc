package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/m3connect/portal/internal/config"
	"github.com/m3connect/portal/internal/http/handlers"
	"github.com/m3connect/portal/internal/middleware"
	"github.com/m3connect/portal/internal/obs"
	"github.com/m3connect/portal/internal/storage"
	"github.com/m3connect/portal/internal/visitor"
)

// Deps are the collaborators the routes are built from.
type Deps struct {
	Visitors *visitor.Registry
	Profiles storage.ProfileStore
	Content  storage.ContentStore
	Leads    storage.LeadStore
	Checks   map[string]handlers.Check
}

// Server wraps an http.Server with configured routes.
type Server struct {
	inner *http.Server
}

// New wires up middleware, routes, and returns a ready server.
func New(cfg config.Config, deps Deps) *Server {
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           Routes(cfg, deps),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return &Server{inner: httpServer}
}

// Routes builds the full handler tree.
func Routes(cfg config.Config, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Logging, obs.Instrument)

	handlers.NewHealthHandler(time.Now(), deps.Checks).Register(r)
	r.Method(http.MethodGet, "/metrics", obs.Handler())

	limiter := middleware.NewRateLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst, middleware.TrustForwardedFor(cfg.TrustProxy))
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Visitors(deps.Visitors, cfg.CookieSecure))

		handlers.NewSessionHandler().Register(r)
		handlers.NewProfileHandler().Register(r)
		handlers.NewRecoveryHandler().Register(r)
		handlers.NewContentHandler(deps.Content).Register(r)
		handlers.NewAdminHandler(deps.Profiles, deps.Leads).Register(r)

		r.Group(func(r chi.Router) {
			r.Use(limiter.Middleware)
			handlers.NewAuthHandler(cfg.RecoveryRedirectURL()).Register(r)
			handlers.NewLeadHandler(deps.Leads).Register(r)
		})
	})

	return middleware.CORS(cfg.CORSOrigins, r)
}

// Start begins serving HTTP traffic.
func (s *Server) Start() error {
	return s.inner.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.inner.Shutdown(ctx)
}
