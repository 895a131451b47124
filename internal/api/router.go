// Package api assembles the HTTP surface: routes, per-route auth and rate
// limits, and the global middleware chain.
package api

import (
	"net/http"
	"time"

	"github.com/eventeye/server/internal/api/handlers"
	"github.com/eventeye/server/internal/api/middleware"
	"github.com/eventeye/server/internal/audit"
	"github.com/eventeye/server/internal/auth"
	"github.com/eventeye/server/internal/config"
	"github.com/eventeye/server/internal/domain/certificates"
	"github.com/eventeye/server/internal/domain/events"
	"github.com/eventeye/server/internal/domain/stats"
	"github.com/eventeye/server/internal/domain/users"
	"github.com/eventeye/server/internal/domain/verification"
	"github.com/eventeye/server/internal/metrics"
	"github.com/eventeye/server/internal/storage/kv"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Dependencies are the services the router exposes.
type Dependencies struct {
	Config  config.Config
	Logger  zerolog.Logger
	Store   kv.Store
	Backend string
	Pool    *pgxpool.Pool

	Events       *events.Service
	Certificates *certificates.Service
	Verification *verification.Service
	Stats        *stats.Service
	Users        *users.Service
	Tokens       *auth.JWTManager

	Version   string
	GitCommit string
	BuildDate string
	StartTime time.Time
}

// Router is the assembled HTTP handler. Close releases the rate limiter.
type Router struct {
	Handler http.Handler
	limiter *middleware.RateLimiter
}

func (r *Router) Close() {
	r.limiter.Stop()
}

func NewRouter(deps Dependencies) *Router {
	env := deps.Config.Environment
	limiter := middleware.NewRateLimiter(deps.Config.RateLimit)

	eventsHandler := handlers.NewEventsHandler(deps.Events, deps.Stats, env)
	certificatesHandler := handlers.NewCertificatesHandler(deps.Certificates, env)
	verifyHandler := handlers.NewVerifyHandler(deps.Verification, env)
	accountsHandler := handlers.NewAccountsHandler(deps.Users, deps.Tokens, env)
	statsHandler := handlers.NewStatsHandler(deps.Stats, deps.Version, deps.GitCommit, deps.StartTime, env)
	health := handlers.NewHealthChecker(deps.Store, deps.Backend, deps.Pool, deps.Config.Jobs.Enabled, deps.Version, deps.GitCommit)

	auditLog := audit.NewLoggerWithZerolog(deps.Logger)
	eventsHandler.Audit = auditLog
	certificatesHandler.Audit = auditLog
	accountsHandler.Audit = auditLog

	anyCaller := middleware.RequireAuth(deps.Tokens, env)
	organizer := middleware.RequireAuth(deps.Tokens, env, auth.RoleOrganizer)

	public := func(h http.HandlerFunc) http.Handler {
		return chain(h, limiter.Limit(middleware.TierPublic), anyCaller)
	}
	login := func(h http.HandlerFunc) http.Handler {
		return chain(h, limiter.Limit(middleware.TierLogin), anyCaller, middleware.PublicRequestSize())
	}
	organizerOnly := func(h http.HandlerFunc, extra ...func(http.Handler) http.Handler) http.Handler {
		mws := append([]func(http.Handler) http.Handler{limiter.Limit(middleware.TierAuthenticated), organizer}, extra...)
		return chain(h, mws...)
	}

	mux := http.NewServeMux()

	mux.Handle("GET /healthz", handlers.Healthz())
	mux.Handle("GET /readyz", health.Readyz())
	mux.Handle("GET /health", health.Health())
	mux.Handle("GET /version", VersionHandler(BuildInfo{Version: deps.Version, GitCommit: deps.GitCommit, BuildDate: deps.BuildDate}, deps.Backend, deps.StartTime))
	mux.Handle("GET /metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	mux.Handle("POST /signup", login(accountsHandler.Signup))
	mux.Handle("POST /login", login(accountsHandler.Login))
	mux.Handle("GET /verify/{code}", public(verifyHandler.Verify))

	mux.Handle("GET /events", organizerOnly(eventsHandler.List))
	mux.Handle("POST /events", organizerOnly(eventsHandler.Create, middleware.PublicRequestSize()))
	mux.Handle("GET /events/{id}", organizerOnly(eventsHandler.Get))
	mux.Handle("GET /certificates/{eventId}", organizerOnly(certificatesHandler.List))
	mux.Handle("POST /generate-certificates", organizerOnly(certificatesHandler.Generate, middleware.IssuanceRequestSize()))
	mux.Handle("GET /stats", organizerOnly(statsHandler.GetStats))

	handler := chain(mux,
		middleware.CorrelationID(deps.Logger),
		middleware.Tracing,
		middleware.RequestLogging,
		metrics.HTTPMiddleware,
		middleware.SecurityHeaders(env == "production"),
		middleware.CORS(deps.Config.CORS, deps.Logger),
	)

	return &Router{Handler: handler, limiter: limiter}
}

// chain wraps h so that the first middleware runs first.
func chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
