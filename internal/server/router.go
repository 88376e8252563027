// Package server assembles the REST API: routing, middleware and the HTTP server.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/kennarddh/asset-management-sub000/internal/logging"
	"github.com/kennarddh/asset-management-sub000/internal/platform/rbac"
	"github.com/kennarddh/asset-management-sub000/internal/server/handler"
	"github.com/kennarddh/asset-management-sub000/internal/server/middleware"
	"github.com/kennarddh/asset-management-sub000/internal/telemetry/metrics"
)

// AuthService is what the router needs from the session manager.
type AuthService interface {
	handler.AuthService
	middleware.Authenticator
}

// Deps holds the services behind the API.
type Deps struct {
	Auth   AuthService
	Orders handler.OrderService
	// Assets backs GET /api/v1/assets. If nil, the route is not registered.
	Assets     handler.AssetLister
	Authorizer rbac.Authorizer
	// Health serves GET /health. If nil, /health always answers 200.
	Health http.Handler
	// SecureCookie marks the refresh cookie Secure; set outside development.
	SecureCookie bool
	// Metrics, when set, instruments every route and serves GET /metrics.
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

// NewRouter returns the API router.
//
//	GET    /health
//	GET    /metrics                             (when Deps.Metrics is set)
//	POST   /api/v1/auth/login
//	POST   /api/v1/auth/refresh
//	POST   /api/v1/auth/logout                  (bearer)
//	GET    /api/v1/auth/sessions                (bearer)
//	DELETE /api/v1/auth/sessions/{id}           (bearer)
//	POST   /api/v1/auth/sessions/revoke-all     (bearer)
//	GET    /api/v1/assets                       (bearer)
//	POST   /api/v1/orders                       (bearer)
//	GET    /api/v1/orders                       (bearer)
//	GET    /api/v1/orders/{id}                  (bearer)
//	POST   /api/v1/orders/{id}/approve|reject|cancel|return (bearer)
func NewRouter(deps Deps) http.Handler {
	logger := logging.OrNop(deps.Logger)
	authz := deps.Authorizer
	if authz == nil {
		authz = rbac.NewPolicyAuthorizer(nil)
	}
	authHandler := handler.NewAuthHandler(deps.Auth, authz, deps.SecureCookie, logger)
	orderHandler := handler.NewOrderHandler(deps.Orders, authz, logger)
	requireAuth := middleware.Auth(deps.Auth, logger)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.ClientIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimiddleware.Recoverer)
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	health := deps.Health
	if health == nil {
		health = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	}
	r.Method(http.MethodGet, "/health", health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)
			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Post("/logout", authHandler.Logout)
				r.Get("/sessions", authHandler.ListSessions)
				r.Post("/sessions/revoke-all", authHandler.RevokeAll)
				r.Delete("/sessions/{id}", authHandler.RevokeSession)
			})
		})
		if deps.Assets != nil {
			assetHandler := handler.NewAssetHandler(deps.Assets, logger)
			r.With(requireAuth).Get("/assets", assetHandler.List)
		}
		r.Route("/orders", func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/", orderHandler.Create)
			r.Get("/", orderHandler.List)
			r.Get("/{id}", orderHandler.Get)
			r.Post("/{id}/approve", orderHandler.Approve)
			r.Post("/{id}/reject", orderHandler.Reject)
			r.Post("/{id}/cancel", orderHandler.Cancel)
			r.Post("/{id}/return", orderHandler.Return)
		})
	})
	return r
}

// NewHTTPServer wraps h with OpenTelemetry instrumentation and returns a server listening on addr.
func NewHTTPServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           otelhttp.NewHandler(h, "http.server"),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
