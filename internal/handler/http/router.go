package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stack501/nodebird-api/internal/admission"
	"github.com/stack501/nodebird-api/internal/service"
	"github.com/stack501/nodebird-api/pkg/health"
	"github.com/stack501/nodebird-api/pkg/middleware"
)

const serviceName = "nodebird-api"

// Services groups the application services the router dispatches to.
type Services struct {
	Auth    *service.AuthService
	Tokens  *service.TokenService
	Domains *service.DomainService
	Follows *service.FollowService
}

// Admission groups the gates in front of the API and credential endpoints.
// Each is built once and shared by every request.
type Admission struct {
	Gate     *admission.DomainGate
	Limiter  *admission.RateLimiter
	Throttle *admission.Throttle
}

// RouterConfig holds transport settings.
type RouterConfig struct {
	Session      SessionConfig
	V1Deprecated bool
}

// NewRouter creates a chi router with the browser, API and operational
// routes registered.
func NewRouter(
	svc Services,
	gates Admission,
	healthHandler *health.Handler,
	cfg RouterConfig,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing(serviceName))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics(serviceName))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	authHandler := NewAuthHandler(svc.Auth, cfg.Session, logger)
	pageHandler := NewPageHandler(svc.Domains, logger)
	domainHandler := NewDomainHandler(svc.Domains, logger)
	followHandler := NewFollowHandler(svc.Follows, logger)
	apiHandler := NewAPIHandler(svc.Tokens, svc.Auth, logger)

	// Browser routes (session cookie)
	r.Group(func(r chi.Router) {
		r.Use(LoadSession(svc.Auth, cfg.Session, logger))

		r.Get("/", pageHandler.Index)

		r.Route("/auth", func(r chi.Router) {
			r.With(IsNotLoggedIn, gates.Throttle.Middleware).Post("/join", authHandler.Join)
			r.With(IsNotLoggedIn, gates.Throttle.Middleware).Post("/login", authHandler.Login)
			r.With(IsLoggedIn).Get("/logout", authHandler.Logout)
			r.With(IsNotLoggedIn).Get("/kakao", authHandler.KakaoStart)
			r.Get("/kakao/callback", authHandler.KakaoCallback)
		})

		r.With(IsLoggedIn).Post("/domain", domainHandler.Register)
		r.With(IsLoggedIn).Post("/user/{id}/follow", followHandler.Follow)
	})

	// Token API, mounted once per version.
	api := func(r chi.Router) {
		r.Use(gates.Gate.Middleware)
		r.Use(gates.Limiter.Middleware)

		r.With(gates.Throttle.Middleware).Post("/token", apiHandler.Token)
		r.With(VerifyToken(svc.Tokens)).Get("/test", apiHandler.Test)
		r.With(VerifyToken(svc.Tokens)).Get("/me", apiHandler.Me)
	}

	if cfg.V1Deprecated {
		r.Route("/v1", func(r chi.Router) {
			r.Use(gates.Gate.Middleware)
			r.HandleFunc("/*", Deprecated)
		})
	} else {
		r.Route("/v1", api)
	}
	r.Route("/v2", api)

	return r
}
