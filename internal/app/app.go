package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/stack501/nodebird-api/internal/admission"
	"github.com/stack501/nodebird-api/internal/auth"
	"github.com/stack501/nodebird-api/internal/config"
	"github.com/stack501/nodebird-api/internal/event"
	handler "github.com/stack501/nodebird-api/internal/handler/http"
	"github.com/stack501/nodebird-api/internal/repository/postgres"
	redisrepo "github.com/stack501/nodebird-api/internal/repository/redis"
	"github.com/stack501/nodebird-api/internal/service"
	"github.com/stack501/nodebird-api/migrations"
	"github.com/stack501/nodebird-api/pkg/database"
	"github.com/stack501/nodebird-api/pkg/health"
	"github.com/stack501/nodebird-api/pkg/httpclient"
	pkgkafka "github.com/stack501/nodebird-api/pkg/kafka"
	"github.com/stack501/nodebird-api/pkg/tracing"
)

const (
	serviceName    = "nodebird-api"
	serviceVersion = "0.1.0"
)

// App wires together all dependencies and runs the nodebird API.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *goredis.Client
	producer       *pkgkafka.Producer
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// Initialize PostgreSQL connection pool.
	pool, err := database.NewPostgresPool(ctx, cfg.Postgres(), logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	if err := database.RegisterPoolMetrics(pool, serviceName); err != nil {
		logger.Warn("pool metrics not registered", slog.String("error", err.Error()))
	}

	// Run database migrations.
	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	// Configure slow query logging.
	if cfg.SlowQueryThreshold > 0 {
		database.SetSlowQueryLogging(cfg.SlowQueryThreshold, logger)
	}

	// Initialize Redis for sessions and shared rate-limit counters.
	redisClient, err := database.NewRedisClient(ctx, cfg.Redis())
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info("connected to Redis", slog.String("addr", cfg.Redis().Addr()))

	// Initialize Kafka producer when enabled.
	var (
		producer *pkgkafka.Producer
		events   service.EventPublisher = event.Noop{}
	)
	if cfg.KafkaEnabled {
		producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		events = event.NewProducer(producer, logger)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}

	// Build the dependency graph.
	userRepo := postgres.NewUserRepository(pool)
	followRepo := postgres.NewFollowRepository(pool)
	domainRepo := postgres.NewDomainRepository(pool)
	sessionStore := redisrepo.NewSessionStore(redisClient)

	localVerifier, err := service.NewLocalVerifier(userRepo, cfg.BcryptCost, logger)
	if err != nil {
		_ = redisClient.Close()
		pool.Close()
		return nil, fmt.Errorf("create local verifier: %w", err)
	}
	verifiers := []service.Verifier{localVerifier}

	if cfg.KakaoEnabled() {
		kakaoHTTP := httpclient.NewCircuitBreakerClient(
			httpclient.New(httpclient.DefaultConfig()),
			httpclient.DefaultCircuitBreakerConfig("kakao"),
			logger,
		)
		kakao := auth.NewKakaoProvider(auth.KakaoConfig{
			ClientID:     cfg.KakaoClientID,
			ClientSecret: cfg.KakaoClientSecret,
			RedirectURL:  cfg.KakaoRedirectURL,
			AuthURL:      cfg.KakaoAuthURL,
			APIURL:       cfg.KakaoAPIURL,
		}, kakaoHTTP)
		resolver := service.NewFederatedResolver(userRepo, events, logger)
		verifiers = append(verifiers, service.NewFederatedVerifier(kakao, resolver, logger))
		logger.Info("kakao login enabled")
	}

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer)
	sessionCodec := service.NewSessionCodec(userRepo, followRepo, sessionStore, cfg.SessionTTL)

	services := handler.Services{
		Auth:    service.NewAuthService(userRepo, sessionCodec, events, cfg.BcryptCost, logger, verifiers...),
		Tokens:  service.NewTokenService(jwtManager, domainRepo, userRepo, localVerifier, cfg.JWTTTL, logger),
		Domains: service.NewDomainService(domainRepo, events, logger),
		Follows: service.NewFollowService(followRepo, logger),
	}

	// Admission gates are built once and shared by every request.
	var counters admission.Store = redisrepo.NewRateLimitStore(redisClient)
	if cfg.RateLimitBackend == "memory" {
		counters = admission.NewMemoryStore()
	}
	proxies, err := admission.NewProxyResolver(cfg.TrustedProxies)
	if err != nil {
		_ = redisClient.Close()
		pool.Close()
		return nil, fmt.Errorf("parse trusted proxies: %w", err)
	}
	gates := handler.Admission{
		Gate: admission.NewDomainGate(domainRepo, logger),
		Limiter: admission.NewRateLimiter(counters, admission.RateLimitConfig{
			Window:  cfg.RateLimitWindow,
			Limit:   cfg.RateLimitMax,
			Status:  cfg.RateLimitStatus,
			Message: cfg.RateLimitMessage,
			Scope:   "api",
		}, logger, admission.WithKeyFunc(proxies.ClientIP)),
		Throttle: admission.NewThrottle(cfg.AuthThrottleRPS, cfg.AuthThrottleBurst, logger,
			admission.WithThrottleKeyFunc(proxies.ClientIP)),
	}

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.RegisterCritical("redis", func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})
	if producer != nil {
		healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
			return producer.Ping(ctx)
		})
	}

	// HTTP router.
	router := handler.NewRouter(services, gates, healthHandler, handler.RouterConfig{
		Session: handler.SessionConfig{
			CookieName: cfg.SessionCookieName,
			TTL:        cfg.SessionTTL,
			Secure:     cfg.SessionCookieSecure,
		},
		V1Deprecated: cfg.APIV1Deprecated,
	}, logger)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		redis:          redisClient,
		producer:       producer,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in the correct order:
// 1. HTTP server (drain in-flight requests)
// 2. Tracer (flush pending spans from drained requests)
// 3. Kafka producer
// 4. Redis client
// 5. PostgreSQL pool
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if err := a.redis.Close(); err != nil {
		a.logger.Error("redis close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	a.pool.Close()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
