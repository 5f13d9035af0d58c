package admission

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/stack501/nodebird-api/internal/domain"
	apperrors "github.com/stack501/nodebird-api/pkg/errors"
	"github.com/stack501/nodebird-api/pkg/httputil"
)

// Store holds fixed-window counters.
type Store interface {
	// Increment atomically adds one to the counter for key in the window
	// starting at windowStart and returns the post-increment count.
	Increment(ctx context.Context, key string, windowStart time.Time, window time.Duration) (int64, error)
}

// RateLimitConfig configures a RateLimiter.
type RateLimitConfig struct {
	Window  time.Duration
	Limit   int
	Status  int
	Message string
	// Scope namespaces counters so that separately mounted limiters do not
	// share keys.
	Scope string
}

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed   bool
	Count     int64
	Remaining int
	ResetAt   time.Time
}

// RateLimiter admits at most Limit requests per client key in each fixed
// window. Windows are aligned to multiples of Window and reset at the
// boundary; nothing runs between requests. Build one per route group and
// share it across requests.
type RateLimiter struct {
	store   Store
	cfg     RateLimitConfig
	now     func() time.Time
	keyFunc func(*http.Request) string
	logger  *slog.Logger
}

// RateLimitOption customises a RateLimiter.
type RateLimitOption func(*RateLimiter)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) RateLimitOption {
	return func(l *RateLimiter) { l.now = now }
}

// WithKeyFunc replaces the client key, which defaults to the client IP.
func WithKeyFunc(fn func(*http.Request) string) RateLimitOption {
	return func(l *RateLimiter) { l.keyFunc = fn }
}

// NewRateLimiter creates a fixed-window rate limiter over store.
func NewRateLimiter(store Store, cfg RateLimitConfig, logger *slog.Logger, opts ...RateLimitOption) *RateLimiter {
	if cfg.Status == 0 {
		cfg.Status = http.StatusTooManyRequests
	}
	if cfg.Message == "" {
		cfg.Message = "too many requests"
	}
	l := &RateLimiter{
		store:   store,
		cfg:     cfg,
		now:     time.Now,
		keyFunc: ClientIP,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow counts one request for key in the current window.
func (l *RateLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	now := l.now()
	windowStart := now.Truncate(l.cfg.Window)
	resetAt := windowStart.Add(l.cfg.Window)

	scoped := key
	if l.cfg.Scope != "" {
		scoped = l.cfg.Scope + ":" + key
	}

	count, err := l.store.Increment(ctx, scoped, windowStart, l.cfg.Window)
	if err != nil {
		return Decision{Allowed: true, ResetAt: resetAt}, err
	}

	remaining := int64(l.cfg.Limit) - count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   count <= int64(l.cfg.Limit),
		Count:     count,
		Remaining: int(remaining),
		ResetAt:   resetAt,
	}, nil
}

// Middleware rejects requests over the limit with the configured status and
// message. Store failures admit the request.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := l.keyFunc(r)
		decision, err := l.Allow(r.Context(), key)
		if err != nil {
			admissionDecisions.WithLabelValues("rate_limit", "store_error").Inc()
			l.logger.ErrorContext(r.Context(), "rate limit store unavailable, admitting request",
				slog.String("client_key", key),
				slog.String("error", err.Error()),
			)
			next.ServeHTTP(w, r)
			return
		}

		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(l.cfg.Limit))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))

		if !decision.Allowed {
			admissionDecisions.WithLabelValues("rate_limit", "denied").Inc()
			retryAfter := int(math.Ceil(decision.ResetAt.Sub(l.now()).Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			h.Set("Retry-After", strconv.Itoa(retryAfter))
			l.logger.WarnContext(r.Context(), "rate limit exceeded",
				slog.String("client_key", key),
				slog.String("path", r.URL.Path),
				slog.Int64("count", decision.Count),
			)
			httputil.WriteError(w, r, apperrors.TooManyRequests(l.cfg.Status, l.cfg.Message, domain.ErrRateLimited), l.logger)
			return
		}

		admissionDecisions.WithLabelValues("rate_limit", "allowed").Inc()
		next.ServeHTTP(w, r)
	})
}
