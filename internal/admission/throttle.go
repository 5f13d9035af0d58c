package admission

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	apperrors "github.com/stack501/nodebird-api/pkg/errors"
	"github.com/stack501/nodebird-api/pkg/httputil"
)

// visitor tracks a token bucket per client IP.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Throttle is a per-IP token bucket placed in front of credential endpoints.
// Visitors idle longer than the TTL are evicted during later accesses.
type Throttle struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	rps       rate.Limit
	burst     int
	ttl       time.Duration
	lastSweep time.Time
	nowFunc   func() time.Time
	keyFunc   func(*http.Request) string
	logger    *slog.Logger
}

// ThrottleOption customises a Throttle.
type ThrottleOption func(*Throttle)

// WithThrottleKeyFunc replaces the client key, which defaults to ClientIP.
func WithThrottleKeyFunc(fn func(*http.Request) string) ThrottleOption {
	return func(t *Throttle) { t.keyFunc = fn }
}

// NewThrottle creates a throttle allowing rps requests per second per IP with
// the given burst.
func NewThrottle(rps float64, burst int, logger *slog.Logger, opts ...ThrottleOption) *Throttle {
	t := &Throttle{
		visitors: make(map[string]*visitor),
		rps:      rate.Limit(rps),
		burst:    burst,
		ttl:      3 * time.Minute,
		nowFunc:  time.Now,
		keyFunc:  ClientIP,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// allow reports whether ip may proceed now.
func (t *Throttle) allow(ip string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.nowFunc()
	if now.Sub(t.lastSweep) > t.ttl {
		for k, v := range t.visitors {
			if now.Sub(v.lastSeen) > t.ttl {
				delete(t.visitors, k)
			}
		}
		t.lastSweep = now
	}

	v, ok := t.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(t.rps, t.burst)}
		t.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// len returns the number of tracked visitors.
func (t *Throttle) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.visitors)
}

// Middleware answers 429 once a client exhausts its bucket.
func (t *Throttle) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := t.keyFunc(r)
		if !t.allow(ip) {
			admissionDecisions.WithLabelValues("throttle", "denied").Inc()
			t.logger.WarnContext(r.Context(), "auth throttle exceeded",
				slog.String("ip", ip),
				slog.String("path", r.URL.Path),
			)
			w.Header().Set("Retry-After", "1")
			httputil.WriteError(w, r, apperrors.TooManyRequests(http.StatusTooManyRequests, "too many attempts, slow down", nil), t.logger)
			return
		}
		next.ServeHTTP(w, r)
	})
}
