package admission

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/stack501/nodebird-api/internal/domain"
	apperrors "github.com/stack501/nodebird-api/pkg/errors"
	"github.com/stack501/nodebird-api/pkg/httputil"
)

// DomainLookup reports whether a normalized host is registered.
type DomainLookup interface {
	ExistsByHost(ctx context.Context, host string) (bool, error)
}

var (
	allowedMethods = strings.Join([]string{
		http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions,
	}, ", ")
	allowedHeaders = "Authorization, Content-Type, X-Correlation-ID"
)

// DomainGate grants credentialed CORS access to origins whose host is in the
// domain registry. The registry is consulted on every request, so newly
// registered domains take effect immediately.
type DomainGate struct {
	lookup DomainLookup
	logger *slog.Logger
}

// NewDomainGate creates a CORS gate backed by lookup.
func NewDomainGate(lookup DomainLookup, logger *slog.Logger) *DomainGate {
	return &DomainGate{lookup: lookup, logger: logger}
}

// Allowed reports whether origin may make credentialed cross-origin calls.
// Lookup failures are logged and count as no grant.
func (g *DomainGate) Allowed(ctx context.Context, origin string) bool {
	host := domain.OriginHost(origin)
	if host == "" {
		return false
	}

	ok, err := g.lookup.ExistsByHost(ctx, host)
	if err != nil {
		g.logger.ErrorContext(ctx, "domain lookup failed, denying cors grant",
			slog.String("host", host),
			slog.String("error", err.Error()),
		)
		return false
	}
	return ok
}

// Middleware applies the grant. Requests from unregistered origins continue
// without CORS headers, except preflights, which are refused.
func (g *DomainGate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Vary", "Origin")

		origin := r.Header.Get("Origin")
		preflight := r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""

		if origin == "" {
			next.ServeHTTP(w, r)
			return
		}

		if !g.Allowed(r.Context(), origin) {
			admissionDecisions.WithLabelValues("cors", "denied").Inc()
			if preflight {
				httputil.WriteError(w, r, &apperrors.AppError{
					Code:    "ORIGIN_NOT_ALLOWED",
					Message: "origin is not registered",
					Status:  http.StatusForbidden,
					Err:     domain.ErrOriginNotAllowed,
				}, g.logger)
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		admissionDecisions.WithLabelValues("cors", "granted").Inc()
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Credentials", "true")

		if preflight {
			h.Set("Access-Control-Allow-Methods", allowedMethods)
			h.Set("Access-Control-Allow-Headers", allowedHeaders)
			h.Set("Access-Control-Max-Age", "600")
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
