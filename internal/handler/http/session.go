package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/stack501/nodebird-api/internal/domain"
	"github.com/stack501/nodebird-api/internal/service"
	apperrors "github.com/stack501/nodebird-api/pkg/errors"
	"github.com/stack501/nodebird-api/pkg/httputil"
	"github.com/stack501/nodebird-api/pkg/logger"
)

type contextKey string

const (
	identityKey  contextKey = "identity"
	sessionIDKey contextKey = "session_id"
	claimsKey    contextKey = "claims"
)

const alreadyLoggedInMessage = "already logged in"

// SessionConfig controls the session cookie.
type SessionConfig struct {
	CookieName string
	TTL        time.Duration
	Secure     bool
}

func (c SessionConfig) setCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.CookieName,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   int(c.TTL.Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (c SessionConfig) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// identityFromContext returns the logged-in identity, or nil.
func identityFromContext(ctx context.Context) *domain.Identity {
	identity, _ := ctx.Value(identityKey).(*domain.Identity)
	return identity
}

func sessionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDKey).(string)
	return id
}

// LoadSession resolves the session cookie to an identity and stores it in the
// request context. Stale sessions are deleted, their cookie cleared, and the
// request continues anonymously. Any other failure is a 500.
func LoadSession(auth *service.AuthService, cfg SessionConfig, l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(cfg.CookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			identity, err := auth.Session(r.Context(), cookie.Value)
			if errors.Is(err, domain.ErrSessionInvalid) {
				if err := auth.Logout(r.Context(), cookie.Value); err != nil {
					logger.FromContext(r.Context()).WarnContext(r.Context(), "failed to delete stale session",
						slog.String("error", err.Error()),
					)
				}
				cfg.clearCookie(w)
				next.ServeHTTP(w, r)
				return
			}
			if err != nil {
				httputil.WriteError(w, r, fmt.Errorf("load session: %w", err), l)
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, identity)
			ctx = context.WithValue(ctx, sessionIDKey, cookie.Value)
			ctx = logger.WithUserID(ctx, identity.ID)
			ctx = logger.NewContext(ctx, logger.WithContext(ctx, l))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IsLoggedIn rejects anonymous requests with 403 LOGIN_REQUIRED.
func IsLoggedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if identityFromContext(r.Context()) == nil {
			httputil.WriteError(w, r, apperrors.Forbidden("LOGIN_REQUIRED", "login required"), nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// IsNotLoggedIn redirects logged-in callers back to the index page.
func IsNotLoggedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if identityFromContext(r.Context()) != nil {
			httputil.Redirect(w, r, "/", url.Values{"error": {alreadyLoggedInMessage}})
			return
		}
		next.ServeHTTP(w, r)
	})
}
