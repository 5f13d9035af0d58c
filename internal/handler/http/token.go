package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/stack501/nodebird-api/internal/auth"
	"github.com/stack501/nodebird-api/internal/service"
	apperrors "github.com/stack501/nodebird-api/pkg/errors"
	"github.com/stack501/nodebird-api/pkg/httputil"
	"github.com/stack501/nodebird-api/pkg/logger"
)

func claimsFromContext(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsKey).(*auth.Claims)
	return claims
}

// bearerToken accepts both a raw token and "Bearer <token>".
func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return header
}

// VerifyToken requires a valid API token. Missing or invalid tokens get 401
// TOKEN_INVALID and expired ones 419 TOKEN_EXPIRED.
func VerifyToken(tokens *service.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				httputil.WriteError(w, r, apperrors.Unauthorized("TOKEN_INVALID", "invalid token", nil), nil)
				return
			}

			claims, err := tokens.Verify(raw)
			if err != nil {
				httputil.WriteError(w, r, err, nil)
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			ctx = logger.WithUserID(ctx, claims.UserID)
			ctx = logger.NewContext(ctx, logger.FromContext(r.Context()).With(slog.String("user_id", claims.UserID)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Deprecated answers 410 for a retired API version.
func Deprecated(w http.ResponseWriter, r *http.Request) {
	httputil.WriteError(w, r, apperrors.Gone("a new API version is available, use /v2"), nil)
}
