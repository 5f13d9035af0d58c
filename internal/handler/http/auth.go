package http

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"github.com/stack501/nodebird-api/internal/domain"
	"github.com/stack501/nodebird-api/internal/service"
	apperrors "github.com/stack501/nodebird-api/pkg/errors"
	"github.com/stack501/nodebird-api/pkg/httputil"
)

const (
	oauthStateCookie = "oauth_state"
	oauthStateTTL    = 600
)

// AuthHandler handles the browser sign-up, login and logout flows.
type AuthHandler struct {
	auth    *service.AuthService
	session SessionConfig
	logger  *slog.Logger
}

// NewAuthHandler creates a new auth HTTP handler.
func NewAuthHandler(auth *service.AuthService, session SessionConfig, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, session: session, logger: logger}
}

// Join handles POST /auth/join
func (h *AuthHandler) Join(w http.ResponseWriter, r *http.Request) {
	var req JoinRequest
	if err := decodeRequest(w, r, &req); err != nil {
		httputil.Redirect(w, r, "/join", url.Values{"error": {errorMessage(err)}})
		return
	}

	_, err := h.auth.Join(r.Context(), service.JoinInput{
		Nick:     req.Nick,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrAlreadyExists):
			httputil.Redirect(w, r, "/join", url.Values{"error": {"exist"}})
		case errors.Is(err, apperrors.ErrInvalidInput):
			httputil.Redirect(w, r, "/join", url.Values{"error": {publicMessage(err)}})
		default:
			httputil.WriteError(w, r, err, h.logger)
		}
		return
	}

	httputil.Redirect(w, r, "/", nil)
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeRequest(w, r, &req); err != nil {
		httputil.Redirect(w, r, "/", url.Values{"loginError": {errorMessage(err)}})
		return
	}

	h.login(w, r, domain.ProviderLocal, service.Credentials{Email: req.Email, Password: req.Password})
}

// Logout handles GET /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(r.Context(), sessionIDFromContext(r.Context())); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	h.session.clearCookie(w)
	httputil.Redirect(w, r, "/", nil)
}

// KakaoStart handles GET /auth/kakao
func (h *AuthHandler) KakaoStart(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()
	target, err := h.auth.AuthCodeURL(domain.ProviderKakao, state)
	if err != nil {
		h.providerError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/auth/kakao",
		MaxAge:   oauthStateTTL,
		HttpOnly: true,
		Secure:   h.session.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, target, http.StatusFound)
}

// KakaoCallback handles GET /auth/kakao/callback
func (h *AuthHandler) KakaoCallback(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{Name: oauthStateCookie, Path: "/auth/kakao", MaxAge: -1})

	q := r.URL.Query()
	cookie, err := r.Cookie(oauthStateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != q.Get("state") {
		h.logger.WarnContext(r.Context(), "oauth state mismatch", slog.String("provider", string(domain.ProviderKakao)))
		httputil.Redirect(w, r, "/", url.Values{"loginError": {"invalid login state"}})
		return
	}
	if reason := q.Get("error"); reason != "" {
		h.logger.InfoContext(r.Context(), "federated login declined",
			slog.String("provider", string(domain.ProviderKakao)),
			slog.String("reason", reason),
		)
		httputil.Redirect(w, r, "/", url.Values{"loginError": {"federated login failed"}})
		return
	}

	h.login(w, r, domain.ProviderKakao, service.Credentials{Code: q.Get("code")})
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request, provider domain.Provider, creds service.Credentials) {
	_, sessionID, err := h.auth.Login(r.Context(), provider, creds)
	if err != nil {
		if errors.Is(err, domain.ErrProviderDisabled) {
			h.providerError(w, r, err)
			return
		}
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) && appErr.Status == http.StatusUnauthorized {
			httputil.Redirect(w, r, "/", url.Values{"loginError": {appErr.Message}})
			return
		}
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	h.session.setCookie(w, sessionID)
	httputil.Redirect(w, r, "/", nil)
}

func (h *AuthHandler) providerError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, domain.ErrProviderDisabled) {
		httputil.WriteError(w, r, apperrors.NotFound("login provider", string(domain.ProviderKakao)), h.logger)
		return
	}
	httputil.WriteError(w, r, err, h.logger)
}

// publicMessage returns the client-facing message of an AppError.
func publicMessage(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "invalid input"
}
