package http

import (
	"log/slog"
	"net/http"

	"github.com/stack501/nodebird-api/internal/service"
	apperrors "github.com/stack501/nodebird-api/pkg/errors"
	"github.com/stack501/nodebird-api/pkg/httputil"
)

// APIHandler serves the token-protected API.
type APIHandler struct {
	tokens *service.TokenService
	auth   *service.AuthService
	logger *slog.Logger
}

// NewAPIHandler creates a new API handler.
func NewAPIHandler(tokens *service.TokenService, auth *service.AuthService, logger *slog.Logger) *APIHandler {
	return &APIHandler{tokens: tokens, auth: auth, logger: logger}
}

// TokenResponse carries a freshly issued token.
type TokenResponse struct {
	Token string `json:"token"`
}

// Token handles POST /token
func (h *APIHandler) Token(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if err := decodeRequest(w, r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	var (
		token string
		err   error
	)
	switch {
	case req.ClientSecret != "":
		token, err = h.tokens.IssueForClientSecret(r.Context(), req.ClientSecret)
	case req.Email != "" && req.Password != "":
		token, err = h.tokens.IssueForCredentials(r.Context(), req.Email, req.Password)
	default:
		err = apperrors.InvalidInput("clientSecret, or email and password, is required")
	}
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: TokenResponse{Token: token}})
}

// Test handles GET /test
func (h *APIHandler) Test(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: claimsFromContext(r.Context())})
}

// Me handles GET /me
func (h *APIHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, err := h.auth.Identity(r.Context(), claimsFromContext(r.Context()).UserID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: identity})
}
