package http

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/stack501/nodebird-api/internal/domain"
	"github.com/stack501/nodebird-api/internal/service"
	apperrors "github.com/stack501/nodebird-api/pkg/errors"
	"github.com/stack501/nodebird-api/pkg/httputil"
)

// DomainHandler registers API client domains.
type DomainHandler struct {
	domains *service.DomainService
	logger  *slog.Logger
}

// NewDomainHandler creates a new domain handler.
func NewDomainHandler(domains *service.DomainService, logger *slog.Logger) *DomainHandler {
	return &DomainHandler{domains: domains, logger: logger}
}

// Register handles POST /domain
func (h *DomainHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req DomainRequest
	if err := decodeRequest(w, r, &req); err != nil {
		httputil.Redirect(w, r, "/", url.Values{"error": {errorMessage(err)}})
		return
	}

	identity := identityFromContext(r.Context())
	_, err := h.domains.Register(r.Context(), identity.ID, req.Host, domain.DomainType(req.Type))
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrAlreadyExists):
			httputil.Redirect(w, r, "/", url.Values{"error": {"domain-exist"}})
		case errors.Is(err, apperrors.ErrInvalidInput):
			httputil.Redirect(w, r, "/", url.Values{"error": {publicMessage(err)}})
		default:
			httputil.WriteError(w, r, err, h.logger)
		}
		return
	}

	httputil.Redirect(w, r, "/", nil)
}
