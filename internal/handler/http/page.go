package http

import (
	"log/slog"
	"net/http"

	"github.com/stack501/nodebird-api/internal/domain"
	"github.com/stack501/nodebird-api/internal/service"
	"github.com/stack501/nodebird-api/pkg/httputil"
)

// PageHandler serves the index data for browser clients.
type PageHandler struct {
	domains *service.DomainService
	logger  *slog.Logger
}

// NewPageHandler creates a new page handler.
func NewPageHandler(domains *service.DomainService, logger *slog.Logger) *PageHandler {
	return &PageHandler{domains: domains, logger: logger}
}

// IndexResponse is the body of GET /.
type IndexResponse struct {
	User    *domain.Identity `json:"user"`
	Domains []domain.Domain  `json:"domains"`
}

// Index handles GET /
func (h *PageHandler) Index(w http.ResponseWriter, r *http.Request) {
	resp := IndexResponse{
		User:    identityFromContext(r.Context()),
		Domains: []domain.Domain{},
	}

	if resp.User != nil {
		domains, err := h.domains.ListByOwner(r.Context(), resp.User.ID)
		if err != nil {
			httputil.WriteError(w, r, err, h.logger)
			return
		}
		if domains != nil {
			resp.Domains = domains
		}
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: resp})
}
