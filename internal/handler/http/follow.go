package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stack501/nodebird-api/internal/service"
	"github.com/stack501/nodebird-api/pkg/httputil"
)

// FollowHandler edits the logged-in user's follow graph.
type FollowHandler struct {
	follows *service.FollowService
	logger  *slog.Logger
}

// NewFollowHandler creates a new follow handler.
func NewFollowHandler(follows *service.FollowService, logger *slog.Logger) *FollowHandler {
	return &FollowHandler{follows: follows, logger: logger}
}

// Follow handles POST /user/{id}/follow
func (h *FollowHandler) Follow(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r.Context())
	if err := h.follows.Follow(r.Context(), identity.ID, chi.URLParam(r, "id")); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: "success"})
}
