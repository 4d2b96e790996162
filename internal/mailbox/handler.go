package mailbox

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"

	"go.uber.org/zap"

	"github.com/hushbox/service-api/internal/session"
	"github.com/hushbox/service-api/pkg/utilities"
)

// Handler exposes HTTP endpoints for mailbox operations.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// SendRequest request body for the anonymous send endpoint.
type SendRequest struct {
	Content string `json:"content"`
}

func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")
	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utilities.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	_, err := h.svc.Send(r.Context(), username, req.Content)
	switch {
	case err == nil:
		utilities.WriteSuccess(w, http.StatusOK, "Message sent successfully", nil)
	case errors.Is(err, ErrValidation):
		utilities.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrTargetNotFound):
		utilities.WriteError(w, http.StatusNotFound, "Account not found")
	case errors.Is(err, ErrNotAccepting):
		utilities.WriteError(w, http.StatusForbidden, "This account is not accepting messages")
	default:
		h.logger.Errorw("send failed", "target", username, "err", err)
		utilities.WriteError(w, http.StatusInternalServerError, "Error sending message")
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := session.FromContext(r.Context())
	if !ok {
		utilities.WriteError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	msgs, err := h.svc.List(r.Context(), p.ID)
	if err != nil {
		h.logger.Errorw("list failed", "account", p.ID, "err", err)
		utilities.WriteError(w, http.StatusInternalServerError, "Error fetching messages")
		return
	}
	utilities.WriteSuccess(w, http.StatusOK, "Messages fetched", map[string]any{"messages": msgs})
}

// message ids are snowflake or ksuid strings
var messageIDRe = regexp.MustCompile(`^[A-Za-z0-9]{1,64}$`)

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	p, ok := session.FromContext(r.Context())
	if !ok {
		utilities.WriteError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	id := r.PathValue("id")
	if !messageIDRe.MatchString(id) {
		utilities.WriteError(w, http.StatusBadRequest, "Invalid message ID")
		return
	}
	err := h.svc.Delete(r.Context(), p.ID, id)
	switch {
	case err == nil:
		utilities.WriteSuccess(w, http.StatusOK, "Message deleted successfully", nil)
	case errors.Is(err, ErrMessageNotFound):
		utilities.WriteError(w, http.StatusNotFound, "Message not found or already deleted")
	default:
		h.logger.Errorw("delete failed", "account", p.ID, "message", id, "err", err)
		utilities.WriteError(w, http.StatusInternalServerError, "Error deleting message")
	}
}
