package account

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/hushbox/service-api/internal/session"
	"github.com/hushbox/service-api/pkg/utilities"
)

// Handler exposes HTTP endpoints for account operations.
type Handler struct {
	svc      *Service
	sessions *session.Manager
	logger   *zap.SugaredLogger
}

func NewHandler(svc *Service, sessions *session.Manager, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, sessions: sessions, logger: logger}
}

// RegisterRequest request body for the register endpoint.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utilities.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	err := h.svc.Register(r.Context(), req.Username, req.Email, req.Password)
	switch {
	case err == nil:
		utilities.WriteSuccess(w, http.StatusOK, "Account registered. Please verify your email.", nil)
	case errors.Is(err, ErrConflict):
		utilities.WriteError(w, http.StatusBadRequest, "Username or email is already taken")
	case errors.Is(err, ErrValidation):
		utilities.WriteError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Errorw("register failed", "err", err)
		utilities.WriteError(w, http.StatusInternalServerError, "Error registering account")
	}
}

func (h *Handler) Availability(w http.ResponseWriter, r *http.Request) {
	identifier := r.URL.Query().Get("identifier")
	available, err := h.svc.Available(r.Context(), identifier)
	switch {
	case err == nil:
		msg := "Identifier is already taken"
		if available {
			msg = "Identifier is available"
		}
		utilities.WriteSuccess(w, http.StatusOK, msg, map[string]bool{"available": available})
	case errors.Is(err, ErrValidation):
		utilities.WriteError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Errorw("availability check failed", "err", err)
		utilities.WriteError(w, http.StatusInternalServerError, "Error checking availability")
	}
}

// VerifyRequest request body for the verify endpoint.
type VerifyRequest struct {
	Code string `json:"code"`
}

func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")
	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utilities.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	err := h.svc.Verify(r.Context(), username, req.Code)
	switch {
	case err == nil:
		utilities.WriteSuccess(w, http.StatusOK, "Account verified successfully", nil)
	case errors.Is(err, ErrNotFound):
		utilities.WriteError(w, http.StatusNotFound, "Account not found")
	case errors.Is(err, ErrCodeExpired):
		utilities.WriteError(w, http.StatusBadRequest, "Verification code has expired. Please register again to get a new code.")
	case errors.Is(err, ErrInvalidCode):
		utilities.WriteError(w, http.StatusBadRequest, "Incorrect verification code")
	default:
		h.logger.Errorw("verify failed", "username", username, "err", err)
		utilities.WriteError(w, http.StatusInternalServerError, "Error verifying account")
	}
}

// LoginRequest login payload.
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// LoginResponse contains the session token and its validity window.
type LoginResponse struct {
	Token     string `json:"token"`
	TokenType string `json:"tokenType"`
	ExpiresIn int64  `json:"expiresIn"`
	Username  string `json:"username"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utilities.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	principal, err := h.svc.Authenticate(r.Context(), req.Identifier, req.Password)
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		utilities.WriteError(w, http.StatusUnauthorized, "No account found with this username or email")
		return
	case errors.Is(err, ErrUnverified):
		utilities.WriteError(w, http.StatusUnauthorized, "Please verify your account before logging in")
		return
	case errors.Is(err, ErrInvalidCredentials):
		utilities.WriteError(w, http.StatusUnauthorized, "Incorrect password")
		return
	default:
		h.logger.Errorw("login failed", "err", err)
		utilities.WriteError(w, http.StatusInternalServerError, "Error logging in")
		return
	}
	token, err := h.sessions.Issue(principal)
	if err != nil {
		h.logger.Errorw("token issue failed", "err", err)
		utilities.WriteError(w, http.StatusInternalServerError, "Error logging in")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.sessions.TTLSeconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	utilities.WriteSuccess(w, http.StatusOK, "Logged in successfully", LoginResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresIn: h.sessions.TTLSeconds(),
		Username:  principal.Username,
	})
}

// GetAcceptance reports the live acceptance flag for the session owner.
func (h *Handler) GetAcceptance(w http.ResponseWriter, r *http.Request) {
	p, ok := session.FromContext(r.Context())
	if !ok {
		utilities.WriteError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	accepting, err := h.svc.AcceptingMessages(r.Context(), p.ID)
	switch {
	case err == nil:
		utilities.WriteSuccess(w, http.StatusOK, "Acceptance status fetched", map[string]bool{"acceptingMessages": accepting})
	case errors.Is(err, ErrNotFound):
		utilities.WriteError(w, http.StatusNotFound, "Account not found")
	default:
		h.logger.Errorw("get acceptance failed", "account", p.ID, "err", err)
		utilities.WriteError(w, http.StatusInternalServerError, "Error fetching acceptance status")
	}
}

// SetAcceptanceRequest request body for the acceptance toggle.
type SetAcceptanceRequest struct {
	AcceptingMessages bool `json:"acceptingMessages"`
}

func (h *Handler) SetAcceptance(w http.ResponseWriter, r *http.Request) {
	p, ok := session.FromContext(r.Context())
	if !ok {
		utilities.WriteError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	var req SetAcceptanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utilities.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.svc.SetAcceptingMessages(r.Context(), p.ID, req.AcceptingMessages); err != nil {
		h.logger.Errorw("set acceptance failed", "account", p.ID, "err", err)
		utilities.WriteError(w, http.StatusInternalServerError, "Error updating acceptance status")
		return
	}
	utilities.WriteSuccess(w, http.StatusOK, "Acceptance status updated", map[string]bool{"acceptingMessages": req.AcceptingMessages})
}
