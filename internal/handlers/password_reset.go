package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/BradenHooton/chefguard/internal/models"
	"github.com/BradenHooton/chefguard/internal/services"
	pkghttp "github.com/BradenHooton/chefguard/pkg/http"
)

// PasswordResetRequester sends recovery links
type PasswordResetRequester interface {
	RequestReset(ctx context.Context, email, redirectURL string) error
}

// PasswordResetHandler serves send-password-reset
type PasswordResetHandler struct {
	service PasswordResetRequester
}

// NewPasswordResetHandler creates a new PasswordResetHandler
func NewPasswordResetHandler(service PasswordResetRequester) *PasswordResetHandler {
	return &PasswordResetHandler{service: service}
}

// PasswordResetRequest is the send-password-reset body. Email and redirect
// checks happen in the service so configuration is verified first.
type PasswordResetRequest struct {
	Email       string `json:"email"`
	RedirectURL string `json:"redirectUrl"`
}

// PasswordResetResponse is identical for existing and unknown accounts
type PasswordResetResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// SendPasswordReset handles POST /functions/v1/send-password-reset
func (h *PasswordResetHandler) SendPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req PasswordResetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	err := h.service.RequestReset(r.Context(), req.Email, req.RedirectURL)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotConfigured):
			pkghttp.WriteInternalError(w, "Password reset is not configured")
		case errors.Is(err, models.ErrInvalidEmail):
			if strings.TrimSpace(req.Email) == "" {
				pkghttp.WriteBadRequest(w, "Email is required")
			} else {
				pkghttp.WriteBadRequest(w, "Invalid email format")
			}
		case errors.Is(err, models.ErrInvalidRedirectFormat):
			pkghttp.WriteBadRequest(w, "Invalid redirect URL format")
		case errors.Is(err, models.ErrInvalidRedirect):
			pkghttp.WriteBadRequest(w, "Invalid redirect URL")
		case errors.Is(err, models.ErrRecoveryLinkMissing):
			pkghttp.WriteInternalError(w, "Failed to generate reset link")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, PasswordResetResponse{
		Success: true,
		Message: services.GenericResetMessage,
	})
}
