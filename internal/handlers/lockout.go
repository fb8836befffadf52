package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/BradenHooton/chefguard/internal/models"
	pkghttp "github.com/BradenHooton/chefguard/pkg/http"
)

// LockoutSender delivers lockout alerts
type LockoutSender interface {
	Send(ctx context.Context, notification models.LockoutNotification) (string, error)
}

// LockoutHandler serves send-lockout-notification
type LockoutHandler struct {
	service LockoutSender
}

// NewLockoutHandler creates a new LockoutHandler
func NewLockoutHandler(service LockoutSender) *LockoutHandler {
	return &LockoutHandler{service: service}
}

// LockoutNotificationRequest is the send-lockout-notification body
type LockoutNotificationRequest struct {
	Email          string `json:"email" validate:"required,email,max=255"`
	AttemptType    string `json:"attemptType"`
	LockoutMinutes int    `json:"lockoutMinutes" validate:"gte=1,lte=1440"`
}

// LockoutNotificationData is the provider acknowledgement
type LockoutNotificationData struct {
	ID string `json:"id"`
}

// LockoutNotificationResponse is returned on success and on provider failure
type LockoutNotificationResponse struct {
	Success bool                     `json:"success"`
	Data    *LockoutNotificationData `json:"data,omitempty"`
	Error   string                   `json:"error,omitempty"`
}

// SendLockoutNotification handles POST /functions/v1/send-lockout-notification
func (h *LockoutHandler) SendLockoutNotification(w http.ResponseWriter, r *http.Request) {
	var req LockoutNotificationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" {
		pkghttp.WriteBadRequest(w, "Email is required")
		return
	}
	if validate.Var(req.Email, "email,max=255") != nil {
		pkghttp.WriteBadRequest(w, "Invalid email format")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	messageID, err := h.service.Send(r.Context(), models.LockoutNotification{
		ID:             uuid.NewString(),
		Email:          strings.ToLower(req.Email),
		AttemptType:    models.ParseAttemptType(req.AttemptType),
		LockoutMinutes: req.LockoutMinutes,
	})
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotConfigured):
			pkghttp.WriteJSON(w, http.StatusInternalServerError, LockoutNotificationResponse{
				Error: "Email provider is not configured",
			})
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "lockoutMinutes is out of range")
		default:
			pkghttp.WriteJSON(w, http.StatusInternalServerError, LockoutNotificationResponse{
				Error: "Failed to send lockout notification",
			})
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, LockoutNotificationResponse{
		Success: true,
		Data:    &LockoutNotificationData{ID: messageID},
	})
}
