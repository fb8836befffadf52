package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/BradenHooton/chefguard/internal/models"
	pkghttp "github.com/BradenHooton/chefguard/pkg/http"
)

// RateLimitChecker decides whether an identifier may attempt an auth action
type RateLimitChecker interface {
	Check(ctx context.Context, identifier string, attemptType models.AttemptType) models.RateLimitDecision
}

// RateLimitHandler serves check-rate-limit
type RateLimitHandler struct {
	service RateLimitChecker
}

// NewRateLimitHandler creates a new RateLimitHandler
func NewRateLimitHandler(service RateLimitChecker) *RateLimitHandler {
	return &RateLimitHandler{service: service}
}

// CheckRateLimitRequest is the check-rate-limit body. attemptType defaults to login.
type CheckRateLimitRequest struct {
	Identifier  string `json:"identifier" validate:"required,email,max=255"`
	AttemptType string `json:"attemptType"`
}

// CheckRateLimit handles POST /functions/v1/check-rate-limit
func (h *RateLimitHandler) CheckRateLimit(w http.ResponseWriter, r *http.Request) {
	var req CheckRateLimitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	req.Identifier = strings.TrimSpace(req.Identifier)
	if req.Identifier == "" {
		pkghttp.WriteBadRequest(w, "Identifier is required")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	decision := h.service.Check(r.Context(), req.Identifier, models.ParseAttemptType(req.AttemptType))
	pkghttp.WriteJSON(w, http.StatusOK, decision)
}
