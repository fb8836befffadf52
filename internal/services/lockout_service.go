package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BradenHooton/chefguard/internal/models"
	"github.com/BradenHooton/chefguard/pkg/logger"
)

// MaxLockoutMinutes bounds the duration a notification may announce
const MaxLockoutMinutes = 1440

// LockoutNotificationService composes and sends account lockout alerts
type LockoutNotificationService struct {
	email  EmailService
	logger *slog.Logger
}

// NewLockoutNotificationService creates the service. A nil email service
// makes every Send fail with models.ErrNotConfigured.
func NewLockoutNotificationService(email EmailService, logger *slog.Logger) *LockoutNotificationService {
	return &LockoutNotificationService{
		email:  email,
		logger: logger,
	}
}

// Send delivers one lockout alert and returns the provider message id. No retry.
func (s *LockoutNotificationService) Send(ctx context.Context, notification models.LockoutNotification) (string, error) {
	if s.email == nil {
		return "", models.ErrNotConfigured
	}
	if notification.LockoutMinutes < 1 || notification.LockoutMinutes > MaxLockoutMinutes {
		return "", fmt.Errorf("%w: lockout minutes must be between 1 and %d", models.ErrBadRequest, MaxLockoutMinutes)
	}

	messageID, err := s.email.SendLockoutNotification(ctx, notification)
	if err != nil {
		s.logger.Error("lockout notification failed",
			slog.String("notification_id", notification.ID),
			slog.String("email", logger.SanitizedEmail(notification.Email)),
			slog.Any("error", err))
		return "", err
	}

	return messageID, nil
}
