package services

import (
	"context"
	"sync"
	"time"

	"github.com/BradenHooton/chefguard/internal/models"
)

// MockAttemptRepository is an in-memory AttemptRepository for testing.
// Set the Err fields to simulate an unavailable store.
type MockAttemptRepository struct {
	mu        sync.Mutex
	Records   []models.AttemptRecord
	CountErr  error
	RecordErr error
}

func (m *MockAttemptRepository) RecordAttempt(ctx context.Context, record *models.AttemptRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.RecordErr != nil {
		return m.RecordErr
	}
	m.Records = append(m.Records, *record)
	return nil
}

func (m *MockAttemptRepository) CountAttemptsSince(ctx context.Context, identifier string, attemptType models.AttemptType, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.CountErr != nil {
		return 0, m.CountErr
	}

	count := 0
	for _, r := range m.Records {
		if r.Identifier == identifier && r.AttemptType == attemptType && !r.AttemptedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

// MockLockoutPublisher records published notifications.
// Reject drops every notification, RejectFirst drops only the first n.
type MockLockoutPublisher struct {
	mu          sync.Mutex
	Published   []models.LockoutNotification
	Reject      bool
	RejectFirst int
	Attempts    int
}

func (m *MockLockoutPublisher) Publish(notification models.LockoutNotification) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Attempts++
	if m.Reject || m.Attempts <= m.RejectFirst {
		return false
	}
	m.Published = append(m.Published, notification)
	return true
}

// Count returns how many notifications were published
func (m *MockLockoutPublisher) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Published)
}

// MockEmailService implements EmailService for testing
type MockEmailService struct {
	SendLockoutNotificationFunc func(ctx context.Context, notification models.LockoutNotification) (string, error)
	SendPasswordResetFunc       func(ctx context.Context, email, resetLink string) (string, error)
}

func (m *MockEmailService) SendLockoutNotification(ctx context.Context, notification models.LockoutNotification) (string, error) {
	if m.SendLockoutNotificationFunc != nil {
		return m.SendLockoutNotificationFunc(ctx, notification)
	}
	return "mock-message-id", nil
}

func (m *MockEmailService) SendPasswordReset(ctx context.Context, email, resetLink string) (string, error) {
	if m.SendPasswordResetFunc != nil {
		return m.SendPasswordResetFunc(ctx, email, resetLink)
	}
	return "mock-message-id", nil
}

// MockRecoveryLinkGenerator implements RecoveryLinkGenerator for testing
type MockRecoveryLinkGenerator struct {
	GenerateRecoveryLinkFunc func(ctx context.Context, email, redirectTo string) (string, error)
}

func (m *MockRecoveryLinkGenerator) GenerateRecoveryLink(ctx context.Context, email, redirectTo string) (string, error) {
	if m.GenerateRecoveryLinkFunc != nil {
		return m.GenerateRecoveryLinkFunc(ctx, email, redirectTo)
	}
	return "https://auth.example.test/verify?token=mock", nil
}
