package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/BradenHooton/chefguard/internal/metrics"
	"github.com/BradenHooton/chefguard/internal/models"
	"github.com/BradenHooton/chefguard/internal/throttle"
	"github.com/BradenHooton/chefguard/pkg/logger"
)

// AttemptRepository defines the attempt log operations used by the rate limiter
type AttemptRepository interface {
	RecordAttempt(ctx context.Context, record *models.AttemptRecord) error
	CountAttemptsSince(ctx context.Context, identifier string, attemptType models.AttemptType, since time.Time) (int, error)
}

// LockoutPublisher accepts notifications without blocking.
// It returns false when the notification was dropped.
type LockoutPublisher interface {
	Publish(notification models.LockoutNotification) bool
}

// RateLimitOptions holds optional collaborators for RateLimitService
type RateLimitOptions struct {
	TimeProvider func() time.Time
	Publisher    LockoutPublisher
	// NoticeStore limits lockout notifications to one per identifier, type and window.
	// Nil sends one on every denied check.
	NoticeStore    throttle.Store
	Metrics        *metrics.Metrics
	SecurityLogger *logger.SecurityLogger
}

// RateLimitService decides whether an identifier may attempt an auth action
type RateLimitService struct {
	repo         AttemptRepository
	policies     models.RateLimitPolicies
	publisher    LockoutPublisher
	noticeStore  throttle.Store
	metrics      *metrics.Metrics
	security     *logger.SecurityLogger
	logger       *slog.Logger
	timeProvider func() time.Time
}

// NewRateLimitService creates a new RateLimitService
func NewRateLimitService(repo AttemptRepository, policies models.RateLimitPolicies, logger *slog.Logger, opts *RateLimitOptions) *RateLimitService {
	s := &RateLimitService{
		repo:         repo,
		policies:     policies,
		logger:       logger,
		timeProvider: time.Now,
	}

	if opts != nil {
		if opts.TimeProvider != nil {
			s.timeProvider = opts.TimeProvider
		}
		s.publisher = opts.Publisher
		s.noticeStore = opts.NoticeStore
		s.metrics = opts.Metrics
		s.security = opts.SecurityLogger
	}

	return s
}

// NormalizeIdentifier lowercases and trims an identifier
func NormalizeIdentifier(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}

// Check counts attempts inside the sliding window and records this one when allowed.
// Storage failures fail open and are never returned.
func (s *RateLimitService) Check(ctx context.Context, identifier string, attemptType models.AttemptType) models.RateLimitDecision {
	identifier = NormalizeIdentifier(identifier)
	policy := s.policies.For(attemptType)
	now := s.timeProvider()
	windowStart := now.Add(-policy.Window)

	count, err := s.repo.CountAttemptsSince(ctx, identifier, attemptType, windowStart)
	if err != nil {
		return s.failOpen(attemptType, policy, "count", err)
	}

	if count >= policy.MaxAttempts {
		retryAfter := int(policy.Window / time.Second)
		s.metrics.Decision(string(attemptType), metrics.OutcomeDenied)
		s.logger.Warn("rate limit exceeded",
			slog.String("identifier", logger.SanitizedEmail(identifier)),
			slog.String("attempt_type", string(attemptType)),
			slog.Int("attempts", count))
		s.notifyLockout(ctx, identifier, attemptType, policy, now)

		return models.RateLimitDecision{
			Allowed:    false,
			Remaining:  0,
			RetryAfter: &retryAfter,
		}
	}

	record := &models.AttemptRecord{
		Identifier:  identifier,
		AttemptType: attemptType,
		AttemptedAt: now,
	}
	if err := s.repo.RecordAttempt(ctx, record); err != nil {
		return s.failOpen(attemptType, policy, "record", err)
	}

	s.metrics.Decision(string(attemptType), metrics.OutcomeAllowed)
	return models.RateLimitDecision{
		Allowed:   true,
		Remaining: policy.MaxAttempts - count - 1,
	}
}

func (s *RateLimitService) failOpen(attemptType models.AttemptType, policy models.RateLimitPolicy, op string, err error) models.RateLimitDecision {
	s.metrics.Decision(string(attemptType), metrics.OutcomeFailOpen)
	s.logger.Error("rate limit store unavailable, failing open",
		slog.String("op", op),
		slog.String("attempt_type", string(attemptType)),
		slog.Any("error", err))

	return models.RateLimitDecision{
		Allowed:   true,
		Remaining: policy.MaxAttempts,
	}
}

// notifyLockout publishes at most one notification per identifier, type and window
func (s *RateLimitService) notifyLockout(ctx context.Context, identifier string, attemptType models.AttemptType, policy models.RateLimitPolicy, now time.Time) {
	if s.publisher == nil {
		return
	}

	key := "lockout-notice:" + string(attemptType) + ":" + identifier
	marked := false
	if s.noticeStore != nil {
		hits, _, err := s.noticeStore.Hit(ctx, key, policy.Window, now)
		if err != nil {
			s.logger.Warn("lockout notice store unavailable, notifying anyway", slog.Any("error", err))
		} else if hits > 1 {
			return
		} else {
			marked = true
		}
	}

	notification := models.LockoutNotification{
		ID:             uuid.NewString(),
		Email:          identifier,
		AttemptType:    attemptType,
		LockoutMinutes: policy.WindowMinutes(),
	}

	if !s.publisher.Publish(notification) {
		s.logger.Warn("lockout notification dropped",
			slog.String("notification_id", notification.ID))
		// the next denial in this window retries
		if marked {
			if err := s.noticeStore.Release(ctx, key); err != nil {
				s.logger.Warn("failed to release lockout notice", slog.Any("error", err))
			}
		}
		return
	}

	if s.security != nil {
		s.security.LogLockout(ctx, identifier, string(attemptType), notification.LockoutMinutes)
	}
}
