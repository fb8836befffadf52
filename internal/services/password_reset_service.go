package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/BradenHooton/chefguard/internal/auth"
	"github.com/BradenHooton/chefguard/internal/models"
	"github.com/BradenHooton/chefguard/pkg/logger"
)

// GenericResetMessage is returned whether or not the account exists
const GenericResetMessage = "If an account exists, a reset email has been sent"

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidEmail reports whether s looks like an email address
func ValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// RecoveryLinkGenerator mints one-time password recovery links
type RecoveryLinkGenerator interface {
	GenerateRecoveryLink(ctx context.Context, email, redirectTo string) (string, error)
}

// PasswordResetConfig holds the redirect allow-list and response floor
type PasswordResetConfig struct {
	AllowedRedirectHosts []string
	Timing               *auth.TimingDelay
}

// resetSendTimeout bounds a detached reset email delivery
const resetSendTimeout = 15 * time.Second

// PasswordResetService sends recovery links without revealing account existence
type PasswordResetService struct {
	wg           sync.WaitGroup
	links        RecoveryLinkGenerator
	email        EmailService
	allowedHosts []string
	timing       *auth.TimingDelay
	security     *logger.SecurityLogger
	logger       *slog.Logger
}

// NewPasswordResetService creates the service. A nil links or email
// collaborator makes every request fail with models.ErrNotConfigured.
func NewPasswordResetService(links RecoveryLinkGenerator, email EmailService, cfg PasswordResetConfig, security *logger.SecurityLogger, logger *slog.Logger) *PasswordResetService {
	hosts := make([]string, 0, len(cfg.AllowedRedirectHosts))
	for _, h := range cfg.AllowedRedirectHosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			hosts = append(hosts, h)
		}
	}

	return &PasswordResetService{
		links:        links,
		email:        email,
		allowedHosts: hosts,
		timing:       cfg.Timing,
		security:     security,
		logger:       logger,
	}
}

// ValidateRedirectURL accepts http(s) URLs whose host equals an allowed
// host or is a subdomain of one.
func ValidateRedirectURL(raw string, allowedHosts []string) error {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || parsed.Hostname() == "" {
		return models.ErrInvalidRedirectFormat
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return models.ErrInvalidRedirectFormat
	}

	host := strings.ToLower(parsed.Hostname())
	for _, allowed := range allowedHosts {
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return nil
		}
	}
	return models.ErrInvalidRedirect
}

// RequestReset validates the request and, when the account exists, emails a
// recovery link. Unknown accounts and delivery failures are indistinguishable
// from success. Only configuration, validation and a link-less provider
// answer produce an error. The email is sent after the response returns, so
// email latency does not reveal that the account exists.
func (s *PasswordResetService) RequestReset(ctx context.Context, email, redirectURL string) error {
	if s.links == nil || s.email == nil {
		return models.ErrNotConfigured
	}

	email = NormalizeIdentifier(email)
	if !ValidEmail(email) {
		return models.ErrInvalidEmail
	}
	if err := ValidateRedirectURL(redirectURL, s.allowedHosts); err != nil {
		return err
	}

	start := time.Now()
	defer s.timing.WaitFrom(ctx, start)

	link, err := s.links.GenerateRecoveryLink(ctx, email, redirectURL)
	if errors.Is(err, models.ErrRecoveryLinkMissing) {
		s.logger.Error("auth provider returned no recovery link",
			slog.String("email", logger.SanitizedEmail(email)))
		return err
	}
	if err != nil {
		s.logger.Warn("recovery link not generated",
			slog.String("email", logger.SanitizedEmail(email)),
			slog.Any("error", err))
		s.audit(ctx, email, "no_account")
		return nil
	}

	s.wg.Add(1)
	go s.deliver(context.WithoutCancel(ctx), email, link)
	return nil
}

func (s *PasswordResetService) deliver(ctx context.Context, email, link string) {
	defer s.wg.Done()

	ctx, cancel := context.WithTimeout(ctx, resetSendTimeout)
	defer cancel()

	if _, err := s.email.SendPasswordReset(ctx, email, link); err != nil {
		s.logger.Error("password reset email failed",
			slog.String("email", logger.SanitizedEmail(email)),
			slog.Any("error", fmt.Errorf("send reset email: %w", err)))
		s.audit(ctx, email, "email_failed")
		return
	}

	s.audit(ctx, email, "sent")
}

// Wait blocks until every in-flight reset email has been handed to the provider
func (s *PasswordResetService) Wait() {
	s.wg.Wait()
}

func (s *PasswordResetService) audit(ctx context.Context, email, outcome string) {
	if s.security != nil {
		s.security.LogPasswordResetRequested(ctx, email, outcome)
	}
}
