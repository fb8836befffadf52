// Package authprovider calls the identity provider's admin API to mint
// password recovery links.
package authprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/BradenHooton/chefguard/internal/metrics"
	"github.com/BradenHooton/chefguard/internal/models"
	"github.com/BradenHooton/chefguard/pkg/breaker"
)

const generateLinkPath = "/auth/v1/admin/generate_link"

// ErrUserNotFound is returned when the provider rejects the request, most
// commonly because no account exists for the email.
var ErrUserNotFound = errors.New("auth provider rejected recovery request")

// Config holds the provider coordinates
type Config struct {
	URL        string
	ServiceKey string
	Timeout    time.Duration
}

// Client is a GoTrue admin API client
type Client struct {
	baseURL    string
	serviceKey string
	httpClient *http.Client
	breaker    breaker.CircuitBreaker
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewClient creates a Client with its own circuit breaker
func NewClient(cfg Config, m *metrics.Metrics, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL:    cfg.URL,
		serviceKey: cfg.ServiceKey,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    breaker.New("auth-provider", 30*time.Second, 5),
		metrics:    m,
		logger:     logger,
	}
}

type generateLinkRequest struct {
	Type       string `json:"type"`
	Email      string `json:"email"`
	RedirectTo string `json:"redirect_to,omitempty"`
}

type generateLinkResponse struct {
	ActionLink string `json:"action_link"`
	Properties *struct {
		ActionLink string `json:"action_link"`
	} `json:"properties,omitempty"`
}

type providerError struct {
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	ErrorDescription string `json:"error_description"`
}

func (e providerError) text() string {
	switch {
	case e.Msg != "":
		return e.Msg
	case e.Message != "":
		return e.Message
	default:
		return e.ErrorDescription
	}
}

// GenerateRecoveryLink asks the provider for a one-time recovery link.
// A 4xx answer maps to ErrUserNotFound. A success without a link maps to
// models.ErrRecoveryLinkMissing.
func (c *Client) GenerateRecoveryLink(ctx context.Context, email, redirectTo string) (string, error) {
	body, err := json.Marshal(generateLinkRequest{
		Type:       "recovery",
		Email:      email,
		RedirectTo: redirectTo,
	})
	if err != nil {
		return "", fmt.Errorf("encode generate_link request: %w", err)
	}

	var link string
	var rejection error
	start := time.Now()
	err = c.breaker.Execute(func() error {
		var callErr error
		link, callErr = c.generateLink(ctx, body)
		// rejections are answers and do not count as breaker failures
		if errors.Is(callErr, ErrUserNotFound) || errors.Is(callErr, models.ErrRecoveryLinkMissing) {
			rejection = callErr
			return nil
		}
		return callErr
	})
	c.metrics.ObserveAuthProvider(float64(time.Since(start).Milliseconds()))
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrProviderUnavailable, err)
	}
	if rejection != nil {
		return "", rejection
	}

	return link, nil
}

func (c *Client) generateLink(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+generateLinkPath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build generate_link request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("apikey", c.serviceKey)
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("X-Request-Id", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("generate_link request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read generate_link response: %w", err)
	}

	switch {
	case resp.StatusCode >= 500:
		return "", fmt.Errorf("generate_link returned %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		var perr providerError
		_ = json.Unmarshal(payload, &perr)
		c.logger.Info("auth provider rejected recovery request",
			slog.Int("status", resp.StatusCode),
			slog.String("reason", perr.text()))
		return "", ErrUserNotFound
	}

	var out generateLinkResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return "", fmt.Errorf("decode generate_link response: %w", err)
	}

	link := out.ActionLink
	if link == "" && out.Properties != nil {
		link = out.Properties.ActionLink
	}
	if link == "" {
		return "", models.ErrRecoveryLinkMissing
	}
	return link, nil
}
