package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/BradenHooton/chefguard/internal/models"
	pkghttp "github.com/BradenHooton/chefguard/pkg/http"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	contentType := w.Header().Get("Content-Type")
	assert.Equal(t, "application/json", contentType, "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response with the given message
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedMessage string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedMessage, resp.Error, "Error message mismatch")
	assert.NotEmpty(t, resp.Code, "Error code should not be empty")
}

// MockRateLimitChecker implements RateLimitChecker for testing
type MockRateLimitChecker struct {
	CheckFunc func(ctx context.Context, identifier string, attemptType models.AttemptType) models.RateLimitDecision
}

func (m *MockRateLimitChecker) Check(ctx context.Context, identifier string, attemptType models.AttemptType) models.RateLimitDecision {
	if m.CheckFunc != nil {
		return m.CheckFunc(ctx, identifier, attemptType)
	}
	return models.RateLimitDecision{Allowed: true, Remaining: 4}
}

// MockLockoutSender implements LockoutSender for testing
type MockLockoutSender struct {
	SendFunc func(ctx context.Context, notification models.LockoutNotification) (string, error)
}

func (m *MockLockoutSender) Send(ctx context.Context, notification models.LockoutNotification) (string, error) {
	if m.SendFunc != nil {
		return m.SendFunc(ctx, notification)
	}
	return "mock-message-id", nil
}

// MockPasswordResetRequester implements PasswordResetRequester for testing
type MockPasswordResetRequester struct {
	RequestResetFunc func(ctx context.Context, email, redirectURL string) error
}

func (m *MockPasswordResetRequester) RequestReset(ctx context.Context, email, redirectURL string) error {
	if m.RequestResetFunc != nil {
		return m.RequestResetFunc(ctx, email, redirectURL)
	}
	return nil
}

// MockHealthChecker implements HealthChecker for testing
type MockHealthChecker struct {
	Err error
}

func (m *MockHealthChecker) HealthCheck(ctx context.Context) error {
	return m.Err
}
