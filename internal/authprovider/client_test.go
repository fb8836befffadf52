package authprovider

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BradenHooton/chefguard/internal/models"
)

func newTestClient(url string) *Client {
	return NewClient(Config{URL: url, ServiceKey: "service-key", Timeout: 2 * time.Second}, nil,
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestGenerateRecoveryLink_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/auth/v1/admin/generate_link", r.URL.Path)
		assert.Equal(t, "service-key", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer service-key", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-Id"))

		var body generateLinkRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "recovery", body.Type)
		assert.Equal(t, "user@example.com", body.Email)
		assert.Equal(t, "https://myapp.lovable.app/reset-password", body.RedirectTo)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"action_link":"https://auth.example.co/verify?token=abc"}`))
	}))
	defer server.Close()

	link, err := newTestClient(server.URL).GenerateRecoveryLink(context.Background(),
		"user@example.com", "https://myapp.lovable.app/reset-password")

	require.NoError(t, err)
	assert.Equal(t, "https://auth.example.co/verify?token=abc", link)
}

func TestGenerateRecoveryLink_NestedProperties(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"properties":{"action_link":"https://auth.example.co/verify?token=nested"}}`))
	}))
	defer server.Close()

	link, err := newTestClient(server.URL).GenerateRecoveryLink(context.Background(), "user@example.com", "")

	require.NoError(t, err)
	assert.Equal(t, "https://auth.example.co/verify?token=nested", link)
}

func TestGenerateRecoveryLink_UserNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":404,"msg":"User not found"}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).GenerateRecoveryLink(context.Background(), "ghost@example.com", "")

	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestGenerateRecoveryLink_MissingLink(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"u1"}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).GenerateRecoveryLink(context.Background(), "user@example.com", "")

	assert.ErrorIs(t, err, models.ErrRecoveryLinkMissing)
}

func TestGenerateRecoveryLink_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).GenerateRecoveryLink(context.Background(), "user@example.com", "")

	assert.ErrorIs(t, err, models.ErrProviderUnavailable)
}

func TestGenerateRecoveryLink_RejectionsDoNotTripBreaker(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	for i := 0; i < 8; i++ {
		_, err := client.GenerateRecoveryLink(context.Background(), "ghost@example.com", "")
		assert.True(t, errors.Is(err, ErrUserNotFound))
	}
	assert.Equal(t, int32(8), calls.Load())
}

func TestGenerateRecoveryLink_BreakerOpensOnOutage(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	for i := 0; i < 7; i++ {
		_, err := client.GenerateRecoveryLink(context.Background(), "user@example.com", "")
		assert.ErrorIs(t, err, models.ErrProviderUnavailable)
	}
	assert.Equal(t, int32(5), calls.Load())
}
