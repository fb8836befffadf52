package routes

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BradenHooton/chefguard/internal/auth"
	"github.com/BradenHooton/chefguard/internal/handlers"
	"github.com/BradenHooton/chefguard/internal/middleware"
	"github.com/BradenHooton/chefguard/internal/models"
	"github.com/BradenHooton/chefguard/internal/services"
	"github.com/BradenHooton/chefguard/internal/throttle"
	pkghttp "github.com/BradenHooton/chefguard/pkg/http"
)

func newTestRouter(t *testing.T, verifier *auth.FunctionTokenVerifier) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := throttle.NewMemoryStore()

	rateLimit := services.NewRateLimitService(&services.MockAttemptRepository{}, models.DefaultRateLimitPolicies(), logger, nil)
	lockout := services.NewLockoutNotificationService(&services.MockEmailService{}, logger)
	reset := services.NewPasswordResetService(&services.MockRecoveryLinkGenerator{}, &services.MockEmailService{},
		services.PasswordResetConfig{AllowedRedirectHosts: []string{"lovable.app"}}, nil, logger)

	router := chi.NewRouter()
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	RegisterRoutes(router,
		Handlers{
			RateLimit:     handlers.NewRateLimitHandler(rateLimit),
			Lockout:       handlers.NewLockoutHandler(lockout),
			PasswordReset: handlers.NewPasswordResetHandler(reset),
		},
		Throttles{
			RateLimit:     throttle.New(ScopeCheckRateLimit, store, throttle.Config{MaxRequests: 30, Window: time.Minute}, logger, nil),
			Lockout:       throttle.New(ScopeLockout, store, throttle.Config{MaxRequests: 5, Window: 5 * time.Minute}, logger, nil),
			PasswordReset: throttle.New(ScopePasswordReset, store, throttle.Config{MaxRequests: 5, Window: 15 * time.Minute}, logger, nil),
		},
		Dependencies{IPConfig: &pkghttp.IPConfig{}, TokenVerifier: verifier, Logger: logger},
	)
	return router
}

func post(router http.Handler, path, body, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", ip)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRoutes_CheckRateLimitFlow(t *testing.T) {
	router := newTestRouter(t, nil)

	for i := 0; i < 5; i++ {
		rec := post(router, "/functions/v1/check-rate-limit", `{"identifier":"user@example.com"}`, "203.0.113.9")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"allowed":true`)
	}

	rec := post(router, "/functions/v1/check-rate-limit", `{"identifier":"user@example.com"}`, "203.0.113.9")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"allowed":false,"remaining":0,"retryAfter":900}`, rec.Body.String())
}

func TestRoutes_IPThrottlePerEndpoint(t *testing.T) {
	router := newTestRouter(t, nil)
	body := `{"email":"user@example.com","attemptType":"login","lockoutMinutes":15}`

	for i := 0; i < 5; i++ {
		rec := post(router, "/functions/v1/send-lockout-notification", body, "198.51.100.2")
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i+1)
	}

	rec := post(router, "/functions/v1/send-lockout-notification", body, "198.51.100.2")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// other endpoints keep their own budget
	rec = post(router, "/functions/v1/check-rate-limit", `{"identifier":"user@example.com"}`, "198.51.100.2")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRoutes_PasswordResetRedirectGuard(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := post(router, "/functions/v1/send-password-reset", `{"email":"user@example.com","redirectUrl":"https://evil.com/x"}`, "192.0.2.1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post(router, "/functions/v1/send-password-reset", `{"email":"user@example.com","redirectUrl":"https://myapp.lovable.app/reset"}`, "192.0.2.1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"message":"If an account exists, a reset email has been sent"}`, rec.Body.String())
}

func TestRoutes_Preflight(t *testing.T) {
	router := newTestRouter(t, auth.NewFunctionTokenVerifier("a-test-secret-that-is-long-enough"))

	req := httptest.NewRequest(http.MethodOptions, "/functions/v1/send-password-reset", nil)
	req.Header.Set("Origin", "https://myapp.lovable.app")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRoutes_RequireToken(t *testing.T) {
	verifier := auth.NewFunctionTokenVerifier("a-test-secret-that-is-long-enough")
	router := newTestRouter(t, verifier)

	rec := post(router, "/functions/v1/check-rate-limit", `{"identifier":"user@example.com"}`, "203.0.113.5")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := verifier.IssueToken(auth.RoleAnon, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/functions/v1/check-rate-limit", bytes.NewBufferString(`{"identifier":"user@example.com"}`))
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRoutes_MethodNotAllowed(t *testing.T) {
	router := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/functions/v1/check-rate-limit", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Contains(t, rec.Body.String(), "method_not_allowed")
}
