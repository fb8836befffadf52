package routes

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/BradenHooton/chefguard/internal/auth"
	"github.com/BradenHooton/chefguard/internal/handlers"
	"github.com/BradenHooton/chefguard/internal/metrics"
	"github.com/BradenHooton/chefguard/internal/middleware"
	"github.com/BradenHooton/chefguard/internal/throttle"
	pkghttp "github.com/BradenHooton/chefguard/pkg/http"
	pkglogger "github.com/BradenHooton/chefguard/pkg/logger"
)

// Endpoint throttle scopes, also used as metric labels
const (
	ScopeCheckRateLimit = "check-rate-limit"
	ScopeLockout        = "send-lockout-notification"
	ScopePasswordReset  = "send-password-reset"
)

// Handlers groups the function endpoint handlers
type Handlers struct {
	RateLimit     *handlers.RateLimitHandler
	Lockout       *handlers.LockoutHandler
	PasswordReset *handlers.PasswordResetHandler
}

// Throttles holds one per-IP throttle per function endpoint
type Throttles struct {
	RateLimit     *throttle.Throttle
	Lockout       *throttle.Throttle
	PasswordReset *throttle.Throttle
}

// Dependencies are the shared collaborators of the function routes
type Dependencies struct {
	IPConfig       *pkghttp.IPConfig
	TokenVerifier  *auth.FunctionTokenVerifier // nil disables the caller token check
	Metrics        *metrics.Metrics
	SecurityLogger *pkglogger.SecurityLogger
	Logger         *slog.Logger
}

// RegisterRoutes registers the function endpoints under /functions/v1
func RegisterRoutes(router chi.Router, h Handlers, t Throttles, deps Dependencies) {
	throttled := func(th *throttle.Throttle, message string) func(http.Handler) http.Handler {
		return middleware.IPThrottle(middleware.IPThrottleConfig{
			Throttle:       th,
			IPConfig:       deps.IPConfig,
			Message:        message,
			Metrics:        deps.Metrics,
			SecurityLogger: deps.SecurityLogger,
		})
	}

	router.Route("/functions/v1", func(r chi.Router) {
		r.Use(auth.RequireFunctionToken(deps.TokenVerifier, deps.Logger))
		r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
			pkghttp.WriteMethodNotAllowed(w)
		})

		r.With(throttled(t.RateLimit, "Too many requests")).
			Post("/check-rate-limit", h.RateLimit.CheckRateLimit)
		r.With(throttled(t.Lockout, "Too many requests")).
			Post("/send-lockout-notification", h.Lockout.SendLockoutNotification)
		r.With(throttled(t.PasswordReset, "Too many requests. Please try again later.")).
			Post("/send-password-reset", h.PasswordReset.SendPasswordReset)
	})
}
