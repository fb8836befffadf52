package middleware

import (
	"net/http"

	"github.com/BradenHooton/chefguard/internal/metrics"
	"github.com/BradenHooton/chefguard/internal/throttle"
	pkghttp "github.com/BradenHooton/chefguard/pkg/http"
	pkglogger "github.com/BradenHooton/chefguard/pkg/logger"
)

// IPThrottleConfig wires an endpoint throttle into the request path
type IPThrottleConfig struct {
	Throttle       *throttle.Throttle
	IPConfig       *pkghttp.IPConfig
	Message        string
	Metrics        *metrics.Metrics
	SecurityLogger *pkglogger.SecurityLogger
}

// IPThrottle rejects requests from a client IP that exceeded the endpoint's
// window with 429, a Retry-After header and a retryAfter body field.
// Preflight requests are not counted.
func IPThrottle(config IPThrottleConfig) func(http.Handler) http.Handler {
	message := config.Message
	if message == "" {
		message = "Too many requests"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			ip := pkghttp.ExtractClientIP(r, config.IPConfig)
			result := config.Throttle.Allow(r.Context(), ip)
			if !result.Allowed {
				config.Metrics.Throttled(config.Throttle.Scope())
				if config.SecurityLogger != nil {
					config.SecurityLogger.LogThrottled(r.Context(), config.Throttle.Scope(), ip, result.RetryAfter)
				}
				pkghttp.WriteTooManyRequests(w, message, result.RetryAfter)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
