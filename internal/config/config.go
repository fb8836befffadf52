package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database     DatabaseConfig
	Server       ServerConfig
	Throttle     ThrottleConfig
	AuthProvider AuthProviderConfig
	Email        EmailConfig
	Reset        ResetConfig
	Background   BackgroundConfig
}

type DatabaseConfig struct {
	URL               string
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	AutoMigrate       bool
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	TrustedProxies []string
	// GlobalRequestsPerMinute caps every route per client IP. Zero disables it.
	GlobalRequestsPerMinute int
}

// EndpointLimit is a fixed-window request cap for one endpoint
type EndpointLimit struct {
	MaxRequests int
	Window      time.Duration
}

type ThrottleConfig struct {
	Backend           string // "memory" or "redis"
	RedisURL          string
	RateLimitCheck    EndpointLimit
	LockoutNotifier   EndpointLimit
	PasswordReset     EndpointLimit
}

type AuthProviderConfig struct {
	URL        string
	ServiceKey string
	// JWTSecret verifies caller tokens on the function endpoints. Empty disables the check.
	JWTSecret      string
	RequestTimeout time.Duration
}

// Configured reports whether the recovery-link API can be called
func (c AuthProviderConfig) Configured() bool {
	return c.URL != "" && c.ServiceKey != ""
}

type EmailConfig struct {
	AWSRegion   string
	FromAddress string
}

// Configured reports whether transactional email can be sent
func (c EmailConfig) Configured() bool {
	return c.AWSRegion != "" && c.FromAddress != ""
}

type ResetConfig struct {
	AllowedRedirectHosts []string
	MinResponseTime      time.Duration
}

type BackgroundConfig struct {
	CleanupInterval        time.Duration
	NotificationBufferSize int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			URL:               getEnv("DATABASE_URL", ""),
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "postgres"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 10)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 2)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
			AutoMigrate:       getEnvAsBool("DB_AUTO_MIGRATE", true),
		},
		Server: ServerConfig{
			Port:                    getEnv("PORT", "8080"),
			Env:                     env,
			LogLevel:                getEnv("LOG_LEVEL", "info"),
			ReadTimeout:             getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:            getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:             getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			TrustedProxies:          getEnvAsList("TRUSTED_PROXIES", nil),
			GlobalRequestsPerMinute: getEnvAsInt("GLOBAL_REQUESTS_PER_MINUTE", 300),
		},
		Throttle: ThrottleConfig{
			Backend:  strings.ToLower(getEnv("THROTTLE_BACKEND", "memory")),
			RedisURL: getEnv("REDIS_URL", ""),
			RateLimitCheck: EndpointLimit{
				MaxRequests: getEnvAsInt("THROTTLE_RATE_LIMIT_MAX", 30),
				Window:      getEnvAsDuration("THROTTLE_RATE_LIMIT_WINDOW", 1*time.Minute),
			},
			LockoutNotifier: EndpointLimit{
				MaxRequests: getEnvAsInt("THROTTLE_LOCKOUT_MAX", 5),
				Window:      getEnvAsDuration("THROTTLE_LOCKOUT_WINDOW", 5*time.Minute),
			},
			PasswordReset: EndpointLimit{
				MaxRequests: getEnvAsInt("THROTTLE_PASSWORD_RESET_MAX", 5),
				Window:      getEnvAsDuration("THROTTLE_PASSWORD_RESET_WINDOW", 15*time.Minute),
			},
		},
		AuthProvider: AuthProviderConfig{
			URL:            strings.TrimRight(getEnv("AUTH_URL", getEnv("SUPABASE_URL", "")), "/"),
			ServiceKey:     getEnv("AUTH_SERVICE_KEY", getEnv("SUPABASE_SERVICE_ROLE_KEY", "")),
			JWTSecret:      getEnv("FUNCTIONS_JWT_SECRET", ""),
			RequestTimeout: getEnvAsDuration("AUTH_REQUEST_TIMEOUT", 10*time.Second),
		},
		Email: EmailConfig{
			AWSRegion:   getEnv("AWS_REGION", ""),
			FromAddress: getEnv("EMAIL_FROM_ADDRESS", ""),
		},
		Reset: ResetConfig{
			AllowedRedirectHosts: getEnvAsList("ALLOWED_REDIRECT_HOSTS", []string{
				"localhost",
				"lovable.app",
				"lovableproject.com",
				"chef-folio-book.lovable.app",
			}),
			MinResponseTime: getEnvAsDuration("RESET_MIN_RESPONSE_TIME", 400*time.Millisecond),
		},
		Background: BackgroundConfig{
			CleanupInterval:        getEnvAsDuration("CLEANUP_INTERVAL", 1*time.Hour),
			NotificationBufferSize: getEnvAsInt("NOTIFICATION_BUFFER_SIZE", 256),
		},
	}

	if cfg.Database.URL == "" && cfg.Database.Password == "" {
		return nil, fmt.Errorf("DATABASE_URL or DB_PASSWORD is required")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Throttle.Backend {
	case "memory":
	case "redis":
		if c.Throttle.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when THROTTLE_BACKEND=redis")
		}
	default:
		return fmt.Errorf("THROTTLE_BACKEND must be memory or redis (got %q)", c.Throttle.Backend)
	}

	limits := map[string]EndpointLimit{
		"THROTTLE_RATE_LIMIT":     c.Throttle.RateLimitCheck,
		"THROTTLE_LOCKOUT":        c.Throttle.LockoutNotifier,
		"THROTTLE_PASSWORD_RESET": c.Throttle.PasswordReset,
	}
	for name, limit := range limits {
		if limit.MaxRequests < 1 || limit.Window <= 0 {
			return fmt.Errorf("%s_MAX and %s_WINDOW must be positive", name, name)
		}
	}

	if c.AuthProvider.JWTSecret != "" {
		if err := validateJWTSecret(c.AuthProvider.JWTSecret, c.Server.Env); err != nil {
			return err
		}
	}

	if c.Background.CleanupInterval <= 0 {
		return fmt.Errorf("CLEANUP_INTERVAL must be positive")
	}

	return nil
}

// validateJWTSecret enforces minimum security standards for the function JWT secret
func validateJWTSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(secret) < minLength {
		return fmt.Errorf("FUNCTIONS_JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("FUNCTIONS_JWT_SECRET cannot be a common weak value")
		}
	}

	return nil
}

// DSN returns DATABASE_URL when set, otherwise a keyword/value DSN built from the parts
func (c *DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

// getEnvAsList splits a comma-separated variable, dropping blank entries
func getEnvAsList(key string, defaultVal []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultVal
	}

	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
