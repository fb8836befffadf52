package models

import (
	"fmt"
	"strings"
	"time"
)

// AttemptType classifies the auth action being throttled
type AttemptType string

const (
	AttemptTypeLogin         AttemptType = "login"
	AttemptTypeSignup        AttemptType = "signup"
	AttemptTypePasswordReset AttemptType = "password_reset"
)

// ParseAttemptType normalizes a client-supplied attempt type.
// Empty and unknown values map to login.
func ParseAttemptType(raw string) AttemptType {
	switch AttemptType(strings.ToLower(strings.TrimSpace(raw))) {
	case AttemptTypeSignup:
		return AttemptTypeSignup
	case AttemptTypePasswordReset:
		return AttemptTypePasswordReset
	default:
		return AttemptTypeLogin
	}
}

// Label returns the human wording used in notification emails
func (t AttemptType) Label() string {
	switch t {
	case AttemptTypeSignup:
		return "sign-up"
	case AttemptTypePasswordReset:
		return "password reset"
	default:
		return "sign-in"
	}
}

// AttemptRecord is a single row of the auth_rate_limits table
type AttemptRecord struct {
	ID          string      `db:"id"`
	Identifier  string      `db:"identifier"`
	AttemptType AttemptType `db:"attempt_type"`
	AttemptedAt time.Time   `db:"attempted_at"`
}

// RateLimitPolicy is the sliding-window threshold for one attempt type
type RateLimitPolicy struct {
	MaxAttempts int
	Window      time.Duration
}

// Validate enforces MaxAttempts >= 1 and Window >= 1 minute
func (p RateLimitPolicy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1 (got %d)", p.MaxAttempts)
	}
	if p.Window < time.Minute {
		return fmt.Errorf("window must be at least 1m (got %s)", p.Window)
	}
	return nil
}

// WindowMinutes returns the window length in whole minutes
func (p RateLimitPolicy) WindowMinutes() int {
	return int(p.Window / time.Minute)
}

// RateLimitPolicies maps each attempt type to its policy
type RateLimitPolicies map[AttemptType]RateLimitPolicy

// DefaultRateLimitPolicies returns the production thresholds
func DefaultRateLimitPolicies() RateLimitPolicies {
	return RateLimitPolicies{
		AttemptTypeLogin:         {MaxAttempts: 5, Window: 15 * time.Minute},
		AttemptTypeSignup:        {MaxAttempts: 3, Window: 60 * time.Minute},
		AttemptTypePasswordReset: {MaxAttempts: 3, Window: 60 * time.Minute},
	}
}

// For returns the policy for t, falling back to the login policy
func (p RateLimitPolicies) For(t AttemptType) RateLimitPolicy {
	if policy, ok := p[t]; ok {
		return policy
	}
	return p[AttemptTypeLogin]
}

// MaxWindow is the longest window across all policies.
// Records older than this can never influence a decision.
func (p RateLimitPolicies) MaxWindow() time.Duration {
	var longest time.Duration
	for _, policy := range p {
		if policy.Window > longest {
			longest = policy.Window
		}
	}
	return longest
}

// Validate checks every policy and requires a login policy to exist
func (p RateLimitPolicies) Validate() error {
	if _, ok := p[AttemptTypeLogin]; !ok {
		return fmt.Errorf("login policy is required")
	}
	for attemptType, policy := range p {
		if err := policy.Validate(); err != nil {
			return fmt.Errorf("%s policy: %w", attemptType, err)
		}
	}
	return nil
}

// RateLimitDecision is the answer returned to check-rate-limit callers
type RateLimitDecision struct {
	Allowed    bool `json:"allowed"`
	Remaining  int  `json:"remaining"`
	RetryAfter *int `json:"retryAfter"`
}

// LockoutNotification is a one-way message sent when a caller gets locked out
type LockoutNotification struct {
	ID             string
	Email          string
	AttemptType    AttemptType
	LockoutMinutes int
}
