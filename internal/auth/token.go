package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/BradenHooton/chefguard/internal/models"
)

// Roles accepted on the function endpoints
const (
	RoleAnon          = "anon"
	RoleAuthenticated = "authenticated"
	RoleServiceRole   = "service_role"
)

// FunctionTokenVerifier validates the HS256 tokens that platform clients send
// to the function endpoints: the public anon key, user session tokens and the
// service role key.
type FunctionTokenVerifier struct {
	secret []byte
	roles  map[string]bool
}

// NewFunctionTokenVerifier creates a verifier that accepts the given roles.
// With no roles it accepts anon, authenticated and service_role.
func NewFunctionTokenVerifier(secret string, roles ...string) *FunctionTokenVerifier {
	if len(roles) == 0 {
		roles = []string{RoleAnon, RoleAuthenticated, RoleServiceRole}
	}

	allowed := make(map[string]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}

	return &FunctionTokenVerifier{
		secret: []byte(secret),
		roles:  allowed,
	}
}

// ValidateToken verifies a token and returns its claims
func (v *FunctionTokenVerifier) ValidateToken(tokenString string) (*models.FunctionClaims, error) {
	claims := &models.FunctionClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(30*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return nil, models.ErrUnauthorized
	}

	if !v.roles[claims.Role] {
		return nil, fmt.Errorf("%w: role %q not accepted", models.ErrUnauthorized, claims.Role)
	}

	return claims, nil
}

// IssueToken signs claims for role valid for ttl. Used by operators and tests
// to mint keys for a self-hosted deployment.
func (v *FunctionTokenVerifier) IssueToken(role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &models.FunctionClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
