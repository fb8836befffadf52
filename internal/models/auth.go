package models

import "github.com/golang-jwt/jwt/v5"

// FunctionClaims are the claims carried by platform API keys and user
// session tokens presented to the function endpoints.
type FunctionClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}
