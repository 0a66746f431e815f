package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims represents the payload of access tokens minted by the auth service.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}
