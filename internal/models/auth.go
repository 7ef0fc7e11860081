package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims represents the access token payload issued by the LMS single sign-on.
type JWTClaims struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	jwt.RegisteredClaims
}

// ManagerContext is attached to requests that passed the school manager gate.
type ManagerContext struct {
	UserID int64  `json:"user_id"`
	Tenant Tenant `json:"tenant"`
}
