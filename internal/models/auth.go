package models

import "github.com/golang-jwt/jwt/v5"

// UserRole defines access levels on the HTTP shell.
type UserRole string

const (
	RolePlanner UserRole = "PLANNER"
	RoleViewer  UserRole = "VIEWER"
	RoleAdmin   UserRole = "ADMIN"
)

// JWTClaims represents the access-token payload issued by the login service.
type JWTClaims struct {
	UserID string   `json:"user_id"`
	Role   UserRole `json:"role"`
	Email  string   `json:"email"`
	jwt.RegisteredClaims
}
