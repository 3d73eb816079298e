package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Login     string `json:"login" validate:"required"`
	Password  string `json:"password" validate:"required"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// LoginResponse returns the issued token and user info.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresIn   int64     `json:"expires_in"`
	User        UserInfo  `json:"user"`
	IssuedAt    time.Time `json:"issued_at"`
}

// UserInfo describes the authenticated user in responses.
type UserInfo struct {
	ID       string     `json:"id"`
	Login    string     `json:"login"`
	Email    string     `json:"email"`
	FullName string     `json:"full_name"`
	Role     PersonRole `json:"role"`
}

// SessionClaims represents the JWT payload for access tokens. The registered
// ID doubles as the server-side idle session key.
type SessionClaims struct {
	UserID   string     `json:"user_id"`
	Role     PersonRole `json:"role"`
	Login    string     `json:"login"`
	Email    string     `json:"email"`
	FullName string     `json:"full_name"`
	jwt.RegisteredClaims
}

// Session is the server-side record backing the idle timeout. It lives in
// Redis under the token ID and is refreshed on every authenticated request.
type Session struct {
	UserID    string    `json:"user_id"`
	Login     string    `json:"login"`
	Role      string    `json:"role"`
	IP        string    `json:"ip,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
