package auth

import (
	"time"

	"github.com/google/uuid"
)

// User is an account that owns buckets. PasswordHash never leaves the package: responses go
// through SafeUser.
type User struct {
	ID           uuid.UUID
	Email        string
	DisplayName  *string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SafeUser returns u without its password hash.
func (u User) SafeUser() User {
	u.PasswordHash = ""
	return u
}

// RegisterInput carries data for user registration.
type RegisterInput struct {
	Email       string
	Password    string
	DisplayName *string
}

// LoginInput carries login credentials.
type LoginInput struct {
	Email    string
	Password string
}

// TokenPair is a short-lived access token and the single-use refresh token that renews it.
type TokenPair struct {
	AccessToken        string
	AccessTokenExpiry  time.Time
	RefreshToken       string
	RefreshTokenExpiry time.Time
}

// AuthResult is what a successful register, login or refresh hands back.
type AuthResult struct {
	User   User
	Tokens TokenPair
}

// UserClaims is the identity carried by a validated access token.
type UserClaims struct {
	UserID    uuid.UUID
	Email     string
	ExpiresAt time.Time
	IssuedAt  time.Time
}
