package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/abduss/bucketgate/internal/config"
	"github.com/abduss/bucketgate/internal/logger"
)

const (
	minPasswordLength = 8
	maxPasswordLength = 72 // bcrypt limit
)

// userStore abstracts the persistence layer.
type userStore interface {
	CreateUser(ctx context.Context, email, passwordHash string, displayName *string) (User, error)
	FindUserByEmail(ctx context.Context, email string) (User, error)
	FindUserByID(ctx context.Context, id uuid.UUID) (User, error)
	DeleteUser(ctx context.Context, id uuid.UUID) error
	StoreRefreshToken(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error
	RevokeToken(ctx context.Context, userID uuid.UUID, tokenHash string) error
	ConsumeRefreshToken(ctx context.Context, tokenHash string, now time.Time) (uuid.UUID, error)
}

// bucketCounter reports how many buckets a user owns.
type bucketCounter interface {
	CountByOwner(ctx context.Context, ownerID uuid.UUID) (int, error)
}

// Service handles accounts and the JWT sessions that authenticate bucket owners.
type Service struct {
	store   userStore
	buckets bucketCounter
	cfg     config.AuthConfig
	logger  *zap.Logger
	nowFunc func() time.Time
	parser  *jwt.Parser
}

// NewService creates a Service with dependencies.
func NewService(store userStore, buckets bucketCounter, cfg config.AuthConfig, log *zap.Logger) *Service {
	s := &Service{
		store:   store,
		buckets: buckets,
		cfg:     cfg,
		logger:  logger.OrNop(log),
		nowFunc: time.Now,
	}
	s.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(tokenAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return s.nowFunc() }),
	)
	return s
}

// Register creates a new user, hashing the password and issuing tokens.
func (s *Service) Register(ctx context.Context, input RegisterInput) (AuthResult, error) {
	if err := validateCredentials(input.Email, input.Password); err != nil {
		return AuthResult{}, ErrInvalidRegistration
	}

	hashedPassword, err := hashPassword(input.Password, s.cfg.BcryptCost)
	if err != nil {
		return AuthResult{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.store.CreateUser(ctx, strings.ToLower(input.Email), hashedPassword, input.DisplayName)
	if err != nil {
		if errors.Is(err, ErrEmailAlreadyExists) {
			return AuthResult{}, ErrEmailAlreadyExists
		}
		return AuthResult{}, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID.String()))
	return s.issueTokens(ctx, user)
}

// Login authenticates credentials and issues a fresh token pair.
func (s *Service) Login(ctx context.Context, input LoginInput) (AuthResult, error) {
	if err := validateCredentials(input.Email, input.Password); err != nil {
		return AuthResult{}, ErrInvalidCredentials
	}

	user, err := s.store.FindUserByEmail(ctx, strings.ToLower(input.Email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return AuthResult{}, ErrInvalidCredentials
		}
		return AuthResult{}, fmt.Errorf("find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return AuthResult{}, ErrInvalidCredentials
	}

	return s.issueTokens(ctx, user)
}

// Refresh trades a refresh token for a new token pair. The presented token is consumed, so each
// refresh token works exactly once.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (AuthResult, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return AuthResult{}, ErrUnauthorized
	}

	userID, err := s.store.ConsumeRefreshToken(ctx, hashRefreshToken(refreshToken, s.cfg.RefreshTokenSecret), s.nowFunc())
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			return AuthResult{}, ErrUnauthorized
		}
		return AuthResult{}, fmt.Errorf("consume refresh token: %w", err)
	}

	user, err := s.store.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return AuthResult{}, ErrUnauthorized
		}
		return AuthResult{}, fmt.Errorf("find user: %w", err)
	}

	return s.issueTokens(ctx, user)
}

// Logout revokes a refresh token issued to the user.
func (s *Service) Logout(ctx context.Context, userID uuid.UUID, refreshToken string) error {
	if strings.TrimSpace(refreshToken) == "" {
		return ErrUnauthorized
	}
	hash := hashRefreshToken(refreshToken, s.cfg.RefreshTokenSecret)
	if err := s.store.RevokeToken(ctx, userID, hash); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// Profile returns the user behind an access token without its password hash.
func (s *Service) Profile(ctx context.Context, userID uuid.UUID) (User, error) {
	user, err := s.store.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("find user: %w", err)
	}
	return user.SafeUser(), nil
}

// DeleteAccount removes a user. Accounts that still own buckets are refused rather than
// cascading, so bucket keys and stored objects are never orphaned by an account removal.
func (s *Service) DeleteAccount(ctx context.Context, userID uuid.UUID) error {
	owned, err := s.buckets.CountByOwner(ctx, userID)
	if err != nil {
		return fmt.Errorf("count owned buckets: %w", err)
	}
	if owned > 0 {
		return ErrUserOwnsBuckets
	}

	if err := s.store.DeleteUser(ctx, userID); err != nil {
		if errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrUserOwnsBuckets) {
			return err
		}
		return fmt.Errorf("delete user: %w", err)
	}

	s.logger.Info("account deleted", zap.String("user_id", userID.String()))
	return nil
}

func validateCredentials(email, password string) error {
	if strings.TrimSpace(email) == "" {
		return ErrInvalidCredentials
	}
	if len(password) < minPasswordLength || len(password) > maxPasswordLength {
		return ErrInvalidCredentials
	}
	return nil
}
