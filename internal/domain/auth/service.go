package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"timetrack/internal/platform/apperr"
	"timetrack/internal/platform/revocation"
)

const MinPasswordLength = 8

var (
	ErrEmailTaken         = apperr.Conflict("email_taken", "an account with this email already exists").WithField("email", "already registered")
	ErrInvalidCredentials = apperr.Unauthorized("invalid_credentials", "invalid credentials")
	ErrInvalidEmail       = apperr.Validation("invalid_email", "a valid email is required").WithField("email", "must be a valid email")
	ErrWeakPassword       = apperr.Validation("weak_password", "password is too short").WithField("password", "must be at least 8 characters")
	ErrDisplayName        = apperr.Validation("display_name_required", "display name is required").WithField("displayName", "required")

	// ErrUserNotFound is returned by stores when no user matches.
	ErrUserNotFound = errors.New("user not found")
)

type UserStore interface {
	CreateUser(ctx context.Context, u User, passwordHash string) error
	FindCredentials(ctx context.Context, email string) (Credentials, error)
	UpdateLastLogin(ctx context.Context, userID string, at time.Time) error
}

type Service struct {
	store    UserStore
	revoked  revocation.Store
	secret   string
	tokenTTL time.Duration
	now      func() time.Time
}

func NewService(store UserStore, revoked revocation.Store, secret string, tokenTTL time.Duration) *Service {
	return &Service{
		store:    store,
		revoked:  revoked,
		secret:   secret,
		tokenTTL: tokenTTL,
		now:      time.Now,
	}
}

func (s *Service) Register(ctx context.Context, email, password, displayName string) (User, error) {
	u, hash, err := NewAccount(email, password, displayName, s.now())
	if err != nil {
		return User{}, err
	}
	if err := s.store.CreateUser(ctx, u, hash); err != nil {
		return User{}, err
	}
	return u, nil
}

var accountValidator = validator.New()

// NewAccount normalizes and validates a new user's fields and hashes the
// password. The user is not stored.
func NewAccount(email, password, displayName string, now time.Time) (User, string, error) {
	email = NormalizeEmail(email)
	if err := accountValidator.Var(email, "required,email"); err != nil {
		return User{}, "", ErrInvalidEmail
	}
	if len([]rune(password)) < MinPasswordLength {
		return User{}, "", ErrWeakPassword
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return User{}, "", ErrDisplayName
	}

	hash, err := HashPassword(password)
	if err != nil {
		return User{}, "", err
	}
	u := User{
		ID:          uuid.NewString(),
		Email:       email,
		DisplayName: displayName,
		IsActive:    true,
		CreatedAt:   now.UTC(),
	}
	return u, hash, nil
}

// Login never reveals whether the email exists.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	creds, err := s.store.FindCredentials(ctx, NormalizeEmail(email))
	if errors.Is(err, ErrUserNotFound) {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}
	if !creds.IsActive || CheckPassword(creds.PasswordHash, password) != nil {
		return Session{}, ErrInvalidCredentials
	}

	token, claims, err := GenerateToken(s.secret, Claims{UserID: creds.ID, Email: creds.Email}, s.tokenTTL)
	if err != nil {
		return Session{}, err
	}
	now := s.now().UTC()
	if err := s.store.UpdateLastLogin(ctx, creds.ID, now); err != nil {
		log.Warn().Err(err).Str("userId", creds.ID).Msg("update last login failed")
	} else {
		creds.LastLoginAt = &now
	}
	return Session{Token: token, ExpiresAt: claims.ExpiresAt.Time, User: creds.User}, nil
}

// Logout revokes the caller's token until it would have expired anyway.
func (s *Service) Logout(ctx context.Context, user UserContext) error {
	if user.TokenID == "" {
		return nil
	}
	return s.revoked.Revoke(ctx, user.TokenID, user.ExpiresAt)
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
