package auth

import (
	"context"
	"time"

	"timetrack/internal/platform/db"
	"timetrack/internal/platform/querier"
)

type Store struct {
	DB querier.Querier
}

func NewStore(q querier.Querier) *Store {
	return &Store{DB: q}
}

const userColumns = "id, email, display_name, is_active, last_login_at, created_at"

func (s *Store) CreateUser(ctx context.Context, u User, passwordHash string) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO users (id, email, display_name, password_hash, is_active, created_at, updated_at)
    VALUES ($1,$2,$3,$4,$5,$6,$6)
  `, u.ID, u.Email, u.DisplayName, passwordHash, u.IsActive, u.CreatedAt)
	if db.IsUniqueViolation(err, "users_email_key") {
		return ErrEmailTaken
	}
	return err
}

func (s *Store) FindCredentials(ctx context.Context, email string) (Credentials, error) {
	var c Credentials
	err := s.DB.QueryRow(ctx, `
    SELECT `+userColumns+`, password_hash
    FROM users
    WHERE lower(email) = lower($1)
  `, email).Scan(&c.ID, &c.Email, &c.DisplayName, &c.IsActive, &c.LastLoginAt, &c.CreatedAt, &c.PasswordHash)
	if db.IsNoRows(err) {
		return Credentials{}, ErrUserNotFound
	}
	return c, err
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (User, error) {
	c, err := s.FindCredentials(ctx, email)
	return c.User, err
}

func (s *Store) UpdateLastLogin(ctx context.Context, userID string, at time.Time) error {
	_, err := s.DB.Exec(ctx, "UPDATE users SET last_login_at = $2 WHERE id = $1", userID, at)
	return err
}
