package db

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"timetrack/internal/platform/config"
)

// HashFunc hashes the seeded admin password.
type HashFunc func(password string) (string, error)

// Seed creates the configured organization and its admin user when absent.
// Running it again changes nothing.
func Seed(ctx context.Context, pool *pgxpool.Pool, cfg config.Config, hash HashFunc) error {
	return WithTx(ctx, pool, func(tx pgx.Tx) error {
		orgID, err := ensureOrganization(ctx, tx, cfg.SeedOrgName)
		if err != nil {
			return err
		}
		userID, err := ensureAdminUser(ctx, tx, cfg.SeedAdminEmail, cfg.SeedAdminPassword, hash)
		if err != nil || userID == "" {
			return err
		}
		_, err = tx.Exec(ctx, `
      INSERT INTO organization_members (organization_id, user_id, role)
      VALUES ($1, $2, 'Admin')
      ON CONFLICT (organization_id, user_id) DO NOTHING
    `, orgID, userID)
		return err
	})
}

func ensureOrganization(ctx context.Context, tx pgx.Tx, name string) (string, error) {
	name = strings.TrimSpace(name)
	var id string
	err := tx.QueryRow(ctx, "SELECT id FROM organizations WHERE name = $1 ORDER BY created_at LIMIT 1", name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !IsNoRows(err) {
		return "", err
	}
	err = tx.QueryRow(ctx, "INSERT INTO organizations (name) VALUES ($1) RETURNING id", name).Scan(&id)
	return id, err
}

// ensureAdminUser returns "" when no admin credentials are configured.
func ensureAdminUser(ctx context.Context, tx pgx.Tx, email, password string, hash HashFunc) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || strings.TrimSpace(password) == "" {
		return "", nil
	}

	var id string
	err := tx.QueryRow(ctx, "SELECT id FROM users WHERE lower(email) = $1", email).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !IsNoRows(err) {
		return "", err
	}

	passwordHash, err := hash(password)
	if err != nil {
		return "", err
	}
	err = tx.QueryRow(ctx, `
    INSERT INTO users (email, display_name, password_hash)
    VALUES ($1, $2, $3)
    RETURNING id
  `, email, "Administrator", passwordHash).Scan(&id)
	return id, err
}
