package organization

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"timetrack/internal/domain/auth"
	"timetrack/internal/domain/membership"
	"timetrack/internal/platform/db"
	"timetrack/internal/platform/querier"
)

type Store struct {
	DB querier.Querier
}

func NewStore(q querier.Querier) *Store {
	return &Store{DB: q}
}

func (s *Store) InsertOrganization(ctx context.Context, org Organization) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO organizations (id, name, is_active, created_at, updated_at)
    VALUES ($1,$2,$3,$4,$5)
  `, org.ID, org.Name, org.IsActive, org.CreatedAt, org.UpdatedAt)
	return err
}

func (s *Store) GetOrganization(ctx context.Context, id string) (Organization, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Organization{}, ErrNotFound
	}
	var org Organization
	err := s.DB.QueryRow(ctx, `
    SELECT id, name, is_active, created_at, updated_at FROM organizations WHERE id = $1
  `, id).Scan(&org.ID, &org.Name, &org.IsActive, &org.CreatedAt, &org.UpdatedAt)
	if db.IsNoRows(err) {
		return Organization{}, ErrNotFound
	}
	return org, err
}

func (s *Store) UpdateOrganization(ctx context.Context, org Organization) error {
	_, err := s.DB.Exec(ctx, `
    UPDATE organizations SET name = $2, is_active = $3, updated_at = $4 WHERE id = $1
  `, org.ID, org.Name, org.IsActive, org.UpdatedAt)
	return err
}

func (s *Store) ListForUser(ctx context.Context, userID string) ([]Summary, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT o.id, o.name, o.is_active, o.created_at, o.updated_at, m.role
    FROM organizations o
    JOIN organization_members m ON m.organization_id = o.id
    WHERE m.user_id = $1 AND m.is_active AND o.is_active
    ORDER BY o.name, o.id
  `, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Summary{}
	for rows.Next() {
		var item Summary
		var role string
		if err := rows.Scan(&item.ID, &item.Name, &item.IsActive, &item.CreatedAt, &item.UpdatedAt, &role); err != nil {
			return nil, err
		}
		if item.Role, err = membership.ParseRole(role); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (s *Store) FindUserIDByEmail(ctx context.Context, email string) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    SELECT id FROM users WHERE lower(email) = lower($1) AND is_active
  `, email).Scan(&id)
	if db.IsNoRows(err) {
		return "", ErrUserNotFound
	}
	return id, err
}

type (
	members = membership.Store
	users   = auth.Store
)

type txStore struct {
	*members
	*users
	*Store
}

type PGTransactor struct {
	Pool *pgxpool.Pool
}

func NewPGTransactor(pool *pgxpool.Pool) *PGTransactor {
	return &PGTransactor{Pool: pool}
}

func (t *PGTransactor) InTx(ctx context.Context, fn func(StoreAPI) error) error {
	return db.WithTx(ctx, t.Pool, func(tx pgx.Tx) error {
		return fn(txStore{members: membership.NewStore(tx), users: auth.NewStore(tx), Store: NewStore(tx)})
	})
}
