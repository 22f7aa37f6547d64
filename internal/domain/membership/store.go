package membership

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"timetrack/internal/platform/db"
	"timetrack/internal/platform/querier"
)

type Store struct {
	DB querier.Querier
}

func NewStore(q querier.Querier) *Store {
	return &Store{DB: q}
}

const membershipColumns = "id, organization_id, user_id, role, is_active, created_at, updated_at"

type scanner interface {
	Scan(dest ...any) error
}

func scanMembership(row scanner, extra ...any) (Membership, error) {
	var m Membership
	var role string
	dest := append([]any{&m.ID, &m.OrganizationID, &m.UserID, &role, &m.IsActive, &m.CreatedAt, &m.UpdatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return Membership{}, err
	}
	parsed, err := ParseRole(role)
	if err != nil {
		return Membership{}, err
	}
	m.Role = parsed
	return m, nil
}

// validIDs reports whether both ids can be bound to the UUID columns. A
// malformed id can never match a row.
func validIDs(orgID, userID string) bool {
	if _, err := uuid.Parse(orgID); err != nil {
		return false
	}
	_, err := uuid.Parse(userID)
	return err == nil
}

func (s *Store) FindMembership(ctx context.Context, orgID, userID string) (Membership, error) {
	if !validIDs(orgID, userID) {
		return Membership{}, ErrNoMembership
	}
	m, err := scanMembership(s.DB.QueryRow(ctx, `
    SELECT `+membershipColumns+`
    FROM organization_members
    WHERE organization_id = $1 AND user_id = $2
  `, orgID, userID))
	if db.IsNoRows(err) {
		return Membership{}, ErrNoMembership
	}
	return m, err
}

func (s *Store) ActiveUserIDsWithRoles(ctx context.Context, orgID string, roles []Role) ([]string, error) {
	if _, err := uuid.Parse(orgID); err != nil {
		return nil, nil
	}
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, r.String())
	}
	rows, err := s.DB.Query(ctx, `
    SELECT user_id
    FROM organization_members
    WHERE organization_id = $1 AND is_active AND role = ANY($2)
    ORDER BY user_id
  `, orgID, names)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Upsert adds the user to the organization, or reactivates and re-roles an
// existing row.
func (s *Store) Upsert(ctx context.Context, id, orgID, userID string, role Role, now time.Time) (Membership, error) {
	return scanMembership(s.DB.QueryRow(ctx, `
    INSERT INTO organization_members (id, organization_id, user_id, role, is_active, created_at, updated_at)
    VALUES ($1,$2,$3,$4,TRUE,$5,$5)
    ON CONFLICT (organization_id, user_id)
    DO UPDATE SET role = EXCLUDED.role, is_active = TRUE, updated_at = EXCLUDED.updated_at
    RETURNING `+membershipColumns,
		id, orgID, userID, role.String(), now))
}

func (s *Store) UpdateMember(ctx context.Context, orgID, userID string, update MemberUpdate, now time.Time) (Membership, error) {
	if !validIDs(orgID, userID) {
		return Membership{}, ErrNoMembership
	}
	var role *string
	if update.Role != nil {
		name := update.Role.String()
		role = &name
	}
	m, err := scanMembership(s.DB.QueryRow(ctx, `
    UPDATE organization_members
    SET role = COALESCE($3, role),
        is_active = COALESCE($4, is_active),
        updated_at = $5
    WHERE organization_id = $1 AND user_id = $2
    RETURNING `+membershipColumns,
		orgID, userID, role, update.IsActive, now))
	if db.IsNoRows(err) {
		return Membership{}, ErrNoMembership
	}
	return m, err
}

func (s *Store) ListMembers(ctx context.Context, orgID string) ([]Member, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT m.id, m.organization_id, m.user_id, m.role, m.is_active, m.created_at, m.updated_at,
           u.email, u.display_name
    FROM organization_members m
    JOIN users u ON u.id = m.user_id
    WHERE m.organization_id = $1
    ORDER BY u.display_name, u.email
  `, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Member
	for rows.Next() {
		var member Member
		m, err := scanMembership(rows, &member.Email, &member.DisplayName)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		member.Membership = m
		out = append(out, member)
	}
	return out, rows.Err()
}

// CountActiveAdmins locks the organization's active admin rows until the
// transaction ends, so two concurrent demotions cannot both see a second
// admin.
func (s *Store) CountActiveAdmins(ctx context.Context, orgID string) (int, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id FROM organization_members
    WHERE organization_id = $1 AND is_active AND role = $2
    FOR UPDATE
  `, orgID, RoleAdmin.String())
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		count++
	}
	return count, rows.Err()
}
