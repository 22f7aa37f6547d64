package project

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"timetrack/internal/domain/membership"
	"timetrack/internal/platform/db"
	"timetrack/internal/platform/querier"
)

const (
	nameConstraint       = "projects_org_name_key"
	assignmentConstraint = "project_assignments_project_user_key"
)

type Store struct {
	DB querier.Querier
}

func NewStore(q querier.Querier) *Store {
	return &Store{DB: q}
}

func (s *Store) ListClients(ctx context.Context, orgID string) ([]Client, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, organization_id, name, is_active, created_at, updated_at
    FROM clients
    WHERE organization_id = $1
    ORDER BY name, id
  `, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Client{}
	for rows.Next() {
		var c Client
		if err := rows.Scan(&c.ID, &c.OrganizationID, &c.Name, &c.IsActive, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) InsertClient(ctx context.Context, c Client) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO clients (id, organization_id, name, is_active, created_at, updated_at)
    VALUES ($1,$2,$3,$4,$5,$6)
  `, c.ID, c.OrganizationID, c.Name, c.IsActive, c.CreatedAt, c.UpdatedAt)
	return err
}

func (s *Store) ClientInOrganization(ctx context.Context, orgID, clientID string) (bool, error) {
	if _, err := uuid.Parse(clientID); err != nil {
		return false, nil
	}
	var ok bool
	err := s.DB.QueryRow(ctx, `
    SELECT EXISTS (SELECT 1 FROM clients WHERE id = $1 AND organization_id = $2)
  `, clientID, orgID).Scan(&ok)
	return ok, err
}

func (s *Store) GetClient(ctx context.Context, orgID, id string) (Client, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Client{}, ErrClientMissing
	}
	var c Client
	err := s.DB.QueryRow(ctx, `
    SELECT id, organization_id, name, is_active, created_at, updated_at
    FROM clients
    WHERE organization_id = $1 AND id = $2
  `, orgID, id).Scan(&c.ID, &c.OrganizationID, &c.Name, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if db.IsNoRows(err) {
		return Client{}, ErrClientMissing
	}
	return c, err
}

func (s *Store) UpdateClient(ctx context.Context, c Client) error {
	_, err := s.DB.Exec(ctx, `
    UPDATE clients SET name = $3, is_active = $4, updated_at = $5
    WHERE organization_id = $1 AND id = $2
  `, c.OrganizationID, c.ID, c.Name, c.IsActive, c.UpdatedAt)
	return err
}

// DeleteClient removes the client. Its projects keep existing with no
// client.
func (s *Store) DeleteClient(ctx context.Context, orgID, id string) error {
	tag, err := s.DB.Exec(ctx, `DELETE FROM clients WHERE organization_id = $1 AND id = $2`, orgID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrClientMissing
	}
	return nil
}

const projectColumns = "id, organization_id, client_id, name, code, is_active, created_at, updated_at"

type scanner interface {
	Scan(dest ...any) error
}

func scanProject(row scanner) (Project, error) {
	var p Project
	err := row.Scan(&p.ID, &p.OrganizationID, &p.ClientID, &p.Name, &p.Code, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (s *Store) ListProjects(ctx context.Context, orgID string, activeOnly bool) ([]Project, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT `+projectColumns+`
    FROM projects
    WHERE organization_id = $1 AND (NOT $2 OR is_active)
    ORDER BY name, id
  `, orgID, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) GetProject(ctx context.Context, orgID, id string) (Project, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Project{}, ErrNotFound
	}
	p, err := scanProject(s.DB.QueryRow(ctx, `
    SELECT `+projectColumns+`
    FROM projects
    WHERE organization_id = $1 AND id = $2
  `, orgID, id))
	if db.IsNoRows(err) {
		return Project{}, ErrNotFound
	}
	return p, err
}

func (s *Store) InsertProject(ctx context.Context, p Project) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO projects (id, organization_id, client_id, name, code, is_active, created_at, updated_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
  `, p.ID, p.OrganizationID, p.ClientID, p.Name, p.Code, p.IsActive, p.CreatedAt, p.UpdatedAt)
	if db.IsUniqueViolation(err, nameConstraint) {
		return ErrNameTaken
	}
	return err
}

func (s *Store) UpdateProject(ctx context.Context, p Project) error {
	_, err := s.DB.Exec(ctx, `
    UPDATE projects
    SET client_id = $3, name = $4, code = $5, is_active = $6, updated_at = $7
    WHERE organization_id = $1 AND id = $2
  `, p.OrganizationID, p.ID, p.ClientID, p.Name, p.Code, p.IsActive, p.UpdatedAt)
	if db.IsUniqueViolation(err, nameConstraint) {
		return ErrNameTaken
	}
	return err
}

const assignmentColumns = "id, organization_id, project_id, user_id, assigned_by_user_id, assigned_at"

func scanAssignment(row scanner) (Assignment, error) {
	var a Assignment
	err := row.Scan(&a.ID, &a.OrganizationID, &a.ProjectID, &a.UserID, &a.AssignedByUserID, &a.AssignedAt)
	return a, err
}

func (s *Store) ListAssignments(ctx context.Context, orgID, projectID string) ([]Assignment, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT `+assignmentColumns+`
    FROM project_assignments
    WHERE organization_id = $1 AND project_id = $2
    ORDER BY assigned_at, id
  `, orgID, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Assignment{}
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) FindAssignment(ctx context.Context, projectID, userID string) (Assignment, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return Assignment{}, ErrAssignmentNotFound
	}
	a, err := scanAssignment(s.DB.QueryRow(ctx, `
    SELECT `+assignmentColumns+`
    FROM project_assignments
    WHERE project_id = $1 AND user_id = $2
  `, projectID, userID))
	if db.IsNoRows(err) {
		return Assignment{}, ErrAssignmentNotFound
	}
	return a, err
}

func (s *Store) InsertAssignment(ctx context.Context, a Assignment) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO project_assignments (id, organization_id, project_id, user_id, assigned_by_user_id, assigned_at)
    VALUES ($1,$2,$3,$4,$5,$6)
  `, a.ID, a.OrganizationID, a.ProjectID, a.UserID, a.AssignedByUserID, a.AssignedAt)
	if db.IsUniqueViolation(err, assignmentConstraint) {
		return ErrAlreadyAssigned
	}
	return err
}

func (s *Store) DeleteAssignment(ctx context.Context, projectID, userID string) error {
	if _, err := uuid.Parse(userID); err != nil {
		return ErrAssignmentNotFound
	}
	tag, err := s.DB.Exec(ctx, `DELETE FROM project_assignments WHERE project_id = $1 AND user_id = $2`, projectID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAssignmentNotFound
	}
	return nil
}

type members = membership.Store

type txStore struct {
	*members
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
		return fn(txStore{members: membership.NewStore(tx), Store: NewStore(tx)})
	})
}
