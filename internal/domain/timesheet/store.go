package timesheet

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"timetrack/internal/domain/membership"
	"timetrack/internal/domain/notifications"
	"timetrack/internal/platform/db"
	"timetrack/internal/platform/querier"
)

type Store struct {
	DB querier.Querier
}

func NewStore(q querier.Querier) *Store {
	return &Store{DB: q}
}

const timesheetColumns = `id, organization_id, user_id, week_start_date, week_end_date, status,
      submitted_at, submit_comment, approved_by_user_id, approved_at, approval_comment,
      rejected_by_user_id, rejected_at, rejection_reason, locked_at, created_at, updated_at`

const entryColumns = `id, timesheet_id, project_id, work_date, start_time, end_time,
      duration_minutes, notes, is_deleted, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanTimesheet(row scanner) (Timesheet, error) {
	var ts Timesheet
	var status string
	err := row.Scan(&ts.ID, &ts.OrganizationID, &ts.UserID, &ts.WeekStartDate, &ts.WeekEndDate, &status,
		&ts.SubmittedAt, &ts.SubmitComment, &ts.ApprovedByUserID, &ts.ApprovedAt, &ts.ApprovalComment,
		&ts.RejectedByUserID, &ts.RejectedAt, &ts.RejectionReason, &ts.LockedAt, &ts.CreatedAt, &ts.UpdatedAt)
	if err != nil {
		return Timesheet{}, err
	}
	ts.Status = Status(status)
	return ts, nil
}

func scanEntry(row scanner) (Entry, error) {
	var e Entry
	var start, end pgtype.Time
	err := row.Scan(&e.ID, &e.TimesheetID, &e.ProjectID, &e.WorkDate, &start, &end,
		&e.DurationMinutes, &e.Notes, &e.IsDeleted, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return Entry{}, err
	}
	e.StartTime = clockFromPG(start)
	e.EndTime = clockFromPG(end)
	return e, nil
}

func (s *Store) UserDisplayName(ctx context.Context, userID string) (string, error) {
	var name string
	err := s.DB.QueryRow(ctx, `
    SELECT display_name FROM users WHERE id = $1
  `, userID).Scan(&name)
	if db.IsNoRows(err) {
		return "", nil
	}
	return name, err
}

func (s *Store) ProjectIsActiveInOrganization(ctx context.Context, orgID, projectID string) (bool, error) {
	var ok bool
	err := s.DB.QueryRow(ctx, `
    SELECT EXISTS (
      SELECT 1 FROM projects WHERE id = $1 AND organization_id = $2 AND is_active
    )
  `, projectID, orgID).Scan(&ok)
	return ok, err
}

func (s *Store) FindTimesheetByWeek(ctx context.Context, orgID, userID string, weekStart time.Time) (Timesheet, error) {
	ts, err := scanTimesheet(s.DB.QueryRow(ctx, `
    SELECT `+timesheetColumns+`
    FROM timesheets
    WHERE organization_id = $1 AND user_id = $2 AND week_start_date = $3
  `, orgID, userID, weekStart))
	if db.IsNoRows(err) {
		return Timesheet{}, ErrTimesheetNotFound
	}
	return ts, err
}

// InsertTimesheet reports ErrDuplicateWeek instead of raising when the
// week already exists, so the surrounding transaction stays usable.
func (s *Store) InsertTimesheet(ctx context.Context, ts Timesheet) error {
	tag, err := s.DB.Exec(ctx, `
    INSERT INTO timesheets (id, organization_id, user_id, week_start_date, week_end_date, status, created_at, updated_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
    ON CONFLICT ON CONSTRAINT timesheets_org_user_week_key DO NOTHING
  `, ts.ID, ts.OrganizationID, ts.UserID, ts.WeekStartDate, ts.WeekEndDate, string(ts.Status), ts.CreatedAt, ts.UpdatedAt)
	if db.IsUniqueViolation(err, "timesheets_org_user_week_key") {
		return ErrDuplicateWeek
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicateWeek
	}
	return nil
}

func (s *Store) GetTimesheet(ctx context.Context, orgID, id string, forUpdate bool) (Timesheet, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Timesheet{}, ErrTimesheetNotFound
	}
	query := `
    SELECT ` + timesheetColumns + `
    FROM timesheets
    WHERE organization_id = $1 AND id = $2
  `
	if forUpdate {
		query += "FOR UPDATE"
	}
	ts, err := scanTimesheet(s.DB.QueryRow(ctx, query, orgID, id))
	if db.IsNoRows(err) {
		return Timesheet{}, ErrTimesheetNotFound
	}
	return ts, err
}

func (s *Store) UpdateTimesheet(ctx context.Context, ts Timesheet) error {
	_, err := s.DB.Exec(ctx, `
    UPDATE timesheets SET
      status = $3, submitted_at = $4, submit_comment = $5,
      approved_by_user_id = $6, approved_at = $7, approval_comment = $8,
      rejected_by_user_id = $9, rejected_at = $10, rejection_reason = $11,
      locked_at = $12, updated_at = $13
    WHERE organization_id = $1 AND id = $2
  `, ts.OrganizationID, ts.ID, string(ts.Status), ts.SubmittedAt, ts.SubmitComment,
		ts.ApprovedByUserID, ts.ApprovedAt, ts.ApprovalComment,
		ts.RejectedByUserID, ts.RejectedAt, ts.RejectionReason,
		ts.LockedAt, ts.UpdatedAt)
	return err
}

func (s *Store) TouchTimesheet(ctx context.Context, id string, at time.Time) error {
	_, err := s.DB.Exec(ctx, `UPDATE timesheets SET updated_at = $2 WHERE id = $1`, id, at)
	return err
}

func (s *Store) ListTimesheets(ctx context.Context, filter ListFilter) ([]Timesheet, error) {
	clauses := []string{"organization_id = $1"}
	args := []any{filter.OrganizationID}
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if filter.UserID != "" {
		add("user_id = $%d", filter.UserID)
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if filter.From != nil {
		add("week_start_date >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("week_start_date <= $%d", *filter.To)
	}

	order := "week_start_date DESC"
	switch filter.Order {
	case OrderNewestFirstByUser:
		order = "week_start_date DESC, user_id"
	case OrderOldestSubmittedFirst:
		order = "week_start_date ASC, submitted_at ASC"
	}

	rows, err := s.DB.Query(ctx, `
    SELECT `+timesheetColumns+`
    FROM timesheets
    WHERE `+strings.Join(clauses, " AND ")+`
    ORDER BY `+order, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Timesheet
	for rows.Next() {
		ts, err := scanTimesheet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ts)
	}
	return out, rows.Err()
}

// TotalMinutes sums non-deleted entry minutes; timesheets without entries
// are absent from the map.
func (s *Store) TotalMinutes(ctx context.Context, timesheetIDs []string) (map[string]int, error) {
	out := make(map[string]int, len(timesheetIDs))
	if len(timesheetIDs) == 0 {
		return out, nil
	}
	rows, err := s.DB.Query(ctx, `
    SELECT timesheet_id, COALESCE(SUM(duration_minutes), 0)
    FROM timesheet_entries
    WHERE timesheet_id = ANY($1::uuid[]) AND NOT is_deleted
    GROUP BY timesheet_id
  `, timesheetIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var total int
		if err := rows.Scan(&id, &total); err != nil {
			return nil, err
		}
		out[id] = total
	}
	return out, rows.Err()
}

func (s *Store) CountActiveEntries(ctx context.Context, timesheetID string) (int, error) {
	var total int
	err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1) FROM timesheet_entries WHERE timesheet_id = $1 AND NOT is_deleted
  `, timesheetID).Scan(&total)
	return total, err
}

func (s *Store) ListEntries(ctx context.Context, timesheetID string) ([]Entry, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT `+entryColumns+`
    FROM timesheet_entries
    WHERE timesheet_id = $1 AND NOT is_deleted
    ORDER BY work_date, start_time NULLS LAST, created_at
  `, timesheetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) GetEntry(ctx context.Context, timesheetID, entryID string) (Entry, error) {
	if _, err := uuid.Parse(entryID); err != nil {
		return Entry{}, ErrEntryNotFound
	}
	e, err := scanEntry(s.DB.QueryRow(ctx, `
    SELECT `+entryColumns+`
    FROM timesheet_entries
    WHERE timesheet_id = $1 AND id = $2
  `, timesheetID, entryID))
	if db.IsNoRows(err) {
		return Entry{}, ErrEntryNotFound
	}
	return e, err
}

func (s *Store) InsertEntry(ctx context.Context, e Entry) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO timesheet_entries (id, timesheet_id, project_id, work_date, start_time, end_time, duration_minutes, notes, is_deleted, created_at, updated_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
  `, e.ID, e.TimesheetID, e.ProjectID, e.WorkDate, clockToPG(e.StartTime), clockToPG(e.EndTime),
		e.DurationMinutes, e.Notes, e.IsDeleted, e.CreatedAt, e.UpdatedAt)
	return err
}

func (s *Store) UpdateEntry(ctx context.Context, e Entry) error {
	_, err := s.DB.Exec(ctx, `
    UPDATE timesheet_entries SET
      project_id = $3, work_date = $4, start_time = $5, end_time = $6,
      duration_minutes = $7, notes = $8, is_deleted = $9, updated_at = $10
    WHERE timesheet_id = $1 AND id = $2
  `, e.TimesheetID, e.ID, e.ProjectID, e.WorkDate, clockToPG(e.StartTime), clockToPG(e.EndTime),
		e.DurationMinutes, e.Notes, e.IsDeleted, e.UpdatedAt)
	return err
}

type (
	members  = membership.Store
	notifier = notifications.Store
)

type txStore struct {
	*members
	*notifier
	*Store
}

// PGTransactor binds the timesheet, membership and notification stores to
// one pgx transaction per call.
type PGTransactor struct {
	Pool *pgxpool.Pool
}

func NewPGTransactor(pool *pgxpool.Pool) *PGTransactor {
	return &PGTransactor{Pool: pool}
}

func (t *PGTransactor) InTx(ctx context.Context, fn func(StoreAPI) error) error {
	return db.WithTx(ctx, t.Pool, func(tx pgx.Tx) error {
		return fn(txStore{
			members:  membership.NewStore(tx),
			notifier: notifications.NewStore(tx),
			Store:    NewStore(tx),
		})
	})
}
