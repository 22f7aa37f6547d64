package notifications

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

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

func (s *Store) InsertNotifications(ctx context.Context, items []Notification) error {
	for _, n := range items {
		if _, err := s.DB.Exec(ctx, `
    INSERT INTO notifications (id, organization_id, recipient_user_id, actor_user_id, timesheet_id, type, title, message, created_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
  `, n.ID, n.OrganizationID, n.RecipientUserID, n.ActorUserID, n.TimesheetID, string(n.Type), n.Title, n.Message, n.CreatedAt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) ListForRecipient(ctx context.Context, orgID, userID string, unreadOnly bool, limit int) ([]Notification, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, organization_id, recipient_user_id, actor_user_id, timesheet_id, type, title, message, created_at, read_at
    FROM notifications
    WHERE organization_id = $1 AND recipient_user_id = $2
      AND (NOT $3 OR read_at IS NULL)
    ORDER BY created_at DESC, id
    LIMIT $4
  `, orgID, userID, unreadOnly, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Notification, 0, limit)
	for rows.Next() {
		var n Notification
		var typ string
		if err := rows.Scan(&n.ID, &n.OrganizationID, &n.RecipientUserID, &n.ActorUserID, &n.TimesheetID, &typ, &n.Title, &n.Message, &n.CreatedAt, &n.ReadAt); err != nil {
			return nil, err
		}
		n.Type = Type(typ)
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Store) CountUnread(ctx context.Context, orgID, userID string) (int, error) {
	var total int
	err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1) FROM notifications
    WHERE organization_id = $1 AND recipient_user_id = $2 AND read_at IS NULL
  `, orgID, userID).Scan(&total)
	return total, err
}

// MarkRead only touches unread rows so an existing read_at never advances.
func (s *Store) MarkRead(ctx context.Context, orgID, userID string, ids []string, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := s.DB.Exec(ctx, `
    UPDATE notifications SET read_at = $4
    WHERE organization_id = $1 AND recipient_user_id = $2 AND id = ANY($3::uuid[]) AND read_at IS NULL
  `, orgID, userID, ids, at)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *Store) MarkAllRead(ctx context.Context, orgID, userID string, at time.Time) (int64, error) {
	tag, err := s.DB.Exec(ctx, `
    UPDATE notifications SET read_at = $3
    WHERE organization_id = $1 AND recipient_user_id = $2 AND read_at IS NULL
  `, orgID, userID, at)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *Store) CountSubmittedTimesheets(ctx context.Context, orgID string) (int, error) {
	var total int
	err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1) FROM timesheets WHERE organization_id = $1 AND status = 'Submitted'
  `, orgID).Scan(&total)
	return total, err
}

func (s *Store) HasUnreadSince(ctx context.Context, orgID, userID string, typ Type, since time.Time) (bool, error) {
	var exists bool
	err := s.DB.QueryRow(ctx, `
    SELECT EXISTS (
      SELECT 1 FROM notifications
      WHERE organization_id = $1 AND recipient_user_id = $2 AND type = $3
        AND read_at IS NULL AND created_at >= $4
    )
  `, orgID, userID, string(typ), since).Scan(&exists)
	return exists, err
}

func (s *Store) OrganizationsWithSubmittedTimesheets(ctx context.Context) ([]string, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT DISTINCT t.organization_id
    FROM timesheets t
    JOIN organizations o ON o.id = t.organization_id
    WHERE t.status = 'Submitted' AND o.is_active
  `)
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

type members = membership.Store

type txStore struct {
	*members
	*Store
}

// PGTransactor binds the notification and membership stores to one pgx
// transaction per call.
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
