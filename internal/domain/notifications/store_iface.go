package notifications

import (
	"context"
	"time"

	"timetrack/internal/domain/membership"
)

type StoreAPI interface {
	membership.Directory
	Writer
	ListForRecipient(ctx context.Context, orgID, userID string, unreadOnly bool, limit int) ([]Notification, error)
	CountUnread(ctx context.Context, orgID, userID string) (int, error)
	MarkRead(ctx context.Context, orgID, userID string, ids []string, at time.Time) (int64, error)
	MarkAllRead(ctx context.Context, orgID, userID string, at time.Time) (int64, error)
	CountSubmittedTimesheets(ctx context.Context, orgID string) (int, error)
	HasUnreadSince(ctx context.Context, orgID, userID string, typ Type, since time.Time) (bool, error)
	OrganizationsWithSubmittedTimesheets(ctx context.Context) ([]string, error)
}

// Transactor runs fn against a StoreAPI bound to one transaction.
type Transactor interface {
	InTx(ctx context.Context, fn func(StoreAPI) error) error
}
