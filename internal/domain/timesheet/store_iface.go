package timesheet

import (
	"context"
	"time"

	"timetrack/internal/domain/membership"
	"timetrack/internal/domain/notifications"
)

type StoreAPI interface {
	membership.Directory
	notifications.Writer

	UserDisplayName(ctx context.Context, userID string) (string, error)
	ProjectIsActiveInOrganization(ctx context.Context, orgID, projectID string) (bool, error)

	FindTimesheetByWeek(ctx context.Context, orgID, userID string, weekStart time.Time) (Timesheet, error)
	InsertTimesheet(ctx context.Context, ts Timesheet) error
	GetTimesheet(ctx context.Context, orgID, id string, forUpdate bool) (Timesheet, error)
	UpdateTimesheet(ctx context.Context, ts Timesheet) error
	TouchTimesheet(ctx context.Context, id string, at time.Time) error
	ListTimesheets(ctx context.Context, filter ListFilter) ([]Timesheet, error)
	TotalMinutes(ctx context.Context, timesheetIDs []string) (map[string]int, error)

	CountActiveEntries(ctx context.Context, timesheetID string) (int, error)
	ListEntries(ctx context.Context, timesheetID string) ([]Entry, error)
	GetEntry(ctx context.Context, timesheetID, entryID string) (Entry, error)
	InsertEntry(ctx context.Context, e Entry) error
	UpdateEntry(ctx context.Context, e Entry) error
}

// Transactor runs fn against a StoreAPI bound to a single transaction.
// fn's error, or a cancelled ctx, rolls everything back.
type Transactor interface {
	InTx(ctx context.Context, fn func(StoreAPI) error) error
}
