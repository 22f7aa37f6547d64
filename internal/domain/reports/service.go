package reports

import (
	"context"

	"timetrack/internal/domain/membership"
	"timetrack/internal/domain/timesheet"
)

// TimesheetReader applies the timesheet visibility rules.
type TimesheetReader interface {
	Get(ctx context.Context, actorID, orgID, id string) (timesheet.Summary, error)
	ListEntries(ctx context.Context, actorID, orgID, timesheetID string) ([]timesheet.Entry, error)
}

type Lookup interface {
	ProjectNames(ctx context.Context, orgID string, ids []string) (map[string]string, error)
	UserDisplayName(ctx context.Context, userID string) (string, error)
}

type Service struct {
	Timesheets TimesheetReader
	Lookup     Lookup
	Store      *Store
	Members    membership.Directory
}

func NewService(timesheets TimesheetReader, store *Store, members membership.Directory) *Service {
	return &Service{Timesheets: timesheets, Lookup: store, Store: store, Members: members}
}

// TimesheetPDF renders a timesheet the actor may view.
func (s *Service) TimesheetPDF(ctx context.Context, actorID, orgID, id string) ([]byte, timesheet.Summary, error) {
	ts, err := s.Timesheets.Get(ctx, actorID, orgID, id)
	if err != nil {
		return nil, timesheet.Summary{}, err
	}
	entries, err := s.Timesheets.ListEntries(ctx, actorID, orgID, id)
	if err != nil {
		return nil, timesheet.Summary{}, err
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ProjectID)
	}
	names, err := s.Lookup.ProjectNames(ctx, orgID, ids)
	if err != nil {
		return nil, timesheet.Summary{}, err
	}
	owner, err := s.Lookup.UserDisplayName(ctx, ts.UserID)
	if err != nil {
		return nil, timesheet.Summary{}, err
	}

	out, err := RenderTimesheet(ts, owner, entries, names)
	if err != nil {
		return nil, timesheet.Summary{}, err
	}
	return out, ts, nil
}

// JobRuns lists background runs recorded for the organization. Admins only.
func (s *Service) JobRuns(ctx context.Context, actorID, orgID string, filter JobRunFilter, limit, offset int) ([]JobRun, int, error) {
	if _, err := membership.RequireAnyRole(ctx, s.Members, actorID, orgID, membership.RoleAdmin); err != nil {
		return nil, 0, err
	}
	total, err := s.Store.CountJobRuns(ctx, orgID, filter)
	if err != nil {
		return nil, 0, err
	}
	runs, err := s.Store.ListJobRuns(ctx, orgID, filter, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return runs, total, nil
}
