package timesheet_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timetrack/internal/domain/membership"
	"timetrack/internal/domain/notifications"
	"timetrack/internal/domain/timesheet"
	"timetrack/internal/platform/apperr"
	"timetrack/internal/platform/optional"
	"timetrack/internal/testsupport/memdb"
)

type fixture struct {
	db       *memdb.DB
	svc      *timesheet.Service
	org      string
	otherOrg string
	admin    string
	manager  string
	employee string
	peer     string
	project  string
}

var week = time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

func newFixture(t *testing.T, policy timesheet.Policy) fixture {
	t.Helper()
	db := memdb.New()
	f := fixture{db: db}
	f.org = db.AddOrganization()
	f.otherOrg = db.AddOrganization()
	f.admin = db.AddUser("admin@example.com", "Ada Admin")
	f.manager = db.AddUser("manager@example.com", "Max Manager")
	f.employee = db.AddUser("employee@example.com", "Eve Employee")
	f.peer = db.AddUser("peer@example.com", "Pat Peer")
	db.AddMember(f.org, f.admin, membership.RoleAdmin)
	db.AddMember(f.org, f.manager, membership.RoleManager)
	db.AddMember(f.org, f.employee, membership.RoleEmployee)
	db.AddMember(f.org, f.peer, membership.RoleEmployee)
	f.project = db.AddProject(f.org, "Internal", true)
	f.svc = timesheet.NewService(db.Timesheets(), notifications.NewDispatcher(nil), policy)
	return f
}

func (f fixture) draftWithEntry(t *testing.T) timesheet.Summary {
	t.Helper()
	ctx := context.Background()
	ts, err := f.svc.Create(ctx, f.employee, f.org, week)
	require.NoError(t, err)
	_, err = f.svc.CreateEntry(ctx, f.employee, f.org, ts.ID, timesheet.EntryInput{
		ProjectID: f.project,
		WorkDate:  week.AddDate(0, 0, 1),
		StartTime: clock(9, 0),
		EndTime:   clock(12, 0),
	})
	require.NoError(t, err)
	return ts
}

func clock(h, m int) *timesheet.ClockTime {
	c := timesheet.Clock(h, m)
	return &c
}

func minutes(v int) *int {
	return &v
}

func TestLifecycleScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, timesheet.Policy{})

	ts, err := f.svc.Create(ctx, f.employee, f.org, week)
	require.NoError(t, err)
	assert.Equal(t, timesheet.StatusDraft, ts.Status)
	assert.Equal(t, time.Date(2026, 1, 11, 0, 0, 0, 0, time.UTC), ts.WeekEndDate)

	entry, err := f.svc.CreateEntry(ctx, f.employee, f.org, ts.ID, timesheet.EntryInput{
		ProjectID: f.project,
		WorkDate:  time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC),
		StartTime: clock(9, 0),
		EndTime:   clock(12, 0),
	})
	require.NoError(t, err)
	assert.Equal(t, 180, entry.DurationMinutes)

	submitted, err := f.svc.Submit(ctx, f.employee, f.org, ts.ID, "  week done  ")
	require.NoError(t, err)
	assert.Equal(t, timesheet.StatusSubmitted, submitted.Status)
	require.NotNil(t, submitted.SubmitComment)
	assert.Equal(t, "week done", *submitted.SubmitComment)
	assert.Nil(t, submitted.LockedAt)
	assert.Equal(t, 180, submitted.TotalMinutes)
	assert.Equal(t, 3.0, submitted.TotalHours)

	assert.Len(t, f.db.Notifications(f.org, f.admin), 1)
	assert.Len(t, f.db.Notifications(f.org, f.manager), 1)
	assert.Empty(t, f.db.Notifications(f.org, f.employee))
	assert.Empty(t, f.db.Notifications(f.org, f.peer))

	approved, err := f.svc.Approve(ctx, f.manager, f.org, ts.ID, "thanks")
	require.NoError(t, err)
	assert.Equal(t, timesheet.StatusApproved, approved.Status)
	require.NotNil(t, approved.LockedAt)
	require.NotNil(t, approved.ApprovedByUserID)
	assert.Equal(t, f.manager, *approved.ApprovedByUserID)

	owner := f.db.Notifications(f.org, f.employee)
	require.Len(t, owner, 1)
	assert.Equal(t, notifications.TypeTimesheetApproved, owner[0].Type)

	_, err = f.svc.CreateEntry(ctx, f.employee, f.org, ts.ID, timesheet.EntryInput{
		ProjectID:       f.project,
		WorkDate:        week,
		DurationMinutes: minutes(30),
	})
	assert.ErrorIs(t, err, timesheet.ErrNotEditable)
}

func TestCreateIsIdempotentPerWeek(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, timesheet.Policy{})

	first, err := f.svc.Create(ctx, f.employee, f.org, week.AddDate(0, 0, 3))
	require.NoError(t, err)
	second, err := f.svc.Create(ctx, f.employee, f.org, week)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, week, first.WeekStartDate)
	assert.Equal(t, 1, f.db.TimesheetCount())
}

func TestCreateReturnsExistingAfterLosingInsertRace(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, timesheet.Policy{})

	first, err := f.svc.Create(ctx, f.employee, f.org, week)
	require.NoError(t, err)

	f.db.SimulateCreateRace()
	second, err := f.svc.Create(ctx, f.employee, f.org, week)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, f.db.TimesheetCount())
}

func TestCreateRequiresMembershipAndWeek(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, timesheet.Policy{})

	_, err := f.svc.Create(ctx, f.employee, f.otherOrg, week)
	assert.ErrorIs(t, err, membership.ErrNotMember)

	_, err = f.svc.Create(ctx, f.employee, f.org, time.Time{})
	assert.ErrorIs(t, err, timesheet.ErrWeekStartRequired)

	f.db.DeactivateMember(f.org, f.peer)
	_, err = f.svc.Create(ctx, f.peer, f.org, week)
	assert.ErrorIs(t, err, membership.ErrNotMember)
}

func TestSubmitRequiresNonDeletedEntry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, timesheet.Policy{})

	ts, err := f.svc.Create(ctx, f.employee, f.org, week)
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, f.employee, f.org, ts.ID, "")
	assert.ErrorIs(t, err, timesheet.ErrEmptyTimesheet)

	entry, err := f.svc.CreateEntry(ctx, f.employee, f.org, ts.ID, timesheet.EntryInput{
		ProjectID: f.project, WorkDate: week, DurationMinutes: minutes(60),
	})
	require.NoError(t, err)
	require.NoError(t, f.svc.DeleteEntry(ctx, f.employee, f.org, ts.ID, entry.ID))

	_, err = f.svc.Submit(ctx, f.employee, f.org, ts.ID, "")
	assert.ErrorIs(t, err, timesheet.ErrEmptyTimesheet)
	assert.Zero(t, f.db.NotificationCount())

	_, err = f.svc.CreateEntry(ctx, f.employee, f.org, ts.ID, timesheet.EntryInput{
		ProjectID: f.project, WorkDate: week, DurationMinutes: minutes(60),
	})
	require.NoError(t, err)
	out, err := f.svc.Submit(ctx, f.employee, f.org, ts.ID, "")
	require.NoError(t, err)
	assert.Equal(t, timesheet.StatusSubmitted, out.Status)
	assert.Nil(t, out.SubmitComment)
}

func TestSubmitOnlyByOwner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, timesheet.Policy{})
	ts := f.draftWithEntry(t)

	_, err := f.svc.Submit(ctx, f.manager, f.org, ts.ID, "")
	assert.ErrorIs(t, err, timesheet.ErrNotOwner)

	_, err = f.svc.Submit(ctx, f.peer, f.org, ts.ID, "")
	assert.ErrorIs(t, err, timesheet.ErrTimesheetNotFound)
}

func TestSubmitLocksWhenPolicySaysSo(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, timesheet.Policy{LockOnSubmit: true})
	ts := f.draftWithEntry(t)

	out, err := f.svc.Submit(ctx, f.employee, f.org, ts.ID, "")
	require.NoError(t, err)
	assert.NotNil(t, out.LockedAt)
}

func TestSubmitterApproverIsNotNotified(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, timesheet.Policy{})

	ts, err := f.svc.Create(ctx, f.manager, f.org, week)
	require.NoError(t, err)
	_, err = f.svc.CreateEntry(ctx, f.manager, f.org, ts.ID, timesheet.EntryInput{
		ProjectID: f.project, WorkDate: week, DurationMinutes: minutes(15),
	})
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, f.manager, f.org, ts.ID, "")
	require.NoError(t, err)

	assert.Empty(t, f.db.Notifications(f.org, f.manager))
	assert.Len(t, f.db.Notifications(f.org, f.admin), 1)
}

func TestApproveOnlyFromSubmitted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, timesheet.Policy{})
	ts := f.draftWithEntry(t)

	_, err := f.svc.Approve(ctx, f.manager, f.org, ts.ID, "")
	assert.ErrorIs(t, err, timesheet.ErrInvalidState)
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))

	_, err = f.svc.Submit(ctx, f.employee, f.org, ts.ID, "")
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, f.employee, f.org, ts.ID, "")
	assert.ErrorIs(t, err, membership.ErrRoleRequired)

	_, err = f.svc.Approve(ctx, f.admin, f.org, ts.ID, "")
	require.NoError(t, err)

	_, err = f.svc.Approve(ctx, f.manager, f.org, ts.ID, "")
	assert.ErrorIs(t, err, timesheet.ErrInvalidState)
	_, err = f.svc.Reject(ctx, f.manager, f.org, ts.ID, "late")
	assert.ErrorIs(t, err, timesheet.ErrInvalidState)
}

func TestRejectUnlocksForResubmission(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, timesheet.Policy{LockOnSubmit: true})
	ts := f.draftWithEntry(t)
	_, err := f.svc.Submit(ctx, f.employee, f.org, ts.ID, "")
	require.NoError(t, err)

	_, err = f.svc.Reject(ctx, f.manager, f.org, ts.ID, "   ")
	assert.ErrorIs(t, err, timesheet.ErrReasonRequired)

	rejected, err := f.svc.Reject(ctx, f.manager, f.org, ts.ID, " missing Friday ")
	require.NoError(t, err)
	assert.Equal(t, timesheet.StatusRejected, rejected.Status)
	assert.Nil(t, rejected.LockedAt)
	assert.Nil(t, rejected.ApprovedAt)
	require.NotNil(t, rejected.RejectionReason)
	assert.Equal(t, "missing Friday", *rejected.RejectionReason)

	owner := f.db.Notifications(f.org, f.employee)
	require.Len(t, owner, 1)
	assert.Equal(t, notifications.TypeTimesheetRejected, owner[0].Type)
	assert.Contains(t, owner[0].Message, "missing Friday")

	_, err = f.svc.CreateEntry(ctx, f.employee, f.org, ts.ID, timesheet.EntryInput{
		ProjectID: f.project, WorkDate: week.AddDate(0, 0, 4), DurationMinutes: minutes(240),
	})
	require.NoError(t, err)

	resubmitted, err := f.svc.Submit(ctx, f.employee, f.org, ts.ID, "")
	require.NoError(t, err)
	assert.Equal(t, timesheet.StatusSubmitted, resubmitted.Status)
	assert.Equal(t, 420, resubmitted.TotalMinutes)

	approved, err := f.svc.Approve(ctx, f.admin, f.org, ts.ID, "")
	require.NoError(t, err)
	assert.Nil(t, approved.RejectionReason)
	assert.Nil(t, approved.RejectedAt)
}

func TestFailedNotificationRollsBackTransition(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, timesheet.Policy{})
	ts := f.draftWithEntry(t)

	f.db.InsertNotificationsErr = errors.New("disk full")
	_, err := f.svc.Submit(ctx, f.employee, f.org, ts.ID, "")
	require.Error(t, err)

	stored, ok := f.db.Timesheet(ts.ID)
	require.True(t, ok)
	assert.Equal(t, timesheet.StatusDraft, stored.Status)
	assert.Nil(t, stored.SubmittedAt)
	assert.Zero(t, f.db.NotificationCount())
}

func TestCancelledRequestRollsBack(t *testing.T) {
	f := newFixture(t, timesheet.Policy{})
	ts := f.draftWithEntry(t)

	ctx, cancel := context.WithCancel(context.Background())
	f.db.BeforeCommit = cancel
	_, err := f.svc.Submit(ctx, f.employee, f.org, ts.ID, "")
	require.ErrorIs(t, err, context.Canceled)

	stored, _ := f.db.Timesheet(ts.ID)
	assert.Equal(t, timesheet.StatusDraft, stored.Status)
	assert.Zero(t, f.db.NotificationCount())
}

func TestVisibility(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, timesheet.Policy{})
	ts := f.draftWithEntry(t)

	_, err := f.svc.Get(ctx, f.employee, f.org, ts.ID)
	require.NoError(t, err)
	_, err = f.svc.Get(ctx, f.manager, f.org, ts.ID)
	require.NoError(t, err)

	_, err = f.svc.Get(ctx, f.peer, f.org, ts.ID)
	assert.ErrorIs(t, err, timesheet.ErrTimesheetNotFound)
	_, err = f.svc.ListEntries(ctx, f.peer, f.org, ts.ID)
	assert.ErrorIs(t, err, timesheet.ErrTimesheetNotFound)

	_, err = f.svc.Get(ctx, f.employee, f.otherOrg, ts.ID)
	assert.ErrorIs(t, err, membership.ErrNotMember)
}

func TestListings(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, timesheet.Policy{})
	ts := f.draftWithEntry(t)
	_, err := f.svc.Create(ctx, f.employee, f.org, week.AddDate(0, 0, 7))
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, f.peer, f.org, week)
	require.NoError(t, err)

	mine, err := f.svc.ListMine(ctx, f.employee, f.org, timesheet.WeekRange{})
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.True(t, mine[0].WeekStartDate.After(mine[1].WeekStartDate))

	from := week.AddDate(0, 0, 2)
	to := week.AddDate(0, 0, 3)
	bounded, err := f.svc.ListMine(ctx, f.employee, f.org, timesheet.WeekRange{From: &from, To: &to})
	require.NoError(t, err)
	require.Len(t, bounded, 1)
	assert.Equal(t, ts.ID, bounded[0].ID)
	assert.Equal(t, 180, bounded[0].TotalMinutes)

	late := week.AddDate(0, 0, 14)
	_, err = f.svc.ListMine(ctx, f.employee, f.org, timesheet.WeekRange{From: &late, To: &to})
	assert.ErrorIs(t, err, timesheet.ErrInvalidWeekRange)

	_, err = f.svc.ListOrg(ctx, f.employee, f.org, timesheet.WeekRange{})
	assert.ErrorIs(t, err, membership.ErrRoleRequired)
	_, err = f.svc.ListPendingApproval(ctx, f.employee, f.otherOrg, timesheet.WeekRange{})
	assert.ErrorIs(t, err, membership.ErrNotMember)

	all, err := f.svc.ListOrg(ctx, f.admin, f.org, timesheet.WeekRange{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	pending, err := f.svc.ListPendingApproval(ctx, f.admin, f.org, timesheet.WeekRange{})
	require.NoError(t, err)
	assert.Empty(t, pending)

	_, err = f.svc.Submit(ctx, f.employee, f.org, ts.ID, "")
	require.NoError(t, err)
	pending, err = f.svc.ListPendingApproval(ctx, f.manager, f.org, timesheet.WeekRange{})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, ts.ID, pending[0].ID)
}

func TestEntryValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, timesheet.Policy{})
	ts, err := f.svc.Create(ctx, f.employee, f.org, week)
	require.NoError(t, err)
	foreign := f.db.AddProject(f.otherOrg, "Elsewhere", true)
	inactive := f.db.AddProject(f.org, "Archived", false)

	tests := []struct {
		name string
		in   timesheet.EntryInput
		want error
	}{
		{
			name: "outside week even with bad fields",
			in:   timesheet.EntryInput{WorkDate: week.AddDate(0, 0, 7)},
			want: timesheet.ErrWorkDateOutsideWeek,
		},
		{
			name: "before week",
			in:   timesheet.EntryInput{ProjectID: f.project, WorkDate: week.AddDate(0, 0, -1), DurationMinutes: minutes(30)},
			want: timesheet.ErrWorkDateOutsideWeek,
		},
		{
			name: "missing date",
			in:   timesheet.EntryInput{ProjectID: f.project, DurationMinutes: minutes(30)},
			want: timesheet.ErrWorkDateRequired,
		},
		{
			name: "missing project",
			in:   timesheet.EntryInput{WorkDate: week, DurationMinutes: minutes(30)},
			want: timesheet.ErrProjectRequired,
		},
		{
			name: "cross tenant project",
			in:   timesheet.EntryInput{ProjectID: foreign, WorkDate: week, DurationMinutes: minutes(30)},
			want: timesheet.ErrInvalidProject,
		},
		{
			name: "inactive project",
			in:   timesheet.EntryInput{ProjectID: inactive, WorkDate: week, DurationMinutes: minutes(30)},
			want: timesheet.ErrInvalidProject,
		},
		{
			name: "end before start",
			in:   timesheet.EntryInput{ProjectID: f.project, WorkDate: week, StartTime: clock(10, 0), EndTime: clock(9, 0)},
			want: timesheet.ErrInvalidTimeRange,
		},
		{
			name: "zero duration",
			in:   timesheet.EntryInput{ProjectID: f.project, WorkDate: week, DurationMinutes: minutes(0)},
			want: timesheet.ErrInvalidDuration,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.CreateEntry(ctx, f.employee, f.org, ts.ID, tc.in)
			require.ErrorIs(t, err, tc.want)
			assert.True(t, apperr.IsKind(err, apperr.KindValidation))
		})
	}

	_, err = f.svc.CreateEntry(ctx, f.manager, f.org, ts.ID, timesheet.EntryInput{
		ProjectID: f.project, WorkDate: week, DurationMinutes: minutes(30),
	})
	assert.ErrorIs(t, err, timesheet.ErrNotOwner)
}

func TestUpdateEntryPatchSemantics(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, timesheet.Policy{})
	ts, err := f.svc.Create(ctx, f.employee, f.org, week)
	require.NoError(t, err)
	notes := "standup"
	entry, err := f.svc.CreateEntry(ctx, f.employee, f.org, ts.ID, timesheet.EntryInput{
		ProjectID: f.project,
		WorkDate:  week,
		StartTime: clock(9, 0),
		EndTime:   clock(10, 0),
		Notes:     &notes,
	})
	require.NoError(t, err)
	require.Equal(t, 60, entry.DurationMinutes)

	updated, err := f.svc.UpdateEntry(ctx, f.employee, f.org, ts.ID, entry.ID, timesheet.EntryPatch{
		EndTime: optional.Some(timesheet.Clock(11, 30)),
	})
	require.NoError(t, err)
	assert.Equal(t, 150, updated.DurationMinutes)
	require.NotNil(t, updated.Notes)
	assert.Equal(t, "standup", *updated.Notes)

	updated, err = f.svc.UpdateEntry(ctx, f.employee, f.org, ts.ID, entry.ID, timesheet.EntryPatch{
		Notes:           optional.Null[string](),
		DurationMinutes: optional.Some(20),
	})
	require.NoError(t, err)
	assert.Nil(t, updated.Notes)
	assert.Equal(t, 20, updated.DurationMinutes)

	_, err = f.svc.UpdateEntry(ctx, f.employee, f.org, ts.ID, entry.ID, timesheet.EntryPatch{
		StartTime: optional.Null[timesheet.ClockTime](),
	})
	assert.ErrorIs(t, err, timesheet.ErrTimesRequired)

	_, err = f.svc.UpdateEntry(ctx, f.employee, f.org, ts.ID, entry.ID, timesheet.EntryPatch{
		WorkDate: optional.Some(week.AddDate(0, 0, 9)),
	})
	assert.ErrorIs(t, err, timesheet.ErrWorkDateOutsideWeek)

	_, err = f.svc.UpdateEntry(ctx, f.employee, f.org, ts.ID, entry.ID, timesheet.EntryPatch{
		ProjectID: optional.Null[string](),
	})
	assert.ErrorIs(t, err, timesheet.ErrProjectRequired)

	deleted, err := f.svc.UpdateEntry(ctx, f.employee, f.org, ts.ID, entry.ID, timesheet.EntryPatch{
		IsDeleted: optional.Some(true),
	})
	require.NoError(t, err)
	assert.True(t, deleted.IsDeleted)

	entries, err := f.svc.ListEntries(ctx, f.employee, f.org, ts.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)

	err = f.svc.DeleteEntry(ctx, f.employee, f.org, ts.ID, entry.ID)
	assert.ErrorIs(t, err, timesheet.ErrEntryNotFound)

	stored, _ := f.db.Timesheet(ts.ID)
	assert.False(t, stored.UpdatedAt.Before(deleted.UpdatedAt))
}
