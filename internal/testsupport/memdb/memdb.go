// Package memdb is an in-memory stand-in for the Postgres stores. Each
// transaction holds a global lock and restores a snapshot on failure, so
// services can be exercised for atomicity without a database.
package memdb

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"timetrack/internal/domain/membership"
	"timetrack/internal/domain/notifications"
	"timetrack/internal/domain/organization"
	"timetrack/internal/domain/project"
	"timetrack/internal/domain/timesheet"
)

type User struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
}

type state struct {
	users         map[string]User
	orgs          map[string]organization.Organization
	members       map[string]membership.Membership
	clients       map[string]project.Client
	projects      map[string]project.Project
	assignments   map[string]project.Assignment
	timesheets    map[string]timesheet.Timesheet
	entries       map[string]timesheet.Entry
	notifications map[string]notifications.Notification
}

func (s state) clone() state {
	return state{
		users:         maps.Clone(s.users),
		orgs:          maps.Clone(s.orgs),
		members:       maps.Clone(s.members),
		clients:       maps.Clone(s.clients),
		projects:      maps.Clone(s.projects),
		assignments:   maps.Clone(s.assignments),
		timesheets:    maps.Clone(s.timesheets),
		entries:       maps.Clone(s.entries),
		notifications: maps.Clone(s.notifications),
	}
}

type DB struct {
	mu    sync.Mutex
	state state

	// InsertNotificationsErr fails every notification insert when set.
	InsertNotificationsErr error
	// BeforeCommit runs after fn succeeds and before the commit check.
	BeforeCommit func()

	raceWeek bool
}

func New() *DB {
	return &DB{state: state{
		users:         map[string]User{},
		orgs:          map[string]organization.Organization{},
		members:       map[string]membership.Membership{},
		clients:       map[string]project.Client{},
		projects:      map[string]project.Project{},
		assignments:   map[string]project.Assignment{},
		timesheets:    map[string]timesheet.Timesheet{},
		entries:       map[string]timesheet.Entry{},
		notifications: map[string]notifications.Notification{},
	}}
}

func memberKey(orgID, userID string) string {
	return orgID + "|" + userID
}

// SimulateCreateRace hides the existing week from the next lookup so the
// following insert collides with it.
func (d *DB) SimulateCreateRace() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.raceWeek = true
}

func (d *DB) AddOrganization() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := uuid.NewString()
	now := time.Now().UTC()
	d.state.orgs[id] = organization.Organization{ID: id, Name: "Org " + id[:8], IsActive: true, CreatedAt: now, UpdatedAt: now}
	return id
}

func (d *DB) AddUser(email, name string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := uuid.NewString()
	d.state.users[id] = User{ID: id, Email: email, DisplayName: name, IsActive: true, CreatedAt: time.Now().UTC()}
	return id
}

func (d *DB) AddMember(orgID, userID string, role membership.Role) {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := time.Now().UTC()
	d.state.members[memberKey(orgID, userID)] = membership.Membership{
		ID:             uuid.NewString(),
		OrganizationID: orgID,
		UserID:         userID,
		Role:           role,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func (d *DB) DeactivateMember(orgID, userID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	m := d.state.members[memberKey(orgID, userID)]
	m.IsActive = false
	d.state.members[memberKey(orgID, userID)] = m
}

func (d *DB) AddProject(orgID, name string, active bool) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := uuid.NewString()
	now := time.Now().UTC()
	d.state.projects[id] = project.Project{ID: id, OrganizationID: orgID, Name: name, IsActive: active, CreatedAt: now, UpdatedAt: now}
	return id
}

func (d *DB) AddClient(orgID, name string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := uuid.NewString()
	now := time.Now().UTC()
	d.state.clients[id] = project.Client{ID: id, OrganizationID: orgID, Name: name, IsActive: true, CreatedAt: now, UpdatedAt: now}
	return id
}

func (d *DB) Client(id string) (project.Client, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.state.clients[id]
	return c, ok
}

func (d *DB) Project(id string) (project.Project, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.state.projects[id]
	return p, ok
}

func (d *DB) UserByEmail(email string) (User, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, u := range d.state.users {
		if strings.EqualFold(u.Email, email) {
			return u, true
		}
	}
	return User{}, false
}

func (d *DB) Membership(orgID, userID string) (membership.Membership, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	m, ok := d.state.members[memberKey(orgID, userID)]
	return m, ok
}

// AddTimesheet stores a timesheet in the given status for weekStart.
func (d *DB) AddTimesheet(orgID, userID string, weekStart time.Time, status timesheet.Status) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := time.Now().UTC()
	id := uuid.NewString()
	start := timesheet.NormalizeToWeekStart(weekStart)
	d.state.timesheets[id] = timesheet.Timesheet{
		ID:             id,
		OrganizationID: orgID,
		UserID:         userID,
		WeekStartDate:  start,
		WeekEndDate:    timesheet.WeekEnd(start),
		Status:         status,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return id
}

func (d *DB) Timesheet(id string) (timesheet.Timesheet, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ts, ok := d.state.timesheets[id]
	return ts, ok
}

func (d *DB) TimesheetCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.state.timesheets)
}

// Notifications returns every notification addressed to userID in orgID.
func (d *DB) Notifications(orgID, userID string) []notifications.Notification {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []notifications.Notification
	for _, n := range d.state.notifications {
		if n.OrganizationID == orgID && n.RecipientUserID == userID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (d *DB) NotificationCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.state.notifications)
}

func (d *DB) inTx(ctx context.Context, fn func(*Tx) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	snapshot := d.state.clone()
	defer func() {
		if p := recover(); p != nil {
			d.state = snapshot
			panic(p)
		}
	}()

	err = fn(&Tx{db: d, s: &d.state})
	if err == nil && d.BeforeCommit != nil {
		d.BeforeCommit()
	}
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		d.state = snapshot
	}
	return err
}

type timesheetTx struct{ db *DB }

func (t timesheetTx) InTx(ctx context.Context, fn func(timesheet.StoreAPI) error) error {
	return t.db.inTx(ctx, func(tx *Tx) error { return fn(tx) })
}

type notificationTx struct{ db *DB }

func (t notificationTx) InTx(ctx context.Context, fn func(notifications.StoreAPI) error) error {
	return t.db.inTx(ctx, func(tx *Tx) error { return fn(tx) })
}

type organizationTx struct{ db *DB }

func (t organizationTx) InTx(ctx context.Context, fn func(organization.StoreAPI) error) error {
	return t.db.inTx(ctx, func(tx *Tx) error { return fn(tx) })
}

type projectTx struct{ db *DB }

func (t projectTx) InTx(ctx context.Context, fn func(project.StoreAPI) error) error {
	return t.db.inTx(ctx, func(tx *Tx) error { return fn(tx) })
}

func (d *DB) Organizations() organization.Transactor {
	return organizationTx{db: d}
}

func (d *DB) Projects() project.Transactor {
	return projectTx{db: d}
}

func (d *DB) Timesheets() timesheet.Transactor {
	return timesheetTx{db: d}
}

func (d *DB) NotificationStore() notifications.Transactor {
	return notificationTx{db: d}
}

// Tx is the store view handed to services inside a transaction.
type Tx struct {
	db *DB
	s  *state
}

func (t *Tx) FindMembership(_ context.Context, orgID, userID string) (membership.Membership, error) {
	m, ok := t.s.members[memberKey(orgID, userID)]
	if !ok {
		return membership.Membership{}, membership.ErrNoMembership
	}
	return m, nil
}

func (t *Tx) ActiveUserIDsWithRoles(_ context.Context, orgID string, roles []membership.Role) ([]string, error) {
	var out []string
	for _, m := range t.s.members {
		if m.OrganizationID == orgID && m.IsActive && slices.Contains(roles, m.Role) {
			out = append(out, m.UserID)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (t *Tx) UserDisplayName(_ context.Context, userID string) (string, error) {
	return t.s.users[userID].DisplayName, nil
}

func (t *Tx) ProjectIsActiveInOrganization(_ context.Context, orgID, projectID string) (bool, error) {
	p, ok := t.s.projects[projectID]
	return ok && p.OrganizationID == orgID && p.IsActive, nil
}

func (t *Tx) FindTimesheetByWeek(_ context.Context, orgID, userID string, weekStart time.Time) (timesheet.Timesheet, error) {
	if t.db.raceWeek {
		t.db.raceWeek = false
		return timesheet.Timesheet{}, timesheet.ErrTimesheetNotFound
	}
	for _, ts := range t.s.timesheets {
		if ts.OrganizationID == orgID && ts.UserID == userID && ts.WeekStartDate.Equal(weekStart) {
			return ts, nil
		}
	}
	return timesheet.Timesheet{}, timesheet.ErrTimesheetNotFound
}

func (t *Tx) InsertTimesheet(_ context.Context, ts timesheet.Timesheet) error {
	for _, existing := range t.s.timesheets {
		if existing.OrganizationID == ts.OrganizationID && existing.UserID == ts.UserID && existing.WeekStartDate.Equal(ts.WeekStartDate) {
			return timesheet.ErrDuplicateWeek
		}
	}
	t.s.timesheets[ts.ID] = ts
	return nil
}

func (t *Tx) GetTimesheet(_ context.Context, orgID, id string, _ bool) (timesheet.Timesheet, error) {
	ts, ok := t.s.timesheets[id]
	if !ok || ts.OrganizationID != orgID {
		return timesheet.Timesheet{}, timesheet.ErrTimesheetNotFound
	}
	return ts, nil
}

func (t *Tx) UpdateTimesheet(_ context.Context, ts timesheet.Timesheet) error {
	if _, ok := t.s.timesheets[ts.ID]; !ok {
		return timesheet.ErrTimesheetNotFound
	}
	t.s.timesheets[ts.ID] = ts
	return nil
}

func (t *Tx) TouchTimesheet(_ context.Context, id string, at time.Time) error {
	ts, ok := t.s.timesheets[id]
	if !ok {
		return timesheet.ErrTimesheetNotFound
	}
	ts.UpdatedAt = at
	t.s.timesheets[id] = ts
	return nil
}

func (t *Tx) ListTimesheets(_ context.Context, f timesheet.ListFilter) ([]timesheet.Timesheet, error) {
	var out []timesheet.Timesheet
	for _, ts := range t.s.timesheets {
		switch {
		case ts.OrganizationID != f.OrganizationID:
		case f.UserID != "" && ts.UserID != f.UserID:
		case f.Status != "" && ts.Status != f.Status:
		case f.From != nil && ts.WeekStartDate.Before(*f.From):
		case f.To != nil && ts.WeekStartDate.After(*f.To):
		default:
			out = append(out, ts)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if f.Order == timesheet.OrderOldestSubmittedFirst {
			if !a.WeekStartDate.Equal(b.WeekStartDate) {
				return a.WeekStartDate.Before(b.WeekStartDate)
			}
			return a.ID < b.ID
		}
		if !a.WeekStartDate.Equal(b.WeekStartDate) {
			return a.WeekStartDate.After(b.WeekStartDate)
		}
		if a.UserID != b.UserID {
			return a.UserID < b.UserID
		}
		return a.ID < b.ID
	})
	return out, nil
}

func (t *Tx) TotalMinutes(_ context.Context, ids []string) (map[string]int, error) {
	out := make(map[string]int, len(ids))
	for _, e := range t.s.entries {
		if !e.IsDeleted && slices.Contains(ids, e.TimesheetID) {
			out[e.TimesheetID] += e.DurationMinutes
		}
	}
	return out, nil
}

func (t *Tx) CountActiveEntries(_ context.Context, timesheetID string) (int, error) {
	count := 0
	for _, e := range t.s.entries {
		if e.TimesheetID == timesheetID && !e.IsDeleted {
			count++
		}
	}
	return count, nil
}

func (t *Tx) ListEntries(_ context.Context, timesheetID string) ([]timesheet.Entry, error) {
	out := []timesheet.Entry{}
	for _, e := range t.s.entries {
		if e.TimesheetID == timesheetID && !e.IsDeleted {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].WorkDate.Equal(out[j].WorkDate) {
			return out[i].WorkDate.Before(out[j].WorkDate)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (t *Tx) GetEntry(_ context.Context, timesheetID, entryID string) (timesheet.Entry, error) {
	e, ok := t.s.entries[entryID]
	if !ok || e.TimesheetID != timesheetID {
		return timesheet.Entry{}, timesheet.ErrEntryNotFound
	}
	return e, nil
}

func (t *Tx) InsertEntry(_ context.Context, e timesheet.Entry) error {
	t.s.entries[e.ID] = e
	return nil
}

func (t *Tx) UpdateEntry(_ context.Context, e timesheet.Entry) error {
	if _, ok := t.s.entries[e.ID]; !ok {
		return timesheet.ErrEntryNotFound
	}
	t.s.entries[e.ID] = e
	return nil
}

func (t *Tx) InsertNotifications(_ context.Context, items []notifications.Notification) error {
	if t.db.InsertNotificationsErr != nil {
		return t.db.InsertNotificationsErr
	}
	for _, n := range items {
		if _, ok := t.s.notifications[n.ID]; ok {
			return errors.New("duplicate notification id")
		}
		t.s.notifications[n.ID] = n
	}
	return nil
}

func (t *Tx) ListForRecipient(_ context.Context, orgID, userID string, unreadOnly bool, limit int) ([]notifications.Notification, error) {
	var out []notifications.Notification
	for _, n := range t.s.notifications {
		if n.OrganizationID != orgID || n.RecipientUserID != userID {
			continue
		}
		if unreadOnly && n.ReadAt != nil {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return strings.Compare(out[i].ID, out[j].ID) < 0
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (t *Tx) CountUnread(_ context.Context, orgID, userID string) (int, error) {
	count := 0
	for _, n := range t.s.notifications {
		if n.OrganizationID == orgID && n.RecipientUserID == userID && n.ReadAt == nil {
			count++
		}
	}
	return count, nil
}

func (t *Tx) MarkRead(_ context.Context, orgID, userID string, ids []string, at time.Time) (int64, error) {
	var updated int64
	for _, id := range ids {
		n, ok := t.s.notifications[id]
		if !ok || n.OrganizationID != orgID || n.RecipientUserID != userID || n.ReadAt != nil {
			continue
		}
		stamp := at
		n.ReadAt = &stamp
		t.s.notifications[id] = n
		updated++
	}
	return updated, nil
}

func (t *Tx) MarkAllRead(_ context.Context, orgID, userID string, at time.Time) (int64, error) {
	var updated int64
	for id, n := range t.s.notifications {
		if n.OrganizationID != orgID || n.RecipientUserID != userID || n.ReadAt != nil {
			continue
		}
		stamp := at
		n.ReadAt = &stamp
		t.s.notifications[id] = n
		updated++
	}
	return updated, nil
}

func (t *Tx) CountSubmittedTimesheets(_ context.Context, orgID string) (int, error) {
	count := 0
	for _, ts := range t.s.timesheets {
		if ts.OrganizationID == orgID && ts.Status == timesheet.StatusSubmitted {
			count++
		}
	}
	return count, nil
}

func (t *Tx) HasUnreadSince(_ context.Context, orgID, userID string, typ notifications.Type, since time.Time) (bool, error) {
	for _, n := range t.s.notifications {
		if n.OrganizationID == orgID && n.RecipientUserID == userID && n.Type == typ &&
			n.ReadAt == nil && !n.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (t *Tx) OrganizationsWithSubmittedTimesheets(_ context.Context) ([]string, error) {
	seen := map[string]bool{}
	for _, ts := range t.s.timesheets {
		if ts.Status == timesheet.StatusSubmitted && t.s.orgs[ts.OrganizationID].IsActive {
			seen[ts.OrganizationID] = true
		}
	}
	return slices.Sorted(maps.Keys(seen)), nil
}

var (
	_ timesheet.StoreAPI     = (*Tx)(nil)
	_ notifications.StoreAPI = (*Tx)(nil)
	_ organization.StoreAPI  = (*Tx)(nil)
	_ project.StoreAPI       = (*Tx)(nil)
)
