package timesheet

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"timetrack/internal/domain/membership"
	"timetrack/internal/domain/notifications"
	"timetrack/internal/platform/metrics"
)

type Service struct {
	store      Transactor
	dispatcher *notifications.Dispatcher
	policy     Policy
	now        func() time.Time
}

func NewService(store Transactor, dispatcher *notifications.Dispatcher, policy Policy) *Service {
	return &Service{store: store, dispatcher: dispatcher, policy: policy, now: time.Now}
}

// Create opens the actor's timesheet for the week containing weekStart.
// Calling it again for the same week returns the existing timesheet.
func (s *Service) Create(ctx context.Context, actorID, orgID string, weekStart time.Time) (Summary, error) {
	if weekStart.IsZero() {
		return Summary{}, ErrWeekStartRequired
	}
	start := NormalizeToWeekStart(weekStart)

	var out Summary
	created := false
	err := s.store.InTx(ctx, func(st StoreAPI) error {
		if _, err := membership.RequireMember(ctx, st, actorID, orgID); err != nil {
			return err
		}

		existing, err := st.FindTimesheetByWeek(ctx, orgID, actorID, start)
		if err == nil {
			out, err = summarize(ctx, st, existing)
			return err
		}
		if !errors.Is(err, ErrTimesheetNotFound) {
			return err
		}

		now := s.now().UTC()
		ts := Timesheet{
			ID:             uuid.NewString(),
			OrganizationID: orgID,
			UserID:         actorID,
			WeekStartDate:  start,
			WeekEndDate:    WeekEnd(start),
			Status:         StatusDraft,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		err = st.InsertTimesheet(ctx, ts)
		if errors.Is(err, ErrDuplicateWeek) {
			// A concurrent request created the week first.
			existing, err := st.FindTimesheetByWeek(ctx, orgID, actorID, start)
			if err != nil {
				return err
			}
			out, err = summarize(ctx, st, existing)
			return err
		}
		if err != nil {
			return err
		}
		created = true
		out = Summary{Timesheet: ts}
		return nil
	})
	if err != nil {
		return Summary{}, err
	}
	if created {
		metrics.TimesheetTransition("create")
	}
	return out, nil
}

func (s *Service) ListMine(ctx context.Context, actorID, orgID string, weeks WeekRange) ([]Summary, error) {
	filter, err := newFilter(orgID, weeks)
	if err != nil {
		return nil, err
	}
	filter.UserID = actorID
	filter.Order = OrderNewestFirst
	return s.list(ctx, filter, func(st StoreAPI) error {
		_, err := membership.RequireMember(ctx, st, actorID, orgID)
		return err
	})
}

// ListOrg returns every timesheet in the organization. Approvers only.
func (s *Service) ListOrg(ctx context.Context, actorID, orgID string, weeks WeekRange) ([]Summary, error) {
	filter, err := newFilter(orgID, weeks)
	if err != nil {
		return nil, err
	}
	filter.Order = OrderNewestFirstByUser
	return s.list(ctx, filter, s.requireApprover(ctx, actorID, orgID))
}

// ListPendingApproval returns submitted timesheets, oldest week first.
func (s *Service) ListPendingApproval(ctx context.Context, actorID, orgID string, weeks WeekRange) ([]Summary, error) {
	filter, err := newFilter(orgID, weeks)
	if err != nil {
		return nil, err
	}
	filter.Status = StatusSubmitted
	filter.Order = OrderOldestSubmittedFirst
	return s.list(ctx, filter, s.requireApprover(ctx, actorID, orgID))
}

// Get returns a timesheet visible to the actor: their own, or any in the
// organization for approvers. Anything else reads as not found.
func (s *Service) Get(ctx context.Context, actorID, orgID, id string) (Summary, error) {
	var out Summary
	err := s.store.InTx(ctx, func(st StoreAPI) error {
		ts, _, err := loadVisible(ctx, st, actorID, orgID, id, false)
		if err != nil {
			return err
		}
		out, err = summarize(ctx, st, ts)
		return err
	})
	return out, err
}

func (s *Service) Submit(ctx context.Context, actorID, orgID, id, comment string) (Summary, error) {
	var out Summary
	var created []notifications.Notification
	err := s.store.InTx(ctx, func(st StoreAPI) error {
		ts, _, err := loadVisible(ctx, st, actorID, orgID, id, true)
		if err != nil {
			return err
		}
		if ts.UserID != actorID {
			return ErrNotOwner
		}
		if ts.Status != StatusDraft && ts.Status != StatusRejected {
			return ErrInvalidState
		}
		count, err := st.CountActiveEntries(ctx, ts.ID)
		if err != nil {
			return err
		}
		if count == 0 {
			return ErrEmptyTimesheet
		}

		now := s.now().UTC()
		ts.Status = StatusSubmitted
		ts.SubmittedAt = &now
		ts.SubmitComment = trimmedOrNil(comment)
		if s.policy.LockOnSubmit {
			ts.LockedAt = &now
		}
		ts.UpdatedAt = now
		if err := st.UpdateTimesheet(ctx, ts); err != nil {
			return err
		}

		recipients, err := notifications.SubmitRecipients(ctx, st, orgID, actorID)
		if err != nil {
			return err
		}
		actorName, err := st.UserDisplayName(ctx, actorID)
		if err != nil {
			return err
		}
		created, err = s.dispatcher.Dispatch(ctx, st, notifications.Event{
			Type:           notifications.TypeTimesheetSubmitted,
			OrganizationID: orgID,
			ActorUserID:    actorID,
			ActorName:      actorName,
			TimesheetID:    ts.ID,
			WeekStart:      ts.WeekStartDate,
			Comment:        comment,
		}, recipients)
		if err != nil {
			return err
		}
		out, err = summarize(ctx, st, ts)
		return err
	})
	if err != nil {
		return Summary{}, err
	}
	s.committed(ctx, "submit", created)
	return out, nil
}

func (s *Service) Approve(ctx context.Context, actorID, orgID, id, comment string) (Summary, error) {
	var out Summary
	var created []notifications.Notification
	err := s.store.InTx(ctx, func(st StoreAPI) error {
		if _, err := membership.RequireAnyRole(ctx, st, actorID, orgID, membership.ApproverRoles...); err != nil {
			return err
		}
		ts, err := st.GetTimesheet(ctx, orgID, id, true)
		if err != nil {
			return err
		}
		if ts.Status != StatusSubmitted {
			return ErrInvalidState
		}

		now := s.now().UTC()
		approver := actorID
		ts.Status = StatusApproved
		ts.ApprovedByUserID = &approver
		ts.ApprovedAt = &now
		ts.ApprovalComment = trimmedOrNil(comment)
		ts.RejectedByUserID = nil
		ts.RejectedAt = nil
		ts.RejectionReason = nil
		ts.LockedAt = &now
		ts.UpdatedAt = now
		if err := st.UpdateTimesheet(ctx, ts); err != nil {
			return err
		}

		created, err = s.dispatcher.Dispatch(ctx, st, notifications.Event{
			Type:           notifications.TypeTimesheetApproved,
			OrganizationID: orgID,
			ActorUserID:    actorID,
			TimesheetID:    ts.ID,
			WeekStart:      ts.WeekStartDate,
			Comment:        comment,
		}, []string{ts.UserID})
		if err != nil {
			return err
		}
		out, err = summarize(ctx, st, ts)
		return err
	})
	if err != nil {
		return Summary{}, err
	}
	s.committed(ctx, "approve", created)
	return out, nil
}

func (s *Service) Reject(ctx context.Context, actorID, orgID, id, reason string) (Summary, error) {
	var out Summary
	var created []notifications.Notification
	err := s.store.InTx(ctx, func(st StoreAPI) error {
		if _, err := membership.RequireAnyRole(ctx, st, actorID, orgID, membership.ApproverRoles...); err != nil {
			return err
		}
		trimmed := trimmedOrNil(reason)
		if trimmed == nil {
			return ErrReasonRequired
		}
		ts, err := st.GetTimesheet(ctx, orgID, id, true)
		if err != nil {
			return err
		}
		if ts.Status != StatusSubmitted {
			return ErrInvalidState
		}

		now := s.now().UTC()
		rejecter := actorID
		ts.Status = StatusRejected
		ts.RejectedByUserID = &rejecter
		ts.RejectedAt = &now
		ts.RejectionReason = trimmed
		ts.ApprovedByUserID = nil
		ts.ApprovedAt = nil
		ts.ApprovalComment = nil
		ts.LockedAt = nil
		ts.UpdatedAt = now
		if err := st.UpdateTimesheet(ctx, ts); err != nil {
			return err
		}

		created, err = s.dispatcher.Dispatch(ctx, st, notifications.Event{
			Type:           notifications.TypeTimesheetRejected,
			OrganizationID: orgID,
			ActorUserID:    actorID,
			TimesheetID:    ts.ID,
			WeekStart:      ts.WeekStartDate,
			Reason:         *trimmed,
		}, []string{ts.UserID})
		if err != nil {
			return err
		}
		out, err = summarize(ctx, st, ts)
		return err
	})
	if err != nil {
		return Summary{}, err
	}
	s.committed(ctx, "reject", created)
	return out, nil
}

func (s *Service) committed(ctx context.Context, transition string, created []notifications.Notification) {
	metrics.TimesheetTransition(transition)
	s.dispatcher.Deliver(ctx, created)
}

func (s *Service) requireApprover(ctx context.Context, actorID, orgID string) func(StoreAPI) error {
	return func(st StoreAPI) error {
		_, err := membership.RequireAnyRole(ctx, st, actorID, orgID, membership.ApproverRoles...)
		return err
	}
}

func (s *Service) list(ctx context.Context, filter ListFilter, gate func(StoreAPI) error) ([]Summary, error) {
	var out []Summary
	err := s.store.InTx(ctx, func(st StoreAPI) error {
		if err := gate(st); err != nil {
			return err
		}
		items, err := st.ListTimesheets(ctx, filter)
		if err != nil {
			return err
		}
		out, err = summarizeAll(ctx, st, items)
		return err
	})
	return out, err
}

// loadVisible resolves the actor's membership and the timesheet, hiding
// timesheets the actor may not see.
func loadVisible(ctx context.Context, st StoreAPI, actorID, orgID, id string, forUpdate bool) (Timesheet, membership.Membership, error) {
	m, err := membership.RequireMember(ctx, st, actorID, orgID)
	if err != nil {
		return Timesheet{}, membership.Membership{}, err
	}
	ts, err := st.GetTimesheet(ctx, orgID, id, forUpdate)
	if err != nil {
		return Timesheet{}, membership.Membership{}, err
	}
	if ts.UserID != actorID && !membership.IsApprover(m) {
		return Timesheet{}, membership.Membership{}, ErrTimesheetNotFound
	}
	return ts, m, nil
}

func newFilter(orgID string, weeks WeekRange) (ListFilter, error) {
	filter := ListFilter{OrganizationID: orgID}
	if weeks.From != nil {
		from := NormalizeToWeekStart(*weeks.From)
		filter.From = &from
	}
	if weeks.To != nil {
		to := NormalizeToWeekStart(*weeks.To)
		filter.To = &to
	}
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return ListFilter{}, ErrInvalidWeekRange
	}
	return filter, nil
}

func summarize(ctx context.Context, st StoreAPI, ts Timesheet) (Summary, error) {
	items, err := summarizeAll(ctx, st, []Timesheet{ts})
	if err != nil {
		return Summary{}, err
	}
	return items[0], nil
}

func summarizeAll(ctx context.Context, st StoreAPI, items []Timesheet) ([]Summary, error) {
	out := make([]Summary, 0, len(items))
	if len(items) == 0 {
		return out, nil
	}
	ids := make([]string, 0, len(items))
	for _, ts := range items {
		ids = append(ids, ts.ID)
	}
	totals, err := st.TotalMinutes(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, ts := range items {
		minutes := totals[ts.ID]
		out = append(out, Summary{Timesheet: ts, TotalMinutes: minutes, TotalHours: HoursFromMinutes(minutes)})
	}
	return out, nil
}

func trimmedOrNil(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
