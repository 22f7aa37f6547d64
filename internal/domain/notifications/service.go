package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"

	"timetrack/internal/domain/membership"
	"timetrack/internal/platform/apperr"
)

var (
	ErrInvalidIDs   = apperr.Validation("invalid_notification_ids", "notification ids must be UUIDs")
	ErrNoIDs        = apperr.Validation("notification_ids_required", "at least one notification id is required").WithField("ids", "required")
	ErrTooManyIDs   = apperr.Validation("too_many_notification_ids", "too many notification ids").WithField("ids", "at most 100 ids per call")
	maxIDsPerMarkOp = MaxTake
)

type Service struct {
	store      Transactor
	dispatcher *Dispatcher
	now        func() time.Time
}

func New(store Transactor, dispatcher *Dispatcher) *Service {
	return &Service{store: store, dispatcher: dispatcher, now: time.Now}
}

// List returns the caller's notifications, newest first. Non-members are
// refused rather than served an empty page.
func (s *Service) List(ctx context.Context, actorID, orgID string, unreadOnly bool, take int) (Page, error) {
	var page Page
	err := s.store.InTx(ctx, func(st StoreAPI) error {
		if _, err := membership.RequireMember(ctx, st, actorID, orgID); err != nil {
			return err
		}
		items, err := st.ListForRecipient(ctx, orgID, actorID, unreadOnly, ClampTake(take))
		if err != nil {
			return err
		}
		unread, err := st.CountUnread(ctx, orgID, actorID)
		if err != nil {
			return err
		}
		if items == nil {
			items = []Notification{}
		}
		page = Page{Items: items, UnreadCount: unread}
		return nil
	})
	return page, err
}

func (s *Service) UnreadCount(ctx context.Context, actorID, orgID string) (int, error) {
	var count int
	err := s.store.InTx(ctx, func(st StoreAPI) error {
		if _, err := membership.RequireMember(ctx, st, actorID, orgID); err != nil {
			return err
		}
		var err error
		count, err = st.CountUnread(ctx, orgID, actorID)
		return err
	})
	return count, err
}

// MarkRead stamps unread notifications among ids. Already read or foreign
// ids are skipped, so repeating the call changes nothing.
func (s *Service) MarkRead(ctx context.Context, actorID, orgID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, ErrNoIDs
	}
	if len(ids) > maxIDsPerMarkOp {
		return 0, ErrTooManyIDs
	}
	for _, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			return 0, ErrInvalidIDs.WithField("ids", id+" is not a valid id")
		}
	}

	var updated int64
	err := s.store.InTx(ctx, func(st StoreAPI) error {
		if _, err := membership.RequireMember(ctx, st, actorID, orgID); err != nil {
			return err
		}
		var err error
		updated, err = st.MarkRead(ctx, orgID, actorID, ids, s.now().UTC())
		return err
	})
	return updated, err
}

func (s *Service) MarkAllRead(ctx context.Context, actorID, orgID string) (int64, error) {
	var updated int64
	err := s.store.InTx(ctx, func(st StoreAPI) error {
		if _, err := membership.RequireMember(ctx, st, actorID, orgID); err != nil {
			return err
		}
		var err error
		updated, err = st.MarkAllRead(ctx, orgID, actorID, s.now().UTC())
		return err
	})
	return updated, err
}

// Remind creates an approval reminder for an approver when timesheets are
// waiting and no unread reminder was sent within ReminderWindow. It returns
// nil when nothing was created.
func (s *Service) Remind(ctx context.Context, actorID, orgID string) (*Notification, error) {
	var created []Notification
	err := s.store.InTx(ctx, func(st StoreAPI) error {
		if _, err := membership.RequireAnyRole(ctx, st, actorID, orgID, membership.ApproverRoles...); err != nil {
			return err
		}
		var err error
		created, err = s.remind(ctx, st, actorID, orgID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.dispatcher.Deliver(ctx, created)
	if len(created) == 0 {
		return nil, nil
	}
	return &created[0], nil
}

// RemindApprovers sends reminders to every active approver in orgID. Used by
// the background scheduler, which acts without a user identity.
func (s *Service) RemindApprovers(ctx context.Context, orgID string) (int, error) {
	var created []Notification
	err := s.store.InTx(ctx, func(st StoreAPI) error {
		approvers, err := st.ActiveUserIDsWithRoles(ctx, orgID, membership.ApproverRoles)
		if err != nil {
			return err
		}
		for _, approverID := range approvers {
			items, err := s.remind(ctx, st, approverID, orgID)
			if err != nil {
				return err
			}
			created = append(created, items...)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.dispatcher.Deliver(ctx, created)
	return len(created), nil
}

func (s *Service) PendingOrganizations(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.store.InTx(ctx, func(st StoreAPI) error {
		var err error
		ids, err = st.OrganizationsWithSubmittedTimesheets(ctx)
		return err
	})
	return ids, err
}

func (s *Service) remind(ctx context.Context, st StoreAPI, userID, orgID string) ([]Notification, error) {
	pending, err := st.CountSubmittedTimesheets(ctx, orgID)
	if err != nil || pending == 0 {
		return nil, err
	}
	recent, err := st.HasUnreadSince(ctx, orgID, userID, TypeTimesheetReminder, s.now().UTC().Add(-ReminderWindow))
	if err != nil || recent {
		return nil, err
	}
	return s.dispatcher.Dispatch(ctx, st, Event{
		Type:           TypeTimesheetReminder,
		OrganizationID: orgID,
		PendingCount:   pending,
	}, []string{userID})
}
