package notifications

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"timetrack/internal/domain/membership"
	"timetrack/internal/platform/metrics"
)

// Writer persists notifications. Dispatch is always handed the writer bound
// to the caller's transaction.
type Writer interface {
	InsertNotifications(ctx context.Context, items []Notification) error
}

// Outbox accepts rendered emails once the transaction has committed.
type Outbox interface {
	EnqueueEmail(ctx context.Context, email Email) error
}

type Dispatcher struct {
	outbox Outbox
	now    func() time.Time
}

func NewDispatcher(outbox Outbox) *Dispatcher {
	return &Dispatcher{outbox: outbox, now: time.Now}
}

// Dispatch writes one notification per distinct recipient. An empty
// recipient set writes nothing.
func (d *Dispatcher) Dispatch(ctx context.Context, w Writer, ev Event, recipients []string) ([]Notification, error) {
	recipients = distinct(recipients)
	if len(recipients) == 0 {
		return nil, nil
	}

	title, message := Compose(ev)
	now := d.now().UTC()
	items := make([]Notification, 0, len(recipients))
	for _, recipient := range recipients {
		items = append(items, Notification{
			ID:              uuid.NewString(),
			OrganizationID:  ev.OrganizationID,
			RecipientUserID: recipient,
			ActorUserID:     nonEmpty(ev.ActorUserID),
			TimesheetID:     nonEmpty(ev.TimesheetID),
			Type:            ev.Type,
			Title:           title,
			Message:         message,
			CreatedAt:       now,
		})
	}
	if err := w.InsertNotifications(ctx, items); err != nil {
		return nil, fmt.Errorf("insert notifications: %w", err)
	}
	return items, nil
}

// Deliver runs after commit. Failures are logged and never reach the caller.
func (d *Dispatcher) Deliver(ctx context.Context, items []Notification) {
	for _, n := range items {
		metrics.NotificationCreated(string(n.Type))
		if d == nil || d.outbox == nil {
			continue
		}
		email := Email{
			OrganizationID:  n.OrganizationID,
			RecipientUserID: n.RecipientUserID,
			Subject:         n.Title,
			Body:            n.Message,
		}
		if err := d.outbox.EnqueueEmail(context.WithoutCancel(ctx), email); err != nil {
			log.Warn().Err(err).
				Str("notificationId", n.ID).
				Str("recipientUserId", n.RecipientUserID).
				Msg("notification email enqueue failed")
		}
	}
}

// SubmitRecipients resolves every active Admin or Manager except the actor.
func SubmitRecipients(ctx context.Context, dir membership.Directory, orgID, actorID string) ([]string, error) {
	ids, err := dir.ActiveUserIDsWithRoles(ctx, orgID, membership.ApproverRoles)
	if err != nil {
		return nil, fmt.Errorf("resolve approvers: %w", err)
	}
	out := ids[:0:0]
	for _, id := range ids {
		if id != actorID {
			out = append(out, id)
		}
	}
	return out, nil
}

// Compose renders the title and message for ev, truncated to the storage caps.
func Compose(ev Event) (string, string) {
	week := ev.WeekStart.Format("2006-01-02")
	var title, message string
	switch ev.Type {
	case TypeTimesheetSubmitted:
		actor := strings.TrimSpace(ev.ActorName)
		if actor == "" {
			actor = "A team member"
		}
		title = "Timesheet submitted"
		message = fmt.Sprintf("%s submitted a timesheet for the week starting %s.", actor, week)
	case TypeTimesheetApproved:
		title = "Timesheet approved"
		message = fmt.Sprintf("Your timesheet for the week starting %s was approved.", week)
		if c := strings.TrimSpace(ev.Comment); c != "" {
			message += " Comment: " + c
		}
	case TypeTimesheetRejected:
		title = "Timesheet rejected"
		message = fmt.Sprintf("Your timesheet for the week starting %s was rejected. Reason: %s", week, strings.TrimSpace(ev.Reason))
	case TypeTimesheetReminder:
		title = "Timesheets awaiting approval"
		message = fmt.Sprintf("You have %d timesheet(s) pending approval.", ev.PendingCount)
	default:
		title = "Timesheet update"
		message = fmt.Sprintf("A timesheet for the week starting %s changed.", week)
	}
	return Truncate(title, MaxTitleLength), Truncate(message, MaxMessageLength)
}

// Truncate cuts value to at most limit runes.
func Truncate(value string, limit int) string {
	if limit <= 0 {
		return ""
	}
	count := 0
	for i := range value {
		if count == limit {
			return value[:i]
		}
		count++
	}
	return value
}

// ClampTake applies the default and maximum page size.
func ClampTake(take int) int {
	if take <= 0 {
		return DefaultTake
	}
	if take > MaxTake {
		return MaxTake
	}
	return take
}

func distinct(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func nonEmpty(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
