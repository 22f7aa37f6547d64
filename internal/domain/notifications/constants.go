package notifications

import "time"

type Type string

const (
	TypeTimesheetSubmitted Type = "timesheet_submitted"
	TypeTimesheetApproved  Type = "timesheet_approved"
	TypeTimesheetRejected  Type = "timesheet_rejected"
	TypeTimesheetReminder  Type = "timesheet_reminder"
)

const (
	MaxTitleLength   = 200
	MaxMessageLength = 2000

	DefaultTake = 25
	MaxTake     = 100

	// ReminderWindow suppresses a new reminder while an unread one this
	// recent exists.
	ReminderWindow = 12 * time.Hour
)
