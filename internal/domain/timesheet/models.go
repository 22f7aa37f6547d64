package timesheet

import (
	"encoding/json"
	"time"

	"timetrack/internal/platform/optional"
)

type Status string

const (
	StatusDraft     Status = "Draft"
	StatusSubmitted Status = "Submitted"
	StatusApproved  Status = "Approved"
	StatusRejected  Status = "Rejected"
)

type Timesheet struct {
	ID               string     `json:"id"`
	OrganizationID   string     `json:"organizationId"`
	UserID           string     `json:"userId"`
	WeekStartDate    time.Time  `json:"weekStartDate"`
	WeekEndDate      time.Time  `json:"weekEndDate"`
	Status           Status     `json:"status"`
	SubmittedAt      *time.Time `json:"submittedAtUtc,omitempty"`
	SubmitComment    *string    `json:"submitComment,omitempty"`
	ApprovedByUserID *string    `json:"approvedByUserId,omitempty"`
	ApprovedAt       *time.Time `json:"approvedAtUtc,omitempty"`
	ApprovalComment  *string    `json:"approvalComment,omitempty"`
	RejectedByUserID *string    `json:"rejectedByUserId,omitempty"`
	RejectedAt       *time.Time `json:"rejectedAtUtc,omitempty"`
	RejectionReason  *string    `json:"rejectionReason,omitempty"`
	LockedAt         *time.Time `json:"lockedAtUtc,omitempty"`
	CreatedAt        time.Time  `json:"createdAtUtc"`
	UpdatedAt        time.Time  `json:"updatedAtUtc"`
}

// Editable reports whether the owner may change entries.
func (t Timesheet) Editable() bool {
	return (t.Status == StatusDraft || t.Status == StatusRejected) && t.LockedAt == nil
}

// Summary is a timesheet with its computed totals.
type Summary struct {
	Timesheet
	TotalMinutes int     `json:"totalMinutes"`
	TotalHours   float64 `json:"totalHours"`
}

type Entry struct {
	ID              string     `json:"id"`
	TimesheetID     string     `json:"timesheetId"`
	ProjectID       string     `json:"projectId"`
	WorkDate        time.Time  `json:"workDate"`
	StartTime       *ClockTime `json:"startTime,omitempty"`
	EndTime         *ClockTime `json:"endTime,omitempty"`
	DurationMinutes int        `json:"durationMinutes"`
	Notes           *string    `json:"notes,omitempty"`
	IsDeleted       bool       `json:"isDeleted"`
	CreatedAt       time.Time  `json:"createdAtUtc"`
	UpdatedAt       time.Time  `json:"updatedAtUtc"`
}

func (e Entry) MarshalJSON() ([]byte, error) {
	type plain Entry
	return json.Marshal(struct {
		plain
		Hours float64 `json:"hours"`
	}{plain: plain(e), Hours: HoursFromMinutes(e.DurationMinutes)})
}

type EntryInput struct {
	ProjectID       string
	WorkDate        time.Time
	StartTime       *ClockTime
	EndTime         *ClockTime
	DurationMinutes *int
	Notes           *string
}

// EntryPatch leaves fields that were not provided untouched. A null
// StartTime, EndTime or Notes clears the field; a null DurationMinutes
// recomputes the duration from the times.
type EntryPatch struct {
	ProjectID       optional.Value[string]
	WorkDate        optional.Value[time.Time]
	StartTime       optional.Value[ClockTime]
	EndTime         optional.Value[ClockTime]
	DurationMinutes optional.Value[int]
	Notes           optional.Value[string]
	IsDeleted       optional.Value[bool]
}

// WeekRange bounds listings by week start; nil ends are open.
type WeekRange struct {
	From *time.Time
	To   *time.Time
}

type ListOrder int

const (
	OrderNewestFirst ListOrder = iota
	OrderNewestFirstByUser
	OrderOldestSubmittedFirst
)

type ListFilter struct {
	OrganizationID string
	UserID         string
	Status         Status
	From           *time.Time
	To             *time.Time
	Order          ListOrder
}

// Policy holds configurable lifecycle behavior.
type Policy struct {
	// LockOnSubmit stamps LockedAt at submission instead of only at approval.
	LockOnSubmit bool
}
