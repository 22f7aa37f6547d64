package notifications

import "time"

type Notification struct {
	ID              string     `json:"id"`
	OrganizationID  string     `json:"organizationId"`
	RecipientUserID string     `json:"recipientUserId"`
	ActorUserID     *string    `json:"actorUserId,omitempty"`
	TimesheetID     *string    `json:"timesheetId,omitempty"`
	Type            Type       `json:"type"`
	Title           string     `json:"title"`
	Message         string     `json:"message"`
	CreatedAt       time.Time  `json:"createdAt"`
	ReadAt          *time.Time `json:"readAt,omitempty"`
}

func (n Notification) IsRead() bool {
	return n.ReadAt != nil
}

// Event describes the transition a notification reports on.
type Event struct {
	Type           Type
	OrganizationID string
	ActorUserID    string
	ActorName      string
	TimesheetID    string
	WeekStart      time.Time
	Comment        string
	Reason         string
	PendingCount   int
}

// Email is a rendered notification queued for delivery after commit.
type Email struct {
	OrganizationID  string `json:"organizationId"`
	RecipientUserID string `json:"recipientUserId"`
	Subject         string `json:"subject"`
	Body            string `json:"body"`
}

type Page struct {
	Items       []Notification `json:"items"`
	UnreadCount int            `json:"unreadCount"`
}
