package membership

import "time"

type Membership struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organizationId"`
	UserID         string    `json:"userId"`
	Role           Role      `json:"role"`
	IsActive       bool      `json:"isActive"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Member is a membership joined with the user's profile.
type Member struct {
	Membership
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

type MemberUpdate struct {
	Role     *Role
	IsActive *bool
}
