package organization

import (
	"time"

	"timetrack/internal/domain/membership"
)

const MaxNameLength = 200

type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Summary is an organization seen through the caller's membership.
type Summary struct {
	Organization
	Role membership.Role `json:"role"`
}

type Update struct {
	Name     *string
	IsActive *bool
}

// NewUser is an account an admin creates directly inside an organization.
type NewUser struct {
	Email       string
	Password    string
	DisplayName string
	Role        membership.Role
}
