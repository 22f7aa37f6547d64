package project

import (
	"time"

	"timetrack/internal/platform/optional"
)

const (
	MaxNameLength = 200
	MaxCodeLength = 50
)

type Client struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organizationId"`
	Name           string    `json:"name"`
	IsActive       bool      `json:"isActive"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

type Project struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organizationId"`
	ClientID       *string   `json:"clientId,omitempty"`
	Name           string    `json:"name"`
	Code           *string   `json:"code,omitempty"`
	IsActive       bool      `json:"isActive"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

type Input struct {
	Name     string
	Code     *string
	ClientID *string
}

// Patch leaves absent fields untouched; a null ClientID or Code clears it.
type Patch struct {
	Name     optional.Value[string]
	Code     optional.Value[string]
	ClientID optional.Value[string]
	IsActive optional.Value[bool]
}

// ClientPatch leaves absent fields untouched.
type ClientPatch struct {
	Name     optional.Value[string]
	IsActive optional.Value[bool]
}

// Assignment puts a member on a project.
type Assignment struct {
	ID               string    `json:"id"`
	OrganizationID   string    `json:"organizationId"`
	ProjectID        string    `json:"projectId"`
	UserID           string    `json:"userId"`
	AssignedByUserID *string   `json:"assignedByUserId,omitempty"`
	AssignedAt       time.Time `json:"assignedAt"`
}
