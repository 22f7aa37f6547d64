package project

import (
	"context"

	"timetrack/internal/domain/membership"
)

type StoreAPI interface {
	membership.Directory

	ListClients(ctx context.Context, orgID string) ([]Client, error)
	InsertClient(ctx context.Context, c Client) error
	ClientInOrganization(ctx context.Context, orgID, clientID string) (bool, error)
	GetClient(ctx context.Context, orgID, id string) (Client, error)
	UpdateClient(ctx context.Context, c Client) error
	DeleteClient(ctx context.Context, orgID, id string) error

	ListProjects(ctx context.Context, orgID string, activeOnly bool) ([]Project, error)
	GetProject(ctx context.Context, orgID, id string) (Project, error)
	InsertProject(ctx context.Context, p Project) error
	UpdateProject(ctx context.Context, p Project) error

	ListAssignments(ctx context.Context, orgID, projectID string) ([]Assignment, error)
	FindAssignment(ctx context.Context, projectID, userID string) (Assignment, error)
	InsertAssignment(ctx context.Context, a Assignment) error
	DeleteAssignment(ctx context.Context, projectID, userID string) error
}

type Transactor interface {
	InTx(ctx context.Context, fn func(StoreAPI) error) error
}
