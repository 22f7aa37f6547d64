package organization

import (
	"context"
	"time"

	"timetrack/internal/domain/auth"
	"timetrack/internal/domain/membership"
)

type StoreAPI interface {
	membership.Directory

	InsertOrganization(ctx context.Context, org Organization) error
	GetOrganization(ctx context.Context, id string) (Organization, error)
	UpdateOrganization(ctx context.Context, org Organization) error
	ListForUser(ctx context.Context, userID string) ([]Summary, error)
	FindUserIDByEmail(ctx context.Context, email string) (string, error)

	// FindUserByEmail matches inactive users too and returns
	// auth.ErrUserNotFound on a miss.
	FindUserByEmail(ctx context.Context, email string) (auth.User, error)
	CreateUser(ctx context.Context, u auth.User, passwordHash string) error

	Upsert(ctx context.Context, id, orgID, userID string, role membership.Role, now time.Time) (membership.Membership, error)
	UpdateMember(ctx context.Context, orgID, userID string, update membership.MemberUpdate, now time.Time) (membership.Membership, error)
	ListMembers(ctx context.Context, orgID string) ([]membership.Member, error)
	CountActiveAdmins(ctx context.Context, orgID string) (int, error)
}

type Transactor interface {
	InTx(ctx context.Context, fn func(StoreAPI) error) error
}
