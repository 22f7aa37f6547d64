package membership

import (
	"context"
	"errors"
	"slices"

	"timetrack/internal/platform/apperr"
)

var (
	ErrNotMember    = apperr.Forbidden("not_a_member", "not an active member of this organization")
	ErrRoleRequired = apperr.Forbidden("insufficient_role", "your role does not permit this operation")

	// ErrNoMembership is returned by Directory implementations when no row
	// exists for the pair.
	ErrNoMembership = errors.New("membership not found")
)

// Directory resolves membership rows. Implementations return rows whether
// or not they are active; the gate functions apply the active filter.
type Directory interface {
	FindMembership(ctx context.Context, orgID, userID string) (Membership, error)
	ActiveUserIDsWithRoles(ctx context.Context, orgID string, roles []Role) ([]string, error)
}

// MembershipOf returns the caller's active membership. Inactive rows are
// reported as absent.
func MembershipOf(ctx context.Context, dir Directory, userID, orgID string) (Membership, bool, error) {
	if userID == "" || orgID == "" {
		return Membership{}, false, nil
	}
	m, err := dir.FindMembership(ctx, orgID, userID)
	if errors.Is(err, ErrNoMembership) {
		return Membership{}, false, nil
	}
	if err != nil {
		return Membership{}, false, err
	}
	if !m.IsActive {
		return Membership{}, false, nil
	}
	return m, true, nil
}

func HasAnyRole(ctx context.Context, dir Directory, userID, orgID string, roles ...Role) (bool, error) {
	m, ok, err := MembershipOf(ctx, dir, userID, orgID)
	if err != nil || !ok {
		return false, err
	}
	return slices.Contains(roles, m.Role), nil
}

func RequireMember(ctx context.Context, dir Directory, userID, orgID string) (Membership, error) {
	m, ok, err := MembershipOf(ctx, dir, userID, orgID)
	if err != nil {
		return Membership{}, err
	}
	if !ok {
		return Membership{}, ErrNotMember
	}
	return m, nil
}

// RequireAnyRole distinguishes non-members from members lacking the role
// so callers see the more specific reason.
func RequireAnyRole(ctx context.Context, dir Directory, userID, orgID string, roles ...Role) (Membership, error) {
	m, err := RequireMember(ctx, dir, userID, orgID)
	if err != nil {
		return Membership{}, err
	}
	if !slices.Contains(roles, m.Role) {
		return Membership{}, ErrRoleRequired
	}
	return m, nil
}

func IsApprover(m Membership) bool {
	return m.IsActive && slices.Contains(ApproverRoles, m.Role)
}
