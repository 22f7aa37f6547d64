package organization

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"timetrack/internal/domain/auth"
	"timetrack/internal/domain/membership"
	"timetrack/internal/platform/apperr"
)

var (
	ErrNotFound      = apperr.NotFound("organization_not_found", "organization not found")
	ErrUserNotFound  = apperr.NotFound("user_not_found", "no active user with that email")
	ErrMemberMissing = apperr.NotFound("member_not_found", "member not found")
	ErrNameRequired  = apperr.Validation("name_required", "name is required").WithField("name", "required")
	ErrNameTooLong   = apperr.Validation("name_too_long", "name is too long").WithField("name", "at most 200 characters")
	ErrInvalidRole   = apperr.Validation("invalid_role", "role must be Admin, Manager or Employee").WithField("role", "must be Admin, Manager or Employee")
	ErrLastAdmin     = apperr.Conflict("last_admin", "an organization needs at least one active admin")
)

type Service struct {
	store Transactor
	now   func() time.Time
}

func NewService(store Transactor) *Service {
	return &Service{store: store, now: time.Now}
}

// Create makes actorID the first admin of a new organization.
func (s *Service) Create(ctx context.Context, actorID, name string) (Summary, error) {
	name, err := validName(name)
	if err != nil {
		return Summary{}, err
	}
	now := s.now().UTC()
	org := Organization{ID: uuid.NewString(), Name: name, IsActive: true, CreatedAt: now, UpdatedAt: now}
	err = s.store.InTx(ctx, func(st StoreAPI) error {
		if err := st.InsertOrganization(ctx, org); err != nil {
			return err
		}
		_, err := st.Upsert(ctx, uuid.NewString(), org.ID, actorID, membership.RoleAdmin, now)
		return err
	})
	if err != nil {
		return Summary{}, err
	}
	return Summary{Organization: org, Role: membership.RoleAdmin}, nil
}

func (s *Service) ListMine(ctx context.Context, actorID string) ([]Summary, error) {
	var out []Summary
	err := s.store.InTx(ctx, func(st StoreAPI) error {
		var err error
		out, err = st.ListForUser(ctx, actorID)
		return err
	})
	return out, err
}

func (s *Service) Get(ctx context.Context, actorID, orgID string) (Summary, error) {
	var out Summary
	err := s.store.InTx(ctx, func(st StoreAPI) error {
		m, err := membership.RequireMember(ctx, st, actorID, orgID)
		if err != nil {
			return err
		}
		org, err := st.GetOrganization(ctx, orgID)
		if err != nil {
			return err
		}
		out = Summary{Organization: org, Role: m.Role}
		return nil
	})
	return out, err
}

func (s *Service) Update(ctx context.Context, actorID, orgID string, update Update) (Summary, error) {
	var out Summary
	err := s.store.InTx(ctx, func(st StoreAPI) error {
		m, err := membership.RequireAnyRole(ctx, st, actorID, orgID, membership.RoleAdmin)
		if err != nil {
			return err
		}
		org, err := st.GetOrganization(ctx, orgID)
		if err != nil {
			return err
		}
		if update.Name != nil {
			if org.Name, err = validName(*update.Name); err != nil {
				return err
			}
		}
		if update.IsActive != nil {
			org.IsActive = *update.IsActive
		}
		org.UpdatedAt = s.now().UTC()
		if err := st.UpdateOrganization(ctx, org); err != nil {
			return err
		}
		out = Summary{Organization: org, Role: m.Role}
		return nil
	})
	return out, err
}

// ListMembers is open to admins and managers.
func (s *Service) ListMembers(ctx context.Context, actorID, orgID string) ([]membership.Member, error) {
	var out []membership.Member
	err := s.store.InTx(ctx, func(st StoreAPI) error {
		if _, err := membership.RequireAnyRole(ctx, st, actorID, orgID, membership.ApproverRoles...); err != nil {
			return err
		}
		var err error
		out, err = st.ListMembers(ctx, orgID)
		if out == nil {
			out = []membership.Member{}
		}
		return err
	})
	return out, err
}

// AddMember adds the user registered under email, reactivating an existing
// membership with the new role.
func (s *Service) AddMember(ctx context.Context, actorID, orgID, email string, role membership.Role) (membership.Membership, error) {
	if !role.Valid() {
		return membership.Membership{}, ErrInvalidRole
	}
	var out membership.Membership
	err := s.store.InTx(ctx, func(st StoreAPI) error {
		if _, err := membership.RequireAnyRole(ctx, st, actorID, orgID, membership.RoleAdmin); err != nil {
			return err
		}
		userID, err := st.FindUserIDByEmail(ctx, strings.TrimSpace(email))
		if err != nil {
			return err
		}
		out, err = st.Upsert(ctx, uuid.NewString(), orgID, userID, role, s.now().UTC())
		return err
	})
	return out, err
}

// CreateUser opens an account and adds it to the organization. When the
// email is already registered, that account is added or reactivated with
// the role instead and its password is left unchanged.
func (s *Service) CreateUser(ctx context.Context, actorID, orgID string, in NewUser) (membership.Member, error) {
	if !in.Role.Valid() {
		return membership.Member{}, ErrInvalidRole
	}
	account, hash, err := auth.NewAccount(in.Email, in.Password, in.DisplayName, s.now())
	if err != nil {
		return membership.Member{}, err
	}
	var out membership.Member
	err = s.store.InTx(ctx, func(st StoreAPI) error {
		if _, err := membership.RequireAnyRole(ctx, st, actorID, orgID, membership.RoleAdmin); err != nil {
			return err
		}
		if _, err := st.GetOrganization(ctx, orgID); err != nil {
			return err
		}
		user, err := st.FindUserByEmail(ctx, account.Email)
		if errors.Is(err, auth.ErrUserNotFound) {
			user = account
			err = st.CreateUser(ctx, user, hash)
		}
		if err != nil {
			return err
		}
		m, err := st.Upsert(ctx, uuid.NewString(), orgID, user.ID, in.Role, s.now().UTC())
		if err != nil {
			return err
		}
		out = membership.Member{Membership: m, Email: user.Email, DisplayName: user.DisplayName}
		return nil
	})
	return out, err
}

// UpdateMember changes role or active flag. The last active admin cannot
// be demoted or deactivated.
func (s *Service) UpdateMember(ctx context.Context, actorID, orgID, userID string, update membership.MemberUpdate) (membership.Membership, error) {
	if update.Role != nil && !update.Role.Valid() {
		return membership.Membership{}, ErrInvalidRole
	}
	var out membership.Membership
	err := s.store.InTx(ctx, func(st StoreAPI) error {
		if _, err := membership.RequireAnyRole(ctx, st, actorID, orgID, membership.RoleAdmin); err != nil {
			return err
		}
		current, err := st.FindMembership(ctx, orgID, userID)
		if errors.Is(err, membership.ErrNoMembership) {
			return ErrMemberMissing
		}
		if err != nil {
			return err
		}

		losesAdmin := current.IsActive && current.Role == membership.RoleAdmin &&
			((update.Role != nil && *update.Role != membership.RoleAdmin) || (update.IsActive != nil && !*update.IsActive))
		if losesAdmin {
			admins, err := st.CountActiveAdmins(ctx, orgID)
			if err != nil {
				return err
			}
			if admins <= 1 {
				return ErrLastAdmin
			}
		}

		out, err = st.UpdateMember(ctx, orgID, userID, update, s.now().UTC())
		if errors.Is(err, membership.ErrNoMembership) {
			return ErrMemberMissing
		}
		return err
	})
	return out, err
}

func validName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrNameRequired
	}
	if len([]rune(name)) > MaxNameLength {
		return "", ErrNameTooLong
	}
	return name, nil
}
