package project

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"timetrack/internal/domain/membership"
	"timetrack/internal/platform/apperr"
)

var (
	ErrNotFound       = apperr.NotFound("project_not_found", "project not found")
	ErrNameTaken      = apperr.Conflict("project_name_taken", "a project with this name already exists").WithField("name", "already in use")
	ErrNameRequired   = apperr.Validation("name_required", "name is required").WithField("name", "required")
	ErrNameTooLong    = apperr.Validation("name_too_long", "name is too long").WithField("name", "at most 200 characters")
	ErrCodeTooLong    = apperr.Validation("code_too_long", "code is too long").WithField("code", "at most 50 characters")
	ErrClientNotFound = apperr.Validation("invalid_client", "client must belong to this organization").WithField("clientId", "must be a client in this organization")
	ErrClientMissing  = apperr.NotFound("client_not_found", "client not found")

	ErrAssignmentNotFound = apperr.NotFound("assignment_not_found", "assignment not found")
	ErrAlreadyAssigned    = apperr.Conflict("already_assigned", "the user is already assigned to this project")
	ErrAssigneeRequired   = apperr.Validation("user_required", "userId is required").WithField("userId", "required")
	ErrAssigneeNotMember  = apperr.Validation("user_not_member", "user must be a member of the organization").WithField("userId", "must be an active member of this organization")
)

type Service struct {
	store Transactor
	now   func() time.Time
}

func NewService(store Transactor) *Service {
	return &Service{store: store, now: time.Now}
}

func (s *Service) ListClients(ctx context.Context, actorID, orgID string) ([]Client, error) {
	var out []Client
	err := s.store.InTx(ctx, func(st StoreAPI) error {
		if _, err := membership.RequireMember(ctx, st, actorID, orgID); err != nil {
			return err
		}
		var err error
		out, err = st.ListClients(ctx, orgID)
		return err
	})
	return out, err
}

func (s *Service) CreateClient(ctx context.Context, actorID, orgID, name string) (Client, error) {
	name, err := validName(name)
	if err != nil {
		return Client{}, err
	}
	var out Client
	err = s.store.InTx(ctx, func(st StoreAPI) error {
		if _, err := membership.RequireAnyRole(ctx, st, actorID, orgID, membership.ApproverRoles...); err != nil {
			return err
		}
		now := s.now().UTC()
		out = Client{ID: uuid.NewString(), OrganizationID: orgID, Name: name, IsActive: true, CreatedAt: now, UpdatedAt: now}
		return st.InsertClient(ctx, out)
	})
	return out, err
}

func (s *Service) GetClient(ctx context.Context, actorID, orgID, id string) (Client, error) {
	var out Client
	err := s.store.InTx(ctx, func(st StoreAPI) error {
		if _, err := membership.RequireMember(ctx, st, actorID, orgID); err != nil {
			return err
		}
		var err error
		out, err = st.GetClient(ctx, orgID, id)
		return err
	})
	return out, err
}

func (s *Service) UpdateClient(ctx context.Context, actorID, orgID, id string, patch ClientPatch) (Client, error) {
	var out Client
	err := s.store.InTx(ctx, func(st StoreAPI) error {
		if _, err := membership.RequireAnyRole(ctx, st, actorID, orgID, membership.ApproverRoles...); err != nil {
			return err
		}
		c, err := st.GetClient(ctx, orgID, id)
		if err != nil {
			return err
		}
		if patch.Name.IsNull() {
			return ErrNameRequired
		}
		if name, ok := patch.Name.Get(); ok {
			if c.Name, err = validName(name); err != nil {
				return err
			}
		}
		if active, ok := patch.IsActive.Get(); ok {
			c.IsActive = active
		}
		c.UpdatedAt = s.now().UTC()
		if err := st.UpdateClient(ctx, c); err != nil {
			return err
		}
		out = c
		return nil
	})
	return out, err
}

// DeleteClient removes the client and detaches it from its projects.
func (s *Service) DeleteClient(ctx context.Context, actorID, orgID, id string) error {
	return s.store.InTx(ctx, func(st StoreAPI) error {
		if _, err := membership.RequireAnyRole(ctx, st, actorID, orgID, membership.ApproverRoles...); err != nil {
			return err
		}
		if _, err := st.GetClient(ctx, orgID, id); err != nil {
			return err
		}
		return st.DeleteClient(ctx, orgID, id)
	})
}

func (s *Service) ListProjects(ctx context.Context, actorID, orgID string, activeOnly bool) ([]Project, error) {
	var out []Project
	err := s.store.InTx(ctx, func(st StoreAPI) error {
		if _, err := membership.RequireMember(ctx, st, actorID, orgID); err != nil {
			return err
		}
		var err error
		out, err = st.ListProjects(ctx, orgID, activeOnly)
		return err
	})
	return out, err
}

func (s *Service) GetProject(ctx context.Context, actorID, orgID, id string) (Project, error) {
	var out Project
	err := s.store.InTx(ctx, func(st StoreAPI) error {
		if _, err := membership.RequireMember(ctx, st, actorID, orgID); err != nil {
			return err
		}
		var err error
		out, err = st.GetProject(ctx, orgID, id)
		return err
	})
	return out, err
}

func (s *Service) CreateProject(ctx context.Context, actorID, orgID string, in Input) (Project, error) {
	name, err := validName(in.Name)
	if err != nil {
		return Project{}, err
	}
	code, err := validCode(in.Code)
	if err != nil {
		return Project{}, err
	}
	var out Project
	err = s.store.InTx(ctx, func(st StoreAPI) error {
		if _, err := membership.RequireAnyRole(ctx, st, actorID, orgID, membership.ApproverRoles...); err != nil {
			return err
		}
		clientID, err := checkClient(ctx, st, orgID, in.ClientID)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		out = Project{
			ID:             uuid.NewString(),
			OrganizationID: orgID,
			ClientID:       clientID,
			Name:           name,
			Code:           code,
			IsActive:       true,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		return st.InsertProject(ctx, out)
	})
	return out, err
}

func (s *Service) UpdateProject(ctx context.Context, actorID, orgID, id string, patch Patch) (Project, error) {
	var out Project
	err := s.store.InTx(ctx, func(st StoreAPI) error {
		if _, err := membership.RequireAnyRole(ctx, st, actorID, orgID, membership.ApproverRoles...); err != nil {
			return err
		}
		p, err := st.GetProject(ctx, orgID, id)
		if err != nil {
			return err
		}
		if patch.Name.IsNull() {
			return ErrNameRequired
		}
		if name, ok := patch.Name.Get(); ok {
			if p.Name, err = validName(name); err != nil {
				return err
			}
		}
		if patch.Code.Provided() {
			if p.Code, err = validCode(patch.Code.Ptr()); err != nil {
				return err
			}
		}
		if patch.ClientID.Provided() {
			if p.ClientID, err = checkClient(ctx, st, orgID, patch.ClientID.Ptr()); err != nil {
				return err
			}
		}
		if active, ok := patch.IsActive.Get(); ok {
			p.IsActive = active
		}
		p.UpdatedAt = s.now().UTC()
		if err := st.UpdateProject(ctx, p); err != nil {
			return err
		}
		out = p
		return nil
	})
	return out, err
}

func (s *Service) ListAssignments(ctx context.Context, actorID, orgID, projectID string) ([]Assignment, error) {
	var out []Assignment
	err := s.store.InTx(ctx, func(st StoreAPI) error {
		if _, err := membership.RequireMember(ctx, st, actorID, orgID); err != nil {
			return err
		}
		if _, err := st.GetProject(ctx, orgID, projectID); err != nil {
			return err
		}
		var err error
		out, err = st.ListAssignments(ctx, orgID, projectID)
		return err
	})
	return out, err
}

// AssignUser puts an active member on the project. Assigning the same user
// again returns the existing assignment.
func (s *Service) AssignUser(ctx context.Context, actorID, orgID, projectID, userID string) (Assignment, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Assignment{}, ErrAssigneeRequired
	}
	var out Assignment
	err := s.store.InTx(ctx, func(st StoreAPI) error {
		if _, err := membership.RequireAnyRole(ctx, st, actorID, orgID, membership.ApproverRoles...); err != nil {
			return err
		}
		if _, err := st.GetProject(ctx, orgID, projectID); err != nil {
			return err
		}
		_, ok, err := membership.MembershipOf(ctx, st, userID, orgID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrAssigneeNotMember
		}

		existing, err := st.FindAssignment(ctx, projectID, userID)
		if err == nil {
			out = existing
			return nil
		}
		if !errors.Is(err, ErrAssignmentNotFound) {
			return err
		}
		out = Assignment{
			ID:               uuid.NewString(),
			OrganizationID:   orgID,
			ProjectID:        projectID,
			UserID:           userID,
			AssignedByUserID: &actorID,
			AssignedAt:       s.now().UTC(),
		}
		return st.InsertAssignment(ctx, out)
	})
	return out, err
}

func (s *Service) UnassignUser(ctx context.Context, actorID, orgID, projectID, userID string) error {
	return s.store.InTx(ctx, func(st StoreAPI) error {
		if _, err := membership.RequireAnyRole(ctx, st, actorID, orgID, membership.ApproverRoles...); err != nil {
			return err
		}
		if _, err := st.GetProject(ctx, orgID, projectID); err != nil {
			return err
		}
		return st.DeleteAssignment(ctx, projectID, strings.TrimSpace(userID))
	})
}

func checkClient(ctx context.Context, st StoreAPI, orgID string, clientID *string) (*string, error) {
	if clientID == nil || strings.TrimSpace(*clientID) == "" {
		return nil, nil
	}
	id := strings.TrimSpace(*clientID)
	ok, err := st.ClientInOrganization(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrClientNotFound
	}
	return &id, nil
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

func validCode(code *string) (*string, error) {
	if code == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*code)
	if trimmed == "" {
		return nil, nil
	}
	if len([]rune(trimmed)) > MaxCodeLength {
		return nil, ErrCodeTooLong
	}
	return &trimmed, nil
}
