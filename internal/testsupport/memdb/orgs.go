package memdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"timetrack/internal/domain/auth"
	"timetrack/internal/domain/membership"
	"timetrack/internal/domain/organization"
	"timetrack/internal/domain/project"
)

func (t *Tx) InsertOrganization(_ context.Context, org organization.Organization) error {
	t.s.orgs[org.ID] = org
	return nil
}

func (t *Tx) GetOrganization(_ context.Context, id string) (organization.Organization, error) {
	org, ok := t.s.orgs[id]
	if !ok {
		return organization.Organization{}, organization.ErrNotFound
	}
	return org, nil
}

func (t *Tx) UpdateOrganization(_ context.Context, org organization.Organization) error {
	if _, ok := t.s.orgs[org.ID]; !ok {
		return organization.ErrNotFound
	}
	t.s.orgs[org.ID] = org
	return nil
}

func (t *Tx) ListForUser(_ context.Context, userID string) ([]organization.Summary, error) {
	out := []organization.Summary{}
	for _, m := range t.s.members {
		if m.UserID != userID || !m.IsActive {
			continue
		}
		if org, ok := t.s.orgs[m.OrganizationID]; ok && org.IsActive {
			out = append(out, organization.Summary{Organization: org, Role: m.Role})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *Tx) FindUserIDByEmail(_ context.Context, email string) (string, error) {
	for _, u := range t.s.users {
		if strings.EqualFold(u.Email, email) && u.IsActive {
			return u.ID, nil
		}
	}
	return "", organization.ErrUserNotFound
}

func (t *Tx) FindUserByEmail(_ context.Context, email string) (auth.User, error) {
	for _, u := range t.s.users {
		if strings.EqualFold(u.Email, email) {
			return auth.User{ID: u.ID, Email: u.Email, DisplayName: u.DisplayName, IsActive: u.IsActive, CreatedAt: u.CreatedAt}, nil
		}
	}
	return auth.User{}, auth.ErrUserNotFound
}

func (t *Tx) CreateUser(_ context.Context, u auth.User, passwordHash string) error {
	for _, existing := range t.s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return auth.ErrEmailTaken
		}
	}
	t.s.users[u.ID] = User{
		ID:           u.ID,
		Email:        u.Email,
		DisplayName:  u.DisplayName,
		PasswordHash: passwordHash,
		IsActive:     u.IsActive,
		CreatedAt:    u.CreatedAt,
	}
	return nil
}

func (t *Tx) Upsert(_ context.Context, id, orgID, userID string, role membership.Role, now time.Time) (membership.Membership, error) {
	key := memberKey(orgID, userID)
	m, ok := t.s.members[key]
	if !ok {
		m = membership.Membership{ID: id, OrganizationID: orgID, UserID: userID, CreatedAt: now}
	}
	m.Role = role
	m.IsActive = true
	m.UpdatedAt = now
	t.s.members[key] = m
	return m, nil
}

func (t *Tx) UpdateMember(_ context.Context, orgID, userID string, update membership.MemberUpdate, now time.Time) (membership.Membership, error) {
	key := memberKey(orgID, userID)
	m, ok := t.s.members[key]
	if !ok {
		return membership.Membership{}, membership.ErrNoMembership
	}
	if update.Role != nil {
		m.Role = *update.Role
	}
	if update.IsActive != nil {
		m.IsActive = *update.IsActive
	}
	m.UpdatedAt = now
	t.s.members[key] = m
	return m, nil
}

func (t *Tx) ListMembers(_ context.Context, orgID string) ([]membership.Member, error) {
	var out []membership.Member
	for _, m := range t.s.members {
		if m.OrganizationID != orgID {
			continue
		}
		u := t.s.users[m.UserID]
		out = append(out, membership.Member{Membership: m, Email: u.Email, DisplayName: u.DisplayName})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayName != out[j].DisplayName {
			return out[i].DisplayName < out[j].DisplayName
		}
		return out[i].Email < out[j].Email
	})
	return out, nil
}

func (t *Tx) CountActiveAdmins(_ context.Context, orgID string) (int, error) {
	count := 0
	for _, m := range t.s.members {
		if m.OrganizationID == orgID && m.IsActive && m.Role == membership.RoleAdmin {
			count++
		}
	}
	return count, nil
}

func (t *Tx) ListClients(_ context.Context, orgID string) ([]project.Client, error) {
	out := []project.Client{}
	for _, c := range t.s.clients {
		if c.OrganizationID == orgID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (t *Tx) InsertClient(_ context.Context, c project.Client) error {
	t.s.clients[c.ID] = c
	return nil
}

func (t *Tx) ClientInOrganization(_ context.Context, orgID, clientID string) (bool, error) {
	c, ok := t.s.clients[clientID]
	return ok && c.OrganizationID == orgID, nil
}

func (t *Tx) GetClient(_ context.Context, orgID, id string) (project.Client, error) {
	c, ok := t.s.clients[id]
	if !ok || c.OrganizationID != orgID {
		return project.Client{}, project.ErrClientMissing
	}
	return c, nil
}

func (t *Tx) UpdateClient(_ context.Context, c project.Client) error {
	if _, ok := t.s.clients[c.ID]; !ok {
		return project.ErrClientMissing
	}
	t.s.clients[c.ID] = c
	return nil
}

func (t *Tx) DeleteClient(_ context.Context, orgID, id string) error {
	c, ok := t.s.clients[id]
	if !ok || c.OrganizationID != orgID {
		return project.ErrClientMissing
	}
	delete(t.s.clients, id)
	for pid, p := range t.s.projects {
		if p.ClientID != nil && *p.ClientID == id {
			p.ClientID = nil
			t.s.projects[pid] = p
		}
	}
	return nil
}

func (t *Tx) ListProjects(_ context.Context, orgID string, activeOnly bool) ([]project.Project, error) {
	out := []project.Project{}
	for _, p := range t.s.projects {
		if p.OrganizationID == orgID && (!activeOnly || p.IsActive) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *Tx) GetProject(_ context.Context, orgID, id string) (project.Project, error) {
	p, ok := t.s.projects[id]
	if !ok || p.OrganizationID != orgID {
		return project.Project{}, project.ErrNotFound
	}
	return p, nil
}

func (t *Tx) nameTaken(p project.Project) bool {
	for _, other := range t.s.projects {
		if other.ID != p.ID && other.OrganizationID == p.OrganizationID && other.Name == p.Name {
			return true
		}
	}
	return false
}

func (t *Tx) InsertProject(_ context.Context, p project.Project) error {
	if t.nameTaken(p) {
		return project.ErrNameTaken
	}
	t.s.projects[p.ID] = p
	return nil
}

func (t *Tx) UpdateProject(_ context.Context, p project.Project) error {
	if _, ok := t.s.projects[p.ID]; !ok {
		return project.ErrNotFound
	}
	if t.nameTaken(p) {
		return project.ErrNameTaken
	}
	t.s.projects[p.ID] = p
	return nil
}

func assignmentKey(projectID, userID string) string {
	return projectID + "|" + userID
}

func (t *Tx) ListAssignments(_ context.Context, orgID, projectID string) ([]project.Assignment, error) {
	out := []project.Assignment{}
	for _, a := range t.s.assignments {
		if a.OrganizationID == orgID && a.ProjectID == projectID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AssignedAt.Equal(out[j].AssignedAt) {
			return out[i].AssignedAt.Before(out[j].AssignedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *Tx) FindAssignment(_ context.Context, projectID, userID string) (project.Assignment, error) {
	a, ok := t.s.assignments[assignmentKey(projectID, userID)]
	if !ok {
		return project.Assignment{}, project.ErrAssignmentNotFound
	}
	return a, nil
}

func (t *Tx) InsertAssignment(_ context.Context, a project.Assignment) error {
	key := assignmentKey(a.ProjectID, a.UserID)
	if _, ok := t.s.assignments[key]; ok {
		return project.ErrAlreadyAssigned
	}
	t.s.assignments[key] = a
	return nil
}

func (t *Tx) DeleteAssignment(_ context.Context, projectID, userID string) error {
	key := assignmentKey(projectID, userID)
	if _, ok := t.s.assignments[key]; !ok {
		return project.ErrAssignmentNotFound
	}
	delete(t.s.assignments, key)
	return nil
}
