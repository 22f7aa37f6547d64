package project_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timetrack/internal/domain/membership"
	"timetrack/internal/domain/project"
	"timetrack/internal/platform/optional"
	"timetrack/internal/testsupport/memdb"
)

type fixture struct {
	db       *memdb.DB
	svc      *project.Service
	org      string
	manager  string
	employee string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := memdb.New()
	f := fixture{db: db, svc: project.NewService(db.Projects()), org: db.AddOrganization()}
	f.manager = db.AddUser("manager@example.com", "Max")
	f.employee = db.AddUser("employee@example.com", "Eve")
	db.AddMember(f.org, f.manager, membership.RoleManager)
	db.AddMember(f.org, f.employee, membership.RoleEmployee)
	return f
}

func strPtr(s string) *string { return &s }

func TestCreateProjectWithClient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	client, err := f.svc.CreateClient(ctx, f.manager, f.org, " Globex ")
	require.NoError(t, err)
	assert.Equal(t, "Globex", client.Name)

	p, err := f.svc.CreateProject(ctx, f.manager, f.org, project.Input{
		Name:     " Website ",
		Code:     strPtr(" WEB "),
		ClientID: strPtr(client.ID),
	})
	require.NoError(t, err)
	assert.Equal(t, "Website", p.Name)
	require.NotNil(t, p.Code)
	assert.Equal(t, "WEB", *p.Code)
	require.NotNil(t, p.ClientID)
	assert.Equal(t, client.ID, *p.ClientID)
	assert.True(t, p.IsActive)

	clients, err := f.svc.ListClients(ctx, f.employee, f.org)
	require.NoError(t, err)
	assert.Len(t, clients, 1)
}

func TestCreateProjectRejectsForeignClient(t *testing.T) {
	f := newFixture(t)
	other := f.db.AddOrganization()
	foreign := f.db.AddClient(other, "Initech")

	_, err := f.svc.CreateProject(context.Background(), f.manager, f.org, project.Input{Name: "X", ClientID: strPtr(foreign)})
	assert.ErrorIs(t, err, project.ErrClientNotFound)

	_, err = f.svc.CreateProject(context.Background(), f.manager, f.org, project.Input{Name: "X", ClientID: strPtr(uuid.NewString())})
	assert.ErrorIs(t, err, project.ErrClientNotFound)
}

func TestCreateProjectGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateProject(ctx, f.employee, f.org, project.Input{Name: "Mine"})
	assert.ErrorIs(t, err, membership.ErrRoleRequired)

	_, err = f.svc.CreateProject(ctx, f.manager, f.org, project.Input{Name: " "})
	assert.ErrorIs(t, err, project.ErrNameRequired)

	_, err = f.svc.CreateProject(ctx, f.manager, f.org, project.Input{Name: "Dup"})
	require.NoError(t, err)
	_, err = f.svc.CreateProject(ctx, f.manager, f.org, project.Input{Name: "Dup"})
	assert.ErrorIs(t, err, project.ErrNameTaken)
}

func TestListProjectsActiveOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.db.AddProject(f.org, "Alpha", true)
	f.db.AddProject(f.org, "Beta", false)
	f.db.AddProject(f.db.AddOrganization(), "Elsewhere", true)

	all, err := f.svc.ListProjects(ctx, f.employee, f.org, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	active, err := f.svc.ListProjects(ctx, f.employee, f.org, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Alpha", active[0].Name)

	outsider := f.db.AddUser("out@example.com", "Oscar")
	_, err = f.svc.ListProjects(ctx, outsider, f.org, false)
	assert.ErrorIs(t, err, membership.ErrNotMember)
}

func TestUpdateProjectPatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	client := f.db.AddClient(f.org, "Globex")
	p, err := f.svc.CreateProject(ctx, f.manager, f.org, project.Input{Name: "Site", Code: strPtr("S1"), ClientID: strPtr(client)})
	require.NoError(t, err)

	got, err := f.svc.UpdateProject(ctx, f.manager, f.org, p.ID, project.Patch{
		Code:     optional.Null[string](),
		IsActive: optional.Some(false),
	})
	require.NoError(t, err)
	assert.Equal(t, "Site", got.Name)
	assert.Nil(t, got.Code)
	require.NotNil(t, got.ClientID)
	assert.False(t, got.IsActive)

	got, err = f.svc.UpdateProject(ctx, f.manager, f.org, p.ID, project.Patch{ClientID: optional.Null[string]()})
	require.NoError(t, err)
	assert.Nil(t, got.ClientID)

	_, err = f.svc.UpdateProject(ctx, f.manager, f.org, p.ID, project.Patch{Name: optional.Null[string]()})
	assert.ErrorIs(t, err, project.ErrNameRequired)

	_, err = f.svc.UpdateProject(ctx, f.manager, f.org, uuid.NewString(), project.Patch{})
	assert.ErrorIs(t, err, project.ErrNotFound)
}

func TestClientGetUpdateDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	client := f.db.AddClient(f.org, "Globex")
	p, err := f.svc.CreateProject(ctx, f.manager, f.org, project.Input{Name: "Site", ClientID: strPtr(client)})
	require.NoError(t, err)

	got, err := f.svc.GetClient(ctx, f.employee, f.org, client)
	require.NoError(t, err)
	assert.Equal(t, "Globex", got.Name)

	updated, err := f.svc.UpdateClient(ctx, f.manager, f.org, client, project.ClientPatch{
		Name:     optional.Some(" Globex Corp "),
		IsActive: optional.Some(false),
	})
	require.NoError(t, err)
	assert.Equal(t, "Globex Corp", updated.Name)
	assert.False(t, updated.IsActive)

	_, err = f.svc.UpdateClient(ctx, f.manager, f.org, client, project.ClientPatch{Name: optional.Null[string]()})
	assert.ErrorIs(t, err, project.ErrNameRequired)

	err = f.svc.DeleteClient(ctx, f.employee, f.org, client)
	assert.ErrorIs(t, err, membership.ErrRoleRequired)

	require.NoError(t, f.svc.DeleteClient(ctx, f.manager, f.org, client))
	_, ok := f.db.Client(client)
	assert.False(t, ok)
	detached, ok := f.db.Project(p.ID)
	require.True(t, ok)
	assert.Nil(t, detached.ClientID)

	_, err = f.svc.GetClient(ctx, f.employee, f.org, client)
	assert.ErrorIs(t, err, project.ErrClientMissing)
	err = f.svc.DeleteClient(ctx, f.manager, f.org, client)
	assert.ErrorIs(t, err, project.ErrClientMissing)
}

func TestClientsAreScopedToOrganization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	foreign := f.db.AddClient(f.db.AddOrganization(), "Initech")

	_, err := f.svc.GetClient(ctx, f.employee, f.org, foreign)
	assert.ErrorIs(t, err, project.ErrClientMissing)

	_, err = f.svc.UpdateClient(ctx, f.manager, f.org, foreign, project.ClientPatch{Name: optional.Some("Mine")})
	assert.ErrorIs(t, err, project.ErrClientMissing)

	err = f.svc.DeleteClient(ctx, f.manager, f.org, foreign)
	assert.ErrorIs(t, err, project.ErrClientMissing)
	_, ok := f.db.Client(foreign)
	assert.True(t, ok)
}

func TestAssignUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.db.AddProject(f.org, "Alpha", true)

	first, err := f.svc.AssignUser(ctx, f.manager, f.org, p, f.employee)
	require.NoError(t, err)
	assert.Equal(t, f.employee, first.UserID)
	assert.Equal(t, p, first.ProjectID)
	require.NotNil(t, first.AssignedByUserID)
	assert.Equal(t, f.manager, *first.AssignedByUserID)

	again, err := f.svc.AssignUser(ctx, f.manager, f.org, p, f.employee)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	second, err := f.svc.AssignUser(ctx, f.manager, f.org, p, f.manager)
	require.NoError(t, err)

	list, err := f.svc.ListAssignments(ctx, f.employee, f.org, p)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.ElementsMatch(t, []string{first.ID, second.ID}, []string{list[0].ID, list[1].ID})
	assert.False(t, list[1].AssignedAt.Before(list[0].AssignedAt))
}

func TestAssignUserGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.db.AddProject(f.org, "Alpha", true)
	outsider := f.db.AddUser("out@example.com", "Oscar")
	retired := f.db.AddUser("retired@example.com", "Rita")
	f.db.AddMember(f.org, retired, membership.RoleEmployee)
	f.db.DeactivateMember(f.org, retired)

	_, err := f.svc.AssignUser(ctx, f.employee, f.org, p, f.employee)
	assert.ErrorIs(t, err, membership.ErrRoleRequired)

	_, err = f.svc.AssignUser(ctx, f.manager, f.org, p, " ")
	assert.ErrorIs(t, err, project.ErrAssigneeRequired)

	_, err = f.svc.AssignUser(ctx, f.manager, f.org, p, outsider)
	assert.ErrorIs(t, err, project.ErrAssigneeNotMember)

	_, err = f.svc.AssignUser(ctx, f.manager, f.org, p, retired)
	assert.ErrorIs(t, err, project.ErrAssigneeNotMember)

	_, err = f.svc.AssignUser(ctx, f.manager, f.org, uuid.NewString(), f.employee)
	assert.ErrorIs(t, err, project.ErrNotFound)

	foreign := f.db.AddProject(f.db.AddOrganization(), "Elsewhere", true)
	_, err = f.svc.AssignUser(ctx, f.manager, f.org, foreign, f.employee)
	assert.ErrorIs(t, err, project.ErrNotFound)
}

func TestUnassignUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.db.AddProject(f.org, "Alpha", true)
	_, err := f.svc.AssignUser(ctx, f.manager, f.org, p, f.employee)
	require.NoError(t, err)

	err = f.svc.UnassignUser(ctx, f.employee, f.org, p, f.employee)
	assert.ErrorIs(t, err, membership.ErrRoleRequired)

	require.NoError(t, f.svc.UnassignUser(ctx, f.manager, f.org, p, f.employee))

	err = f.svc.UnassignUser(ctx, f.manager, f.org, p, f.employee)
	assert.ErrorIs(t, err, project.ErrAssignmentNotFound)

	err = f.svc.UnassignUser(ctx, f.manager, f.org, uuid.NewString(), f.employee)
	assert.ErrorIs(t, err, project.ErrNotFound)

	list, err := f.svc.ListAssignments(ctx, f.employee, f.org, p)
	require.NoError(t, err)
	assert.Empty(t, list)

	outsider := f.db.AddUser("out@example.com", "Oscar")
	_, err = f.svc.ListAssignments(ctx, outsider, f.org, p)
	assert.ErrorIs(t, err, membership.ErrNotMember)

	_, err = f.svc.ListAssignments(ctx, f.employee, f.org, uuid.NewString())
	assert.ErrorIs(t, err, project.ErrNotFound)
}
