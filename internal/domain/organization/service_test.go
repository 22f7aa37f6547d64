package organization_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timetrack/internal/domain/auth"
	"timetrack/internal/domain/membership"
	"timetrack/internal/domain/organization"
	"timetrack/internal/testsupport/memdb"
)

func ptr[T any](v T) *T { return &v }

type fixture struct {
	db       *memdb.DB
	svc      *organization.Service
	org      string
	admin    string
	employee string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := memdb.New()
	f := fixture{db: db, svc: organization.NewService(db.Organizations())}
	f.admin = db.AddUser("admin@example.com", "Ada")
	f.employee = db.AddUser("employee@example.com", "Eve")
	summary, err := f.svc.Create(context.Background(), f.admin, "  Acme  ")
	require.NoError(t, err)
	f.org = summary.ID
	db.AddMember(f.org, f.employee, membership.RoleEmployee)
	return f
}

func TestCreateMakesCreatorAdmin(t *testing.T) {
	f := newFixture(t)

	m, ok := f.db.Membership(f.org, f.admin)
	require.True(t, ok)
	assert.Equal(t, membership.RoleAdmin, m.Role)
	assert.True(t, m.IsActive)

	mine, err := f.svc.ListMine(context.Background(), f.admin)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "Acme", mine[0].Name)
	assert.Equal(t, membership.RoleAdmin, mine[0].Role)
}

func TestCreateValidatesName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, f.admin, "   ")
	assert.ErrorIs(t, err, organization.ErrNameRequired)

	_, err = f.svc.Create(ctx, f.admin, strings.Repeat("x", organization.MaxNameLength+1))
	assert.ErrorIs(t, err, organization.ErrNameTooLong)
}

func TestGetRequiresMembership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	outsider := f.db.AddUser("out@example.com", "Oscar")

	got, err := f.svc.Get(ctx, f.employee, f.org)
	require.NoError(t, err)
	assert.Equal(t, membership.RoleEmployee, got.Role)

	_, err = f.svc.Get(ctx, outsider, f.org)
	assert.ErrorIs(t, err, membership.ErrNotMember)
}

func TestUpdateIsAdminOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Update(ctx, f.employee, f.org, organization.Update{Name: ptr("Nope")})
	assert.ErrorIs(t, err, membership.ErrRoleRequired)

	got, err := f.svc.Update(ctx, f.admin, f.org, organization.Update{Name: ptr(" Acme Ltd ")})
	require.NoError(t, err)
	assert.Equal(t, "Acme Ltd", got.Name)
	assert.True(t, got.IsActive)
}

func TestAddMemberByEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	newcomer := f.db.AddUser("New@Example.com", "Nia")

	m, err := f.svc.AddMember(ctx, f.admin, f.org, "new@example.com", membership.RoleManager)
	require.NoError(t, err)
	assert.Equal(t, newcomer, m.UserID)
	assert.Equal(t, membership.RoleManager, m.Role)

	_, err = f.svc.AddMember(ctx, f.admin, f.org, "ghost@example.com", membership.RoleEmployee)
	assert.ErrorIs(t, err, organization.ErrUserNotFound)

	_, err = f.svc.AddMember(ctx, f.admin, f.org, "new@example.com", membership.Role(42))
	assert.ErrorIs(t, err, organization.ErrInvalidRole)

	_, err = f.svc.AddMember(ctx, f.employee, f.org, "new@example.com", membership.RoleEmployee)
	assert.ErrorIs(t, err, membership.ErrRoleRequired)
}

func TestAddMemberReactivates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.db.DeactivateMember(f.org, f.employee)

	m, err := f.svc.AddMember(ctx, f.admin, f.org, "employee@example.com", membership.RoleManager)
	require.NoError(t, err)
	assert.True(t, m.IsActive)
	assert.Equal(t, membership.RoleManager, m.Role)
}

func TestLastAdminCannotStepDown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.UpdateMember(ctx, f.admin, f.org, f.admin, membership.MemberUpdate{Role: ptr(membership.RoleEmployee)})
	assert.ErrorIs(t, err, organization.ErrLastAdmin)

	_, err = f.svc.UpdateMember(ctx, f.admin, f.org, f.admin, membership.MemberUpdate{IsActive: ptr(false)})
	assert.ErrorIs(t, err, organization.ErrLastAdmin)

	_, err = f.svc.UpdateMember(ctx, f.admin, f.org, f.employee, membership.MemberUpdate{Role: ptr(membership.RoleAdmin)})
	require.NoError(t, err)

	m, err := f.svc.UpdateMember(ctx, f.admin, f.org, f.admin, membership.MemberUpdate{Role: ptr(membership.RoleManager)})
	require.NoError(t, err)
	assert.Equal(t, membership.RoleManager, m.Role)
}

func TestUpdateMissingMember(t *testing.T) {
	f := newFixture(t)
	outsider := f.db.AddUser("out@example.com", "Oscar")

	_, err := f.svc.UpdateMember(context.Background(), f.admin, f.org, outsider, membership.MemberUpdate{IsActive: ptr(false)})
	assert.ErrorIs(t, err, organization.ErrMemberMissing)
}

func TestListMembersForApprovers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	members, err := f.svc.ListMembers(ctx, f.admin, f.org)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "Ada", members[0].DisplayName)
	assert.Equal(t, "employee@example.com", members[1].Email)

	_, err = f.svc.ListMembers(ctx, f.employee, f.org)
	assert.ErrorIs(t, err, membership.ErrRoleRequired)
}

func TestListMineSkipsDeactivatedOrganizations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other, err := f.svc.Create(ctx, f.admin, "Beta")
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, f.admin, f.org, organization.Update{IsActive: ptr(false)})
	require.NoError(t, err)

	mine, err := f.svc.ListMine(ctx, f.admin)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, other.ID, mine[0].ID)

	mine, err = f.svc.ListMine(ctx, f.employee)
	require.NoError(t, err)
	assert.Empty(t, mine)
}

func TestConcurrentDemotionsKeepOneAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.UpdateMember(ctx, f.admin, f.org, f.employee, membership.MemberUpdate{Role: ptr(membership.RoleAdmin)})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, target := range []string{f.admin, f.employee} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.svc.UpdateMember(ctx, target, f.org, target, membership.MemberUpdate{Role: ptr(membership.RoleEmployee)})
		}()
	}
	wg.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, organization.ErrLastAdmin)
			failed++
		}
	}
	assert.Equal(t, 1, failed)

	admins := 0
	for _, id := range []string{f.admin, f.employee} {
		m, ok := f.db.Membership(f.org, id)
		require.True(t, ok)
		if m.IsActive && m.Role == membership.RoleAdmin {
			admins++
		}
	}
	assert.Equal(t, 1, admins)
}

func TestCreateUserOpensAccountAndMembership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	m, err := f.svc.CreateUser(ctx, f.admin, f.org, organization.NewUser{
		Email:       " Nia@Example.com ",
		Password:    "s3cret-pass",
		DisplayName: " Nia ",
		Role:        membership.RoleManager,
	})
	require.NoError(t, err)
	assert.Equal(t, "nia@example.com", m.Email)
	assert.Equal(t, "Nia", m.DisplayName)
	assert.Equal(t, membership.RoleManager, m.Role)
	assert.True(t, m.IsActive)

	u, ok := f.db.UserByEmail("nia@example.com")
	require.True(t, ok)
	assert.Equal(t, m.UserID, u.ID)
	assert.NoError(t, auth.CheckPassword(u.PasswordHash, "s3cret-pass"))

	stored, ok := f.db.Membership(f.org, u.ID)
	require.True(t, ok)
	assert.Equal(t, membership.RoleManager, stored.Role)
}

func TestCreateUserReusesExistingAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.db.DeactivateMember(f.org, f.employee)

	m, err := f.svc.CreateUser(ctx, f.admin, f.org, organization.NewUser{
		Email:       "EMPLOYEE@example.com",
		Password:    "another-pass",
		DisplayName: "Someone Else",
		Role:        membership.RoleManager,
	})
	require.NoError(t, err)
	assert.Equal(t, f.employee, m.UserID)
	assert.Equal(t, "Eve", m.DisplayName)
	assert.True(t, m.IsActive)
	assert.Equal(t, membership.RoleManager, m.Role)

	u, ok := f.db.UserByEmail("employee@example.com")
	require.True(t, ok)
	assert.Empty(t, u.PasswordHash, "existing password is left alone")

	outsider := f.db.AddUser("out@example.com", "Oscar")
	m, err = f.svc.CreateUser(ctx, f.admin, f.org, organization.NewUser{
		Email:       "out@example.com",
		Password:    "another-pass",
		DisplayName: "Oscar",
		Role:        membership.RoleEmployee,
	})
	require.NoError(t, err)
	assert.Equal(t, outsider, m.UserID)
	_, ok = f.db.Membership(f.org, outsider)
	assert.True(t, ok)
}

func TestCreateUserGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	valid := organization.NewUser{Email: "x@example.com", Password: "long-enough", DisplayName: "X", Role: membership.RoleEmployee}

	_, err := f.svc.CreateUser(ctx, f.employee, f.org, valid)
	assert.ErrorIs(t, err, membership.ErrRoleRequired)

	bad := valid
	bad.Email = "nope"
	_, err = f.svc.CreateUser(ctx, f.admin, f.org, bad)
	assert.ErrorIs(t, err, auth.ErrInvalidEmail)

	bad = valid
	bad.Password = "short"
	_, err = f.svc.CreateUser(ctx, f.admin, f.org, bad)
	assert.ErrorIs(t, err, auth.ErrWeakPassword)

	bad = valid
	bad.DisplayName = " "
	_, err = f.svc.CreateUser(ctx, f.admin, f.org, bad)
	assert.ErrorIs(t, err, auth.ErrDisplayName)

	bad = valid
	bad.Role = membership.Role(42)
	_, err = f.svc.CreateUser(ctx, f.admin, f.org, bad)
	assert.ErrorIs(t, err, organization.ErrInvalidRole)

	_, ok := f.db.UserByEmail("x@example.com")
	assert.False(t, ok)
}
