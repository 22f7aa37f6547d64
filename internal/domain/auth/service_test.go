package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timetrack/internal/platform/revocation"
)

type memoryUsers struct {
	mu    sync.Mutex
	users map[string]Credentials
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{users: map[string]Credentials{}}
}

func (m *memoryUsers) CreateUser(_ context.Context, u User, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.Email]; ok {
		return ErrEmailTaken
	}
	m.users[u.Email] = Credentials{User: u, PasswordHash: passwordHash}
	return nil
}

func (m *memoryUsers) FindCredentials(_ context.Context, email string) (Credentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.users[email]
	if !ok {
		return Credentials{}, ErrUserNotFound
	}
	return c, nil
}

func (m *memoryUsers) UpdateLastLogin(context.Context, string, time.Time) error {
	return nil
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemoryUsers(), revocation.NewMemory(), "secret", time.Hour)

	u, err := svc.Register(ctx, "  Eve@Example.com ", "correct horse", " Eve ")
	require.NoError(t, err)
	assert.Equal(t, "eve@example.com", u.Email)
	assert.Equal(t, "Eve", u.DisplayName)

	_, err = svc.Register(ctx, "EVE@example.com", "another pass", "Eve Two")
	assert.ErrorIs(t, err, ErrEmailTaken)

	session, err := svc.Login(ctx, "eve@EXAMPLE.com", "correct horse")
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, u.ID, session.User.ID)

	claims, err := ParseToken("secret", session.Token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)
	assert.NotEmpty(t, claims.ID)

	_, err = svc.Login(ctx, "eve@example.com", "wrong password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, "nobody@example.com", "correct horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegisterValidation(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemoryUsers(), revocation.NewMemory(), "secret", time.Hour)

	_, err := svc.Register(ctx, "not-an-email", "longenough", "Eve")
	assert.ErrorIs(t, err, ErrInvalidEmail)
	_, err = svc.Register(ctx, "eve@example.com", "short", "Eve")
	assert.ErrorIs(t, err, ErrWeakPassword)
	_, err = svc.Register(ctx, "eve@example.com", "longenough", "   ")
	assert.ErrorIs(t, err, ErrDisplayName)
}

func TestLogoutRevokesToken(t *testing.T) {
	ctx := context.Background()
	revoked := revocation.NewMemory()
	svc := NewService(newMemoryUsers(), revoked, "secret", time.Hour)
	_, err := svc.Register(ctx, "eve@example.com", "longenough", "Eve")
	require.NoError(t, err)
	session, err := svc.Login(ctx, "eve@example.com", "longenough")
	require.NoError(t, err)

	claims, err := ParseToken("secret", session.Token)
	require.NoError(t, err)
	require.NoError(t, svc.Logout(ctx, claims.User()))

	isRevoked, err := revoked.IsRevoked(ctx, claims.ID)
	require.NoError(t, err)
	assert.True(t, isRevoked)
}

func TestParseTokenRejectsOtherSecret(t *testing.T) {
	token, _, err := GenerateToken("secret", Claims{UserID: "u1"}, time.Hour)
	require.NoError(t, err)
	_, err = ParseToken("other", token)
	assert.Error(t, err)

	expired, _, err := GenerateToken("secret", Claims{UserID: "u1"}, -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken("secret", expired)
	assert.Error(t, err)
}
