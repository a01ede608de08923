package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"healthtrack-go/internal/model"
	"healthtrack-go/internal/repository"
	"healthtrack-go/internal/testutil"
	"healthtrack-go/pkg/token"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type memoryBlacklist struct {
	mu     sync.Mutex
	tokens map[string]time.Duration
}

func (m *memoryBlacklist) Blacklist(ctx context.Context, tok string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tokens == nil {
		m.tokens = map[string]time.Duration{}
	}
	m.tokens[tok] = ttl
	return nil
}

func (m *memoryBlacklist) IsBlacklisted(ctx context.Context, tok string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.tokens[tok]
	return ok, nil
}

func newUserService(t *testing.T, admins ...string) (UserService, *memoryBlacklist) {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	blacklist := &memoryBlacklist{}
	svc := NewUserService(
		repository.NewUserRepository(db),
		repository.NewProfileRepository(db),
		blacklist,
		token.NewJWTManager("test-secret", 1, 1),
		admins,
	)
	return svc, blacklist
}

func TestUserService_RegisterAndLogin(t *testing.T) {
	svc, _ := newUserService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, " alice ", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.NotEqual(t, "s3cret", user.Password)

	_, err = svc.Register(ctx, "alice", "other")
	assert.ErrorIs(t, err, ErrUsernameTaken)

	_, _, err = svc.Login(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = svc.Login(ctx, "nobody", "s3cret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	access, refresh, err := svc.Login(ctx, "alice", "s3cret")
	require.NoError(t, err)

	current, claims, err := svc.Authenticate(ctx, access)
	require.NoError(t, err)
	assert.Equal(t, user.ID, current.User.ID)
	assert.Equal(t, model.RolePatient, current.Profile.Role)
	assert.Equal(t, "alice", current.Profile.DisplayName)
	assert.Equal(t, model.Viewer{UserID: user.ID, Role: model.RolePatient}, current.Viewer())
	assert.Equal(t, token.TypeAccess, claims.Type)

	// refresh token 不能当作 access token 使用
	_, _, err = svc.Authenticate(ctx, refresh)
	assert.Error(t, err)
}

func TestUserService_RegisterRejectsBlankUsername(t *testing.T) {
	svc, _ := newUserService(t)

	for _, name := range []string{"", "   ", "\t\n"} {
		_, err := svc.Register(context.Background(), name, "s3cret")
		assert.ErrorIs(t, err, ErrInvalidUsername, "username %q", name)
	}
}

func TestUserService_RegisterIsAtomic(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	users := repository.NewUserRepository(db)
	svc := NewUserService(users, repository.NewProfileRepository(db), nil, token.NewJWTManager("test-secret", 1, 1), nil)
	ctx := context.Background()
	require.NoError(t, db.Migrator().DropTable(&model.Profile{}))

	_, err := svc.Register(ctx, "erin", "pw")
	require.Error(t, err)

	_, err = users.FindByUsername(ctx, "erin")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestUserService_AdminBootstrap(t *testing.T) {
	svc, _ := newUserService(t, "root")
	ctx := context.Background()

	_, err := svc.Register(ctx, "root", "pw")
	require.NoError(t, err)
	access, _, err := svc.Login(ctx, "root", "pw")
	require.NoError(t, err)

	current, claims, err := svc.Authenticate(ctx, access)
	require.NoError(t, err)
	assert.True(t, current.Viewer().IsAdmin())
	assert.Equal(t, model.RoleAdmin, claims.Role)
}

func TestUserService_LogoutRevokesToken(t *testing.T) {
	svc, blacklist := newUserService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "bob", "pw")
	require.NoError(t, err)
	access, _, err := svc.Login(ctx, "bob", "pw")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, access))
	assert.Contains(t, blacklist.tokens, access)
	assert.Greater(t, blacklist.tokens[access], time.Duration(0))

	_, _, err = svc.Authenticate(ctx, access)
	assert.ErrorIs(t, err, ErrTokenRevoked)
}

func TestUserService_RefreshAndDisplayName(t *testing.T) {
	svc, _ := newUserService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "carol", "pw")
	require.NoError(t, err)
	access, refresh, err := svc.Login(ctx, "carol", "pw")
	require.NoError(t, err)

	newAccess, newRefresh, err := svc.RefreshToken(ctx, refresh)
	require.NoError(t, err)
	assert.NotEmpty(t, newAccess)
	assert.NotEmpty(t, newRefresh)

	_, _, err = svc.RefreshToken(ctx, access)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
	_, _, err = svc.RefreshToken(ctx, "garbage")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	viewer := model.Viewer{UserID: user.ID, Role: model.RolePatient}
	profile, err := svc.UpdateDisplayName(ctx, viewer, "  Carol C. ")
	require.NoError(t, err)
	assert.Equal(t, "Carol C.", profile.DisplayName)
}
