package auth

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"vyaparcli/internal/audit"
	apperrors "vyaparcli/internal/errors"
	"vyaparcli/internal/store"
)

type authFixture struct {
	service *Service
	users   *BoltUserStore
	trail   *audit.Trail
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	users := NewBoltUserStore(db)
	trail := audit.NewTrail(db, logger)
	// MinCost keeps the bcrypt work factor cheap for tests.
	service := NewService(users, NewSessionSlot(), trail, logger, 6, bcrypt.MinCost)
	return &authFixture{service: service, users: users, trail: trail}
}

func (f *authFixture) createUser(t *testing.T, username, password, roleName string, roleID uint64) uint64 {
	t.Helper()
	id, err := f.service.CreateUser(context.Background(), username, password, "Test User", roleID, roleName, "", "", 0)
	require.NoError(t, err)
	return id
}

func TestLoginSuccess(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	id := f.createUser(t, "ramesh", "secret123", "Manager", 2)

	session, err := f.service.Login(ctx, "ramesh", "secret123")
	require.NoError(t, err)

	assert.Equal(t, id, session.UserID)
	assert.Equal(t, "ramesh", session.Username)
	assert.Equal(t, "Manager", session.RoleName)
	assert.False(t, session.LoginTime.IsZero())
	assert.True(t, f.service.Session().IsAuthenticated())

	// Last login is stamped.
	user, err := f.users.GetByID(id)
	require.NoError(t, err)
	require.NotNil(t, user.LastLogin)

	// Success is audited.
	entries, err := f.trail.List(ctx, audit.Filter{Action: audit.ActionLoginSuccess})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLoginUnknownUserGetsGenericError(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.service.Login(ctx, "nobody", "whatever")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	// The internal reason lands in the audit trail, not the error.
	entries, err := f.trail.List(ctx, audit.Filter{Action: audit.ActionLoginFailed})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "user_not_found", entries[0].NewValues["reason"])
}

func TestLoginBadPasswordGetsSameGenericError(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.createUser(t, "ramesh", "secret123", "Manager", 2)

	_, wrongPwdErr := f.service.Login(ctx, "ramesh", "wrong")
	_, unknownUserErr := f.service.Login(ctx, "nobody", "wrong")

	// Same message for both: no username enumeration through the login form.
	assert.ErrorIs(t, wrongPwdErr, apperrors.ErrInvalidCredentials)
	assert.Equal(t, unknownUserErr.Error(), wrongPwdErr.Error())
	assert.False(t, f.service.Session().IsAuthenticated())
}

func TestLoginDisabledAccountDistinctMessage(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	id := f.createUser(t, "ramesh", "secret123", "Manager", 2)

	_, err := f.service.ToggleUserStatus(ctx, id, 0)
	require.NoError(t, err)

	_, err = f.service.Login(ctx, "ramesh", "secret123")
	assert.ErrorIs(t, err, apperrors.ErrAccountDisabled)
	assert.NotErrorIs(t, err, apperrors.ErrInvalidCredentials)
}

func TestSecondLoginOverwritesSlot(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.createUser(t, "ramesh", "secret123", "Manager", 2)
	sureshID := f.createUser(t, "suresh", "secret456", "Sales", 4)

	_, err := f.service.Login(ctx, "ramesh", "secret123")
	require.NoError(t, err)
	_, err = f.service.Login(ctx, "suresh", "secret456")
	require.NoError(t, err)

	session := f.service.Session().Get()
	require.NotNil(t, session)
	assert.Equal(t, sureshID, session.UserID)
}

func TestLogoutClearsAndAudits(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.createUser(t, "ramesh", "secret123", "Manager", 2)

	_, err := f.service.Login(ctx, "ramesh", "secret123")
	require.NoError(t, err)

	f.service.Logout(ctx)
	assert.False(t, f.service.Session().IsAuthenticated())

	entries, err := f.trail.List(ctx, audit.Filter{Action: audit.ActionLogout})
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	// Logging out while signed out is a no-op, not an error.
	f.service.Logout(ctx)
}

func TestCreateUserRejectsDuplicates(t *testing.T) {
	f := newAuthFixture(t)
	f.createUser(t, "ramesh", "secret123", "Manager", 2)

	_, err := f.service.CreateUser(context.Background(), "Ramesh", "other456", "Duplicate", 2, "Manager", "", "", 0)
	assert.ErrorIs(t, err, apperrors.ErrUserExists)
}

func TestCreateUserEnforcesPasswordPolicy(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.service.CreateUser(context.Background(), "ramesh", "short", "Test", 2, "Manager", "", "", 0)
	assert.ErrorIs(t, err, apperrors.ErrPasswordPolicy)
}

func TestChangePassword(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	id := f.createUser(t, "ramesh", "secret123", "Manager", 2)

	t.Run("wrong old password", func(t *testing.T) {
		err := f.service.ChangePassword(ctx, id, "wrong", "newsecret")
		assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	})

	t.Run("policy violation", func(t *testing.T) {
		err := f.service.ChangePassword(ctx, id, "secret123", "tiny")
		assert.ErrorIs(t, err, apperrors.ErrPasswordPolicy)
	})

	t.Run("success", func(t *testing.T) {
		require.NoError(t, f.service.ChangePassword(ctx, id, "secret123", "newsecret"))

		_, err := f.service.Login(ctx, "ramesh", "newsecret")
		assert.NoError(t, err)
		_, err = f.service.Login(ctx, "ramesh", "secret123")
		assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	})
}

func TestResetPassword(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	id := f.createUser(t, "ramesh", "secret123", "Manager", 2)

	require.NoError(t, f.service.ResetPassword(ctx, id, "resetpass", 1))

	_, err := f.service.Login(ctx, "ramesh", "resetpass")
	assert.NoError(t, err)

	assert.ErrorIs(t, f.service.ResetPassword(ctx, 999, "whatever6", 1), apperrors.ErrUserNotFound)
}

func TestPasswordHashingIsSaltedAndNonReversible(t *testing.T) {
	h1, err := HashPassword("secret123", bcrypt.MinCost)
	require.NoError(t, err)
	h2, err := HashPassword("secret123", bcrypt.MinCost)
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2, "salted hashes must differ")
	assert.NotContains(t, h1, "secret123")
	assert.True(t, VerifyPassword("secret123", h1))
	assert.True(t, VerifyPassword("secret123", h2))
	assert.False(t, VerifyPassword("secret124", h1))
}
