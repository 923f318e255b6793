package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"codeshare/internal/apperr"
	"codeshare/internal/auth"
	"codeshare/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	f := newFixture(t, nil, DefaultShareOptions())
	ctx := context.Background()

	res, err := f.identity.Register(ctx, " alice ", "Alice@Example.COM", "password123")
	require.NoError(t, err)
	require.NotEmpty(t, res.Token)
	require.Equal(t, "alice", res.User.Username)
	require.Equal(t, "alice@example.com", res.User.Email)
	require.Equal(t, models.RoleUser, res.User.Role)
	require.NotEqual(t, "password123", res.User.PasswordHash)

	user, err := f.identity.Resolve(ctx, res.Token)
	require.NoError(t, err)
	require.Equal(t, res.User.ID, user.ID)
}

func TestRegister_Validation(t *testing.T) {
	f := newFixture(t, nil, DefaultShareOptions())
	ctx := context.Background()

	cases := []struct {
		name, username, email, password string
	}{
		{"empty username", "", "a@example.com", "password123"},
		{"short username", "ab", "a@example.com", "password123"},
		{"symbols in username", "al!ce", "a@example.com", "password123"},
		{"empty email", "alice", "", "password123"},
		{"malformed email", "alice", "not-an-email", "password123"},
		{"short password", "alice", "a@example.com", "short"},
		{"password over 72 bytes", "alice", "a@example.com", strings.Repeat("p", 73)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.identity.Register(ctx, tc.username, tc.email, tc.password)
			require.ErrorIs(t, err, apperr.ErrInvalidInput)
			require.NotEqual(t, "internal server error", apperr.Message(err))
		})
	}
}

func TestRegister_DuplicateEmailConflict(t *testing.T) {
	f := newFixture(t, nil, DefaultShareOptions())
	ctx := context.Background()

	first, err := f.identity.Register(ctx, "alice", "alice@example.com", "password123")
	require.NoError(t, err)

	_, err = f.identity.Register(ctx, "alice2", "ALICE@example.com", "otherpassword")
	require.ErrorIs(t, err, apperr.ErrConflict)

	_, err = f.identity.Register(ctx, "alice", "new@example.com", "otherpassword")
	require.ErrorIs(t, err, apperr.ErrConflict)

	again, err := f.identity.Login(ctx, "alice@example.com", "password123")
	require.NoError(t, err)
	require.Equal(t, first.User.ID, again.User.ID, "first user is left intact")
}

func TestLogin(t *testing.T) {
	f := newFixture(t, nil, DefaultShareOptions())
	ctx := context.Background()

	_, err := f.identity.Register(ctx, "alice", "alice@example.com", "password123")
	require.NoError(t, err)

	res, err := f.identity.Login(ctx, "Alice@example.com", "password123")
	require.NoError(t, err)
	require.NotEmpty(t, res.Token)

	_, err = f.identity.Login(ctx, "alice@example.com", "wrong-password")
	require.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = f.identity.Login(ctx, "nobody@example.com", "password123")
	require.ErrorIs(t, err, apperr.ErrUnauthorized)
	require.Equal(t, "invalid email or password", apperr.Message(err), "unknown email looks like a bad password")
}

func TestResolve_Rejects(t *testing.T) {
	f := newFixture(t, nil, DefaultShareOptions())
	ctx := context.Background()

	_, err := f.identity.Resolve(ctx, "garbage")
	require.ErrorIs(t, err, apperr.ErrUnauthorized)

	ghost := &models.User{ID: 999, Username: "ghost", Role: models.RoleAdmin}
	token, err := auth.GenerateJWT(ghost, testSecret, time.Hour)
	require.NoError(t, err)
	_, err = f.identity.Resolve(ctx, token)
	require.ErrorIs(t, err, apperr.ErrUnauthorized, "tokens of vanished users are rejected")

	alice := f.register(t, "alice")
	expired, err := auth.GenerateJWT(alice, testSecret, -time.Minute)
	require.NoError(t, err)
	_, err = f.identity.Resolve(ctx, expired)
	require.ErrorIs(t, err, apperr.ErrUnauthorized)

	forged, err := auth.GenerateJWT(alice, "another_secret_that_is_long_enough_0000", time.Hour)
	require.NoError(t, err)
	_, err = f.identity.Resolve(ctx, forged)
	require.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestResolve_SeesRoleChanges(t *testing.T) {
	f := newFixture(t, nil, DefaultShareOptions())
	ctx := context.Background()

	res, err := f.identity.Register(ctx, "alice", "alice@example.com", "password123")
	require.NoError(t, err)

	_, err = f.identity.Promote(ctx, "alice")
	require.NoError(t, err)

	user, err := f.identity.Resolve(ctx, res.Token)
	require.NoError(t, err)
	require.True(t, user.IsAdmin(), "token issued before promotion resolves to the current role")
}

type revokeAll struct{ err error }

func (r revokeAll) IsRevoked(context.Context, *auth.AppClaims) (bool, error) {
	return r.err == nil, r.err
}

func TestResolve_TokenRevoker(t *testing.T) {
	f := newFixture(t, nil, DefaultShareOptions())
	ctx := context.Background()
	res, err := f.identity.Register(ctx, "alice", "alice@example.com", "password123")
	require.NoError(t, err)

	revoking := NewIdentityService(f.db, testSecret, time.Hour, logrus.New(), WithTokenRevoker(revokeAll{}))
	_, err = revoking.Resolve(ctx, res.Token)
	require.ErrorIs(t, err, apperr.ErrUnauthorized)

	broken := NewIdentityService(f.db, testSecret, time.Hour, logrus.New(), WithTokenRevoker(revokeAll{err: errors.New("down")}))
	_, err = broken.Resolve(ctx, res.Token)
	require.Equal(t, apperr.Internal, apperr.KindOf(err))
}

func TestPromote(t *testing.T) {
	f := newFixture(t, nil, DefaultShareOptions())
	ctx := context.Background()
	f.register(t, "alice")

	u, err := f.identity.Promote(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, models.RoleAdmin, u.Role)

	u, err = f.identity.Promote(ctx, "alice")
	require.NoError(t, err, "promoting an admin is a no-op")
	require.True(t, u.IsAdmin())

	_, err = f.identity.Promote(ctx, "nobody")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestListUsers(t *testing.T) {
	f := newFixture(t, nil, DefaultShareOptions())
	ctx := context.Background()
	alice := f.register(t, "alice")
	admin := f.admin(t, "root")

	_, err := f.identity.ListUsers(ctx, alice)
	require.ErrorIs(t, err, apperr.ErrForbidden)

	users, err := f.identity.ListUsers(ctx, admin)
	require.NoError(t, err)
	require.Len(t, users, 2)
}
