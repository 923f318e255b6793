package database

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"codeshare/internal/models"
	"codeshare/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func createTestUser(t *testing.T) *models.User {
	name := "u" + uuid.NewString()[:8]
	user, err := testStore.CreateUser(context.Background(), repository.CreateUserParams{
		Username:     name,
		Email:        fmt.Sprintf("%s@Example.com", name),
		PasswordHash: "hash",
		Role:         models.RoleUser,
	})
	require.NoError(t, err)
	require.NotNil(t, user)
	return user
}

func TestCreateUser(t *testing.T) {
	user := createTestUser(t)

	require.NotZero(t, user.ID)
	require.Equal(t, models.RoleUser, user.Role)
	require.Equal(t, user.Username+"@example.com", user.Email, "email is stored lower-cased")
	require.NotZero(t, user.CreatedAt)
}

func TestCreateUser_Duplicates(t *testing.T) {
	ctx := context.Background()
	user := createTestUser(t)

	_, err := testStore.CreateUser(ctx, repository.CreateUserParams{
		Username: user.Username, Email: "fresh-" + user.Email, PasswordHash: "h", Role: models.RoleUser,
	})
	require.ErrorIs(t, err, repository.ErrDuplicateUsername)
}

func TestCreateUser_DuplicateEmailIgnoresCase(t *testing.T) {
	ctx := context.Background()
	user := createTestUser(t)

	_, err := testStore.CreateUser(ctx, repository.CreateUserParams{
		Username: "z" + user.Username[1:], Email: strings.ToUpper(user.Email), PasswordHash: "h", Role: models.RoleUser,
	})
	require.ErrorIs(t, err, repository.ErrDuplicateEmail)

	first, err := testStore.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, user.Username, first.Username)
}

func TestGetUsers(t *testing.T) {
	ctx := context.Background()
	user := createTestUser(t)

	byName, err := testStore.GetUserByUsername(ctx, user.Username)
	require.NoError(t, err)
	require.Equal(t, user.ID, byName.ID)

	byEmail, err := testStore.GetUserByEmail(ctx, user.Username+"@EXAMPLE.COM")
	require.NoError(t, err)
	require.Equal(t, user.ID, byEmail.ID)
	require.NotEmpty(t, byEmail.PasswordHash)

	missing, err := testStore.GetUserByUsername(ctx, "nonexistent")
	require.NoError(t, err)
	require.Nil(t, missing)

	missing, err = testStore.GetUserByID(ctx, -1)
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestPromoteUser(t *testing.T) {
	ctx := context.Background()
	user := createTestUser(t)

	promoted, changed, err := testStore.PromoteUser(ctx, user.Username)
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, models.RoleAdmin, promoted.Role)

	got, err := testStore.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, models.RoleAdmin, got.Role)

	_, changed, err = testStore.PromoteUser(ctx, user.Username)
	require.NoError(t, err)
	require.False(t, changed)

	missing, _, err := testStore.PromoteUser(ctx, "nobody-"+uuid.NewString()[:8])
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestPromoteUser_ConcurrentChangesOnce(t *testing.T) {
	ctx := context.Background()
	user := createTestUser(t)

	const n = 20
	var changedCount atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, changed, err := testStore.PromoteUser(ctx, user.Username)
			if err == nil && changed {
				changedCount.Add(1)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), changedCount.Load())
}

func TestSetUserRoleAndList(t *testing.T) {
	ctx := context.Background()
	user := createTestUser(t)

	ok, err := testStore.SetUserRole(ctx, user.ID, models.RoleAdmin)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = testStore.SetUserRole(ctx, -1, models.RoleAdmin)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = testStore.SetUserRole(ctx, user.ID, "root")
	require.ErrorIs(t, err, repository.ErrInvalidRole)

	users, err := testStore.ListUsers(ctx)
	require.NoError(t, err)
	count, err := testStore.CountUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, int(count))
}
