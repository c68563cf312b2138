package postgres_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/incuverse/presence/internal/auth"
	"github.com/incuverse/presence/internal/storage/postgres"
	"github.com/incuverse/presence/internal/testutil"
)

func uniqueID(prefix string) string {
	return fmt.Sprintf("%s_%d", prefix, time.Now().UnixNano())
}

func TestUserRepository_ResolveUser(t *testing.T) {
	pool := testutil.NewPool(t)
	repo := postgres.NewUserRepository(pool)
	ctx := context.Background()

	id := uniqueID("user")
	_, err := repo.Create(ctx, id, uniqueID("ada"), postgres.UserTypeFounder)
	require.NoError(t, err)

	identity, err := repo.ResolveUser(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, identity.ID)
	assert.Equal(t, postgres.UserTypeFounder, identity.UserType)
}

func TestUserRepository_ResolveUser_NotFound(t *testing.T) {
	pool := testutil.NewPool(t)
	repo := postgres.NewUserRepository(pool)

	_, err := repo.ResolveUser(context.Background(), "ghost")
	assert.ErrorIs(t, err, auth.ErrUserNotFound)
}

func TestUserRepository_TouchLastActive(t *testing.T) {
	pool := testutil.NewPool(t)
	repo := postgres.NewUserRepository(pool)
	ctx := context.Background()

	id := uniqueID("user")
	created, err := repo.Create(ctx, id, uniqueID("bob"), postgres.UserTypeMentor)
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, repo.TouchLastActive(ctx, id))

	after, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.True(t, after.LastActive.After(created.LastActive),
		"last_active should advance: %v -> %v", created.LastActive, after.LastActive)
}

func TestUserRepository_TouchLastActive_NotFound(t *testing.T) {
	pool := testutil.NewPool(t)
	repo := postgres.NewUserRepository(pool)

	err := repo.TouchLastActive(context.Background(), "ghost")
	assert.ErrorIs(t, err, auth.ErrUserNotFound)
}

func TestUserRepository_Create_InvalidType(t *testing.T) {
	pool := testutil.NewPool(t)
	repo := postgres.NewUserRepository(pool)

	_, err := repo.Create(context.Background(), uniqueID("user"), uniqueID("eve"), "WIZARD")
	assert.ErrorIs(t, err, postgres.ErrInvalidUserType)
}

func TestValidUserType(t *testing.T) {
	assert.True(t, postgres.ValidUserType(postgres.UserTypeFounder))
	assert.True(t, postgres.ValidUserType(postgres.UserTypeMentor))
	assert.True(t, postgres.ValidUserType(postgres.UserTypeInvestor))
	assert.True(t, postgres.ValidUserType(postgres.UserTypeAdmin))
	assert.False(t, postgres.ValidUserType(""))
	assert.False(t, postgres.ValidUserType("founder"))
}
