package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/incuverse/presence/internal/catalog"
	"github.com/incuverse/presence/internal/storage/postgres"
	"github.com/incuverse/presence/internal/testutil"
)

func TestSpaceRepository_RoundTrip(t *testing.T) {
	pool := testutil.NewPool(t)
	repo := postgres.NewSpaceRepository(pool)
	ctx := context.Background()

	id := uniqueID("space")
	err := repo.Create(ctx, catalog.Space{ID: id, Name: "Main Lobby", Width: 40, Height: 30})
	require.NoError(t, err)

	space, err := repo.Space(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Main Lobby", space.Name)
	assert.Equal(t, 40, space.Width)
	assert.Equal(t, 30, space.Height)
}

func TestSpaceRepository_NotFound(t *testing.T) {
	pool := testutil.NewPool(t)
	repo := postgres.NewSpaceRepository(pool)

	_, err := repo.Space(context.Background(), "atlantis")
	assert.ErrorIs(t, err, catalog.ErrSpaceNotFound)
}

func TestSpaceRepository_Create_Invalid(t *testing.T) {
	pool := testutil.NewPool(t)
	repo := postgres.NewSpaceRepository(pool)

	err := repo.Create(context.Background(), catalog.Space{ID: "flat", Name: "Flat", Width: 10, Height: 0})
	assert.Error(t, err)
}
