package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCatalog = `
spaces:
  - id: lobby
    name: Main Lobby
    width: 40
    height: 30
  - id: garden
    name: Mentor Garden
    width: 20
    height: 20
`

func TestLoadBytes(t *testing.T) {
	cat, err := LoadBytes([]byte(sampleCatalog))
	require.NoError(t, err)
	assert.Equal(t, 2, cat.Len())

	space, err := cat.Space(context.Background(), "lobby")
	require.NoError(t, err)
	assert.Equal(t, "Main Lobby", space.Name)
	assert.Equal(t, 40, space.Width)
	assert.Equal(t, 30, space.Height)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spaces.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleCatalog), 0o600))

	cat, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cat.Len())
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadBytes_Empty(t *testing.T) {
	_, err := LoadBytes([]byte("spaces: []"))
	assert.Error(t, err)
}

func TestLoadBytes_DuplicateID(t *testing.T) {
	_, err := LoadBytes([]byte(`
spaces:
  - {id: lobby, name: A, width: 10, height: 10}
  - {id: lobby, name: B, width: 10, height: 10}
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate space id")
}

func TestLoadBytes_InvalidDimensions(t *testing.T) {
	_, err := LoadBytes([]byte(`
spaces:
  - {id: void, name: Void, width: 0, height: 10}
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "width")
}

func TestSpace_NotFound(t *testing.T) {
	cat, err := LoadBytes([]byte(sampleCatalog))
	require.NoError(t, err)

	_, err = cat.Space(context.Background(), "attic")
	assert.ErrorIs(t, err, ErrSpaceNotFound)
}

func TestSpace_Contains(t *testing.T) {
	s := Space{ID: "lobby", Width: 10, Height: 5}
	assert.True(t, s.Contains(0, 0))
	assert.True(t, s.Contains(9, 4))
	assert.False(t, s.Contains(10, 4))
	assert.False(t, s.Contains(9, 5))
	assert.False(t, s.Contains(-1, 0))
}
