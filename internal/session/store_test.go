package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileTokenStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "token.json")
	store := NewFileTokenStore(path)

	_, ok := store.Get()
	assert.False(t, ok, "fresh store should hold no token")

	require.NoError(t, store.Set("abc123"))

	token, ok := store.Get()
	assert.True(t, ok)
	assert.Equal(t, "abc123", token)
}

// TestFileTokenStore_SurvivesRestart verifies the credential outlives the
// store instance that wrote it
func TestFileTokenStore_SurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")

	require.NoError(t, NewFileTokenStore(path).Set("persisted"))

	token, ok := NewFileTokenStore(path).Get()
	assert.True(t, ok)
	assert.Equal(t, "persisted", token)
}

func TestFileTokenStore_Clear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	store := NewFileTokenStore(path)

	require.NoError(t, store.Set("abc123"))
	require.NoError(t, store.Clear())

	_, ok := store.Get()
	assert.False(t, ok)

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "clear should remove the token file")

	// Clearing an already empty store must not fail
	require.NoError(t, store.Clear())
}

func TestFileTokenStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, os.WriteFile(path, []byte("not-json"), 0o600))

	_, ok := NewFileTokenStore(path).Get()
	assert.False(t, ok, "unreadable token file should behave like no token")
}

func TestMemoryTokenStore_RoundTrip(t *testing.T) {
	store := NewMemoryTokenStore()

	_, ok := store.Get()
	assert.False(t, ok)

	require.NoError(t, store.Set("tok"))
	token, ok := store.Get()
	assert.True(t, ok)
	assert.Equal(t, "tok", token)

	require.NoError(t, store.Clear())
	_, ok = store.Get()
	assert.False(t, ok)
}
