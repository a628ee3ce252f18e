package cursor

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "cursors.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCursorGetUnknownTarget(t *testing.T) {
	s := openTestStore(t)

	markedAt, err := s.Get("alice", "alice_bob")
	require.NoError(t, err)
	assert.Zero(t, markedAt)
}

func TestCursorSetOverwrites(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Set("alice", "alice_bob", 1700000000000))
	require.NoError(t, s.Set("alice", "alice_bob", 1700000005000))

	markedAt, err := s.Get("alice", "alice_bob")
	require.NoError(t, err)
	assert.EqualValues(t, 1700000005000, markedAt)
}

func TestCursorIsolatedPerOwner(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Set("alice", "alice_bob", 1700000000000))

	markedAt, err := s.Get("bob", "alice_bob")
	require.NoError(t, err)
	assert.Zero(t, markedAt)
}

func TestCursorAll(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Set("alice", "alice_bob", 100))
	require.NoError(t, s.Set("alice", "friends_1700000000000", 200))
	require.NoError(t, s.Set("carol", "alice_carol", 300))

	all, err := s.All("alice")
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{
		"alice_bob":             100,
		"friends_1700000000000": 200,
	}, all)
}
