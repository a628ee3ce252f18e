package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatKeySymmetry(t *testing.T) {
	pairs := [][2]string{
		{"alice", "bob"},
		{"bob", "alice"},
		{"a", "z"},
		{"user_1", "user_2"},
		{"Zed", "ann"},
	}
	for _, p := range pairs {
		assert.Equal(t, ChatKey(p[0], p[1]), ChatKey(p[1], p[0]), "key must not depend on argument order")
	}
}

func TestChatKeyOrdering(t *testing.T) {
	require.Equal(t, "alice_bob", ChatKey("bob", "alice"))
	require.Equal(t, "alice_bob", ChatKey("alice", "bob"))
}

func TestGroupID(t *testing.T) {
	require.Equal(t, "team_chat_1700000000000", GroupID("team chat", 1700000000000))
}
