package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"chatline/pkg/entities"
)

func TestUnreadRecountThenReset(t *testing.T) {
	c := InitUnreadCache()

	got := c.SetFromRecount("alice_bob", 3, 1700000003000)
	assert.Equal(t, 3, got)
	assert.Equal(t, 3, c.Get("alice_bob"))

	c.Reset("alice_bob", 1700000004000)
	assert.Equal(t, 0, c.Get("alice_bob"))
}

func TestUnreadStaleRecountLosesToReadMarker(t *testing.T) {
	c := InitUnreadCache()

	c.SetFromRecount("alice_bob", 3, 1700000003000)
	c.Reset("alice_bob", 1700000004000)

	// late recount of pre-read state must not resurrect the badge
	got := c.SetFromRecount("alice_bob", 3, 1700000003000)
	assert.Equal(t, 0, got)
	assert.Equal(t, 0, c.Get("alice_bob"))

	// a genuinely newer message does count
	got = c.SetFromRecount("alice_bob", 1, 1700000005000)
	assert.Equal(t, 1, got)
}

func TestUnreadTotalSpansConversations(t *testing.T) {
	c := InitUnreadCache()

	c.SetFromRecount("alice_bob", 2, 1700000001000)
	c.SetFromRecount("friends_1700000000000", 5, 1700000002000)
	assert.Equal(t, 7, c.Total())

	c.Drop("friends_1700000000000")
	assert.Equal(t, 2, c.Total())
}

func TestBlockedCacheIsDirectional(t *testing.T) {
	c := InitBlockedUserCache()

	c.Add("alice", "bob", entities.BlockRelation{BlockedAt: 1700000000000, BlockedBy: "alice"})
	assert.True(t, c.IsBlocked("alice", "bob"))
	assert.False(t, c.IsBlocked("bob", "alice"))

	c.Remove("alice", "bob")
	assert.False(t, c.IsBlocked("alice", "bob"))
}

func TestBlockedCacheReplaceAll(t *testing.T) {
	c := InitBlockedUserCache()

	c.Add("alice", "bob", entities.BlockRelation{BlockedBy: "alice"})
	c.ReplaceAll("alice", map[string]entities.BlockRelation{
		"carol": {BlockedBy: "alice"},
	})

	assert.False(t, c.IsBlocked("alice", "bob"))
	assert.True(t, c.IsBlocked("alice", "carol"))
	assert.Equal(t, []string{"carol"}, c.List("alice"))
}
