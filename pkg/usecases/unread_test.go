package usecases

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatline/pkg/cache"
	"chatline/pkg/consts"
	"chatline/pkg/entities"
	"chatline/utilities"
)

func TestUnreadCountsPeerMessages(t *testing.T) {
	resetCaches()
	ctx := testCtx(t)

	db := newSharedStore()
	alice := newFixture(t, "alice", db)
	bob := newFixture(t, "bob", db)

	key := entities.ChatKey("alice", "bob")
	now := utilities.UnixMilli(utilities.TimeNow())
	for i := 0; i < 3; i++ {
		_, err := bob.chatRepo.StorePersonalChat(ctx, key, &entities.Message{
			Username: "bob", Message: "hi", Type: consts.MsgTypeText, Timestamp: now + int64(i),
		})
		require.NoError(t, err)
	}

	unread := NewUnreadUseCases("alice", alice.conf, alice.chatRepo, alice.cursors, nil)
	defer unread.Stop()
	unread.Reconcile(ctx, map[string]ConversationRef{key: {Kind: consts.ChatKindIndividual, Peer: "bob"}})

	waitFor(t, func() bool { return unread.Count(key) == 3 }, "expected 3 unread messages")
	assert.Equal(t, 3, unread.Total())
}

func TestUnreadIgnoresOwnMessages(t *testing.T) {
	resetCaches()
	ctx := testCtx(t)

	db := newSharedStore()
	alice := newFixture(t, "alice", db)

	key := entities.ChatKey("alice", "bob")
	now := utilities.UnixMilli(utilities.TimeNow())
	_, err := alice.chatRepo.StorePersonalChat(ctx, key, &entities.Message{
		Username: "alice", Message: "hello bob", Timestamp: now,
	})
	require.NoError(t, err)
	_, err = alice.chatRepo.StorePersonalChat(ctx, key, &entities.Message{
		Username: "bob", Message: "hello alice", Timestamp: now + 1,
	})
	require.NoError(t, err)

	unread := NewUnreadUseCases("alice", alice.conf, alice.chatRepo, alice.cursors, nil)
	defer unread.Stop()
	unread.Reconcile(ctx, map[string]ConversationRef{key: {Kind: consts.ChatKindIndividual, Peer: "bob"}})

	waitFor(t, func() bool { return unread.Count(key) == 1 }, "own messages must not count")
}

func TestUnreadMarkReadZeroesAndSticks(t *testing.T) {
	resetCaches()
	ctx := testCtx(t)

	db := newSharedStore()
	alice := newFixture(t, "alice", db)
	bob := newFixture(t, "bob", db)

	key := entities.ChatKey("alice", "bob")
	now := utilities.UnixMilli(utilities.TimeNow())
	_, err := bob.chatRepo.StorePersonalChat(ctx, key, &entities.Message{
		Username: "bob", Message: "one", Timestamp: now - 10,
	})
	require.NoError(t, err)

	unread := NewUnreadUseCases("alice", alice.conf, alice.chatRepo, alice.cursors, nil)
	defer unread.Stop()
	unread.Reconcile(ctx, map[string]ConversationRef{key: {Kind: consts.ChatKindIndividual, Peer: "bob"}})
	waitFor(t, func() bool { return unread.Count(key) == 1 }, "message not counted")

	require.NoError(t, unread.MarkRead(ctx, key))
	assert.Equal(t, 0, unread.Count(key))

	// a write after mark-read triggers a fresh recount; only the new
	// message counts
	_, err = bob.chatRepo.StorePersonalChat(ctx, key, &entities.Message{
		Username: "bob", Message: "two", Timestamp: utilities.UnixMilli(utilities.TimeNow()) + 5,
	})
	require.NoError(t, err)
	waitFor(t, func() bool { return unread.Count(key) == 1 }, "new message after mark-read not counted")
}

func TestUnreadRespectsTombstone(t *testing.T) {
	resetCaches()
	ctx := testCtx(t)

	db := newSharedStore()
	alice := newFixture(t, "alice", db)
	bob := newFixture(t, "bob", db)

	key := entities.ChatKey("alice", "bob")
	now := utilities.UnixMilli(utilities.TimeNow())
	_, err := bob.chatRepo.StorePersonalChat(ctx, key, &entities.Message{
		Username: "bob", Message: "old", Timestamp: now - 100,
	})
	require.NoError(t, err)

	cache.TombstoneCache.Set(key, now-50)

	unread := NewUnreadUseCases("alice", alice.conf, alice.chatRepo, alice.cursors, nil)
	defer unread.Stop()
	unread.Reconcile(ctx, map[string]ConversationRef{key: {Kind: consts.ChatKindIndividual, Peer: "bob"}})

	// the watch delivers; the tombstoned message must never count
	waitFor(t, func() bool { return unread.SubscriptionCount() == 1 }, "subscription missing")
	assert.Equal(t, 0, unread.Count(key))
}

func TestUnreadReconcileDiffsSubscriptions(t *testing.T) {
	resetCaches()
	ctx := testCtx(t)

	db := newSharedStore()
	alice := newFixture(t, "alice", db)

	unread := NewUnreadUseCases("alice", alice.conf, alice.chatRepo, alice.cursors, nil)
	defer unread.Stop()

	keyBob := entities.ChatKey("alice", "bob")
	keyCarol := entities.ChatKey("alice", "carol")
	unread.Reconcile(ctx, map[string]ConversationRef{
		keyBob:   {Kind: consts.ChatKindIndividual, Peer: "bob"},
		keyCarol: {Kind: consts.ChatKindIndividual, Peer: "carol"},
	})
	assert.Equal(t, 2, unread.SubscriptionCount())

	// carol drops out, a group joins; bob's watch survives the diff
	unread.Reconcile(ctx, map[string]ConversationRef{
		keyBob:                  {Kind: consts.ChatKindIndividual, Peer: "bob"},
		"friends_1700000000000": {Kind: consts.ChatKindGroup},
	})
	assert.Equal(t, 2, unread.SubscriptionCount())

	unread.Reconcile(ctx, map[string]ConversationRef{})
	assert.Equal(t, 0, unread.SubscriptionCount())
}

func TestUnreadSkipsBlockedPeers(t *testing.T) {
	resetCaches()
	ctx := testCtx(t)

	db := newSharedStore()
	alice := newFixture(t, "alice", db)

	cache.BlockedUserCache.Add("alice", "bob", entities.BlockRelation{BlockedBy: "alice"})

	unread := NewUnreadUseCases("alice", alice.conf, alice.chatRepo, alice.cursors, nil)
	defer unread.Stop()
	unread.Reconcile(ctx, map[string]ConversationRef{
		entities.ChatKey("alice", "bob"):   {Kind: consts.ChatKindIndividual, Peer: "bob"},
		entities.ChatKey("alice", "carol"): {Kind: consts.ChatKindIndividual, Peer: "carol"},
	})

	assert.Equal(t, 1, unread.SubscriptionCount())
	assert.Equal(t, 0, unread.Count(entities.ChatKey("alice", "bob")))
}
