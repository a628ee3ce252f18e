package usecases

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatline/pkg/cache"
	"chatline/pkg/consts"
	"chatline/pkg/entities"
	"chatline/pkg/repo/driver/store"
	"chatline/utilities"
)

// newChatUseCases wires a ChatUseCases whose reconciled view the tests
// observe through the last-message cache.
func newChatUseCases(t *testing.T, f *fixture) (ChatUseCaseImply, UnreadUseCaseImply) {
	t.Helper()
	unread := NewUnreadUseCases(f.user, f.conf, f.chatRepo, f.cursors, nil)
	t.Cleanup(unread.Stop)
	return NewChatUseCases(f.user, f.conf, f.chatRepo, unread, nil, nil), unread
}

func TestSendRequiresActiveChat(t *testing.T) {
	resetCaches()
	ctx := testCtx(t)

	alice := newFixture(t, "alice", newSharedStore())
	chat, _ := newChatUseCases(t, alice)

	_, err := chat.Send(ctx, &entities.Message{Message: "hello"}, nil, 0)
	assert.ErrorIs(t, err, ErrNoActiveChat)
}

func TestSendRejectsEmptyText(t *testing.T) {
	resetCaches()
	ctx := testCtx(t)

	alice := newFixture(t, "alice", newSharedStore())
	chat, _ := newChatUseCases(t, alice)

	require.NoError(t, chat.SetActiveChat(ctx, "bob", consts.ChatKindIndividual))
	defer chat.DeactivateChat()

	_, err := chat.Send(ctx, &entities.Message{Message: "   "}, nil, 0)
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestSendRejectsBlockedPeer(t *testing.T) {
	resetCaches()
	ctx := testCtx(t)

	alice := newFixture(t, "alice", newSharedStore())
	chat, _ := newChatUseCases(t, alice)

	require.NoError(t, chat.SetActiveChat(ctx, "bob", consts.ChatKindIndividual))
	defer chat.DeactivateChat()

	cache.BlockedUserCache.Add("alice", "bob", entities.BlockRelation{BlockedBy: "alice"})

	_, err := chat.Send(ctx, &entities.Message{Message: "hello"}, nil, 0)
	assert.ErrorIs(t, err, ErrPeerBlocked)
}

func TestMessagesOrderedWithKeyTieBreak(t *testing.T) {
	resetCaches()
	ctx := testCtx(t)

	db := newSharedStore()
	alice := newFixture(t, "alice", db)
	bob := newFixture(t, "bob", db)

	key := entities.ChatKey("alice", "bob")
	ts := utilities.UnixMilli(utilities.TimeNow())

	// two messages in the same millisecond plus an older one appended last
	_, err := bob.chatRepo.StorePersonalChat(ctx, key, &entities.Message{Username: "bob", Message: "tie-1", Timestamp: ts})
	require.NoError(t, err)
	_, err = bob.chatRepo.StorePersonalChat(ctx, key, &entities.Message{Username: "bob", Message: "tie-2", Timestamp: ts})
	require.NoError(t, err)
	_, err = bob.chatRepo.StorePersonalChat(ctx, key, &entities.Message{Username: "bob", Message: "older", Timestamp: ts - 100})
	require.NoError(t, err)

	chat, _ := newChatUseCases(t, alice)
	require.NoError(t, chat.SetActiveChat(ctx, "bob", consts.ChatKindIndividual))
	defer chat.DeactivateChat()

	waitFor(t, func() bool {
		msg, ok := cache.LastMessageCache.Get(key)
		return ok && msg.Message == "tie-2"
	}, "view not reconciled: newest message should be the second tie")
}

func TestClearChatHidesHistoryLocally(t *testing.T) {
	resetCaches()
	ctx := testCtx(t)

	db := newSharedStore()
	alice := newFixture(t, "alice", db)
	bob := newFixture(t, "bob", db)

	key := entities.ChatKey("alice", "bob")
	ts := utilities.UnixMilli(utilities.TimeNow())
	_, err := bob.chatRepo.StorePersonalChat(ctx, key, &entities.Message{Username: "bob", Message: "before", Timestamp: ts - 10})
	require.NoError(t, err)

	chat, _ := newChatUseCases(t, alice)
	require.NoError(t, chat.SetActiveChat(ctx, "bob", consts.ChatKindIndividual))
	defer chat.DeactivateChat()

	waitFor(t, func() bool {
		_, ok := cache.LastMessageCache.Get(key)
		return ok
	}, "message not visible before clear")

	_, err = chat.ClearChat(ctx, key)
	require.NoError(t, err)

	// tombstone hides everything locally
	_, ok := cache.LastMessageCache.Get(key)
	assert.False(t, ok)

	// the shared node still holds the message for bob
	var raw map[string]entities.Message
	require.NoError(t, db.Get(ctx, store.Join(consts.ChatsRoot, key), &raw))
	assert.Len(t, raw, 1)

	// and bob's view has no tombstone, so he still sees it
	tombstones, err := bob.chatRepo.GetTombstones(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, tombstones)
}

func TestBlockDeselectsActiveConversation(t *testing.T) {
	resetCaches()
	ctx := testCtx(t)

	alice := newFixture(t, "alice", newSharedStore())
	chat, _ := newChatUseCases(t, alice)

	require.NoError(t, chat.SetActiveChat(ctx, "bob", consts.ChatKindIndividual))

	_, err := chat.Block(ctx, "bob")
	require.NoError(t, err)

	target, _ := chat.ActiveChat()
	assert.Empty(t, target)
	assert.True(t, cache.BlockedUserCache.IsBlocked("alice", "bob"))
}

func TestActivateBlockedPeerDoesNotSubscribe(t *testing.T) {
	resetCaches()
	ctx := testCtx(t)

	db := newSharedStore()
	alice := newFixture(t, "alice", db)
	bob := newFixture(t, "bob", db)

	cache.BlockedUserCache.Add("alice", "bob", entities.BlockRelation{BlockedBy: "alice"})

	key := entities.ChatKey("alice", "bob")
	ts := utilities.UnixMilli(utilities.TimeNow())
	_, err := bob.chatRepo.StorePersonalChat(ctx, key, &entities.Message{Username: "bob", Message: "ignored", Timestamp: ts})
	require.NoError(t, err)

	chat, _ := newChatUseCases(t, alice)
	require.NoError(t, chat.SetActiveChat(ctx, "bob", consts.ChatKindIndividual))
	defer chat.DeactivateChat()

	target, _ := chat.ActiveChat()
	assert.Equal(t, key, target)

	// no subscription means the message never reaches the view
	_, ok := cache.LastMessageCache.Get(key)
	assert.False(t, ok)
}

func TestUnblockedPeerMessagesReappear(t *testing.T) {
	resetCaches()
	ctx := testCtx(t)

	db := newSharedStore()
	alice := newFixture(t, "alice", db)
	bob := newFixture(t, "bob", db)

	key := entities.ChatKey("alice", "bob")
	ts := utilities.UnixMilli(utilities.TimeNow())
	_, err := bob.chatRepo.StorePersonalChat(ctx, key, &entities.Message{Username: "bob", Message: "kept", Timestamp: ts})
	require.NoError(t, err)

	chat, _ := newChatUseCases(t, alice)
	_, err = chat.Block(ctx, "bob")
	require.NoError(t, err)
	_, err = chat.Unblock(ctx, "bob")
	require.NoError(t, err)

	// blocking never deleted anything: reactivating shows the history
	require.NoError(t, chat.SetActiveChat(ctx, "bob", consts.ChatKindIndividual))
	defer chat.DeactivateChat()

	waitFor(t, func() bool {
		msg, ok := cache.LastMessageCache.Get(key)
		return ok && msg.Message == "kept"
	}, "history lost across block/unblock")
}

func TestBlockGatingWithUnderscoreHandles(t *testing.T) {
	resetCaches()
	ctx := testCtx(t)

	// "alice_b" vs "ob" yields the key "alice_b_ob", which cannot be split
	// back into its handles
	me := newFixture(t, "alice_b", newSharedStore())
	chat, _ := newChatUseCases(t, me)

	cache.BlockedUserCache.Add("alice_b", "ob", entities.BlockRelation{BlockedBy: "alice_b"})

	require.NoError(t, chat.SetActiveChat(ctx, "ob", consts.ChatKindIndividual))
	defer chat.DeactivateChat()

	target, _ := chat.ActiveChat()
	assert.Equal(t, entities.ChatKey("alice_b", "ob"), target)

	_, err := chat.Send(ctx, &entities.Message{Message: "hello"}, nil, 0)
	assert.ErrorIs(t, err, ErrPeerBlocked)
}

func TestActivateSelfRejected(t *testing.T) {
	resetCaches()
	ctx := testCtx(t)

	alice := newFixture(t, "alice", newSharedStore())
	chat, _ := newChatUseCases(t, alice)

	assert.ErrorIs(t, chat.SetActiveChat(ctx, "alice", consts.ChatKindIndividual), ErrSelfChat)
}

func TestCreateGroupIncludesCreator(t *testing.T) {
	resetCaches()
	ctx := testCtx(t)

	alice := newFixture(t, "alice", newSharedStore())
	chat, _ := newChatUseCases(t, alice)

	info, err := chat.CreateGroup(ctx, "book club", []string{"bob", "carol"})
	require.NoError(t, err)
	assert.Contains(t, info.Members, "alice")
	assert.Equal(t, entities.GroupID("book club", info.CreatedAt), info.GID)

	stored, err := alice.chatRepo.GetGroupInfo(ctx, info.GID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice", "bob", "carol"}, stored.Members)
}
