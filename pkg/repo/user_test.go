package repo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatline/config"
	"chatline/pkg/entities"
	"chatline/pkg/repo/driver/store"
)

func TestStoreProfilePreservesPresenceFields(t *testing.T) {
	ctx := context.Background()
	db := store.NewMemoryStore()
	t.Cleanup(func() { _ = db.Close() })
	userRepo := NewUserRepo(db, &config.ChatlineConfModel{})

	require.NoError(t, userRepo.StoreProfile(ctx, &entities.Peer{Username: "alice", UID: "uid-1", Email: "alice@mail.test"}))
	require.NoError(t, userRepo.RegisterPresence(ctx, "alice"))

	// a later profile write, e.g. attach from another device, must merge
	require.NoError(t, userRepo.StoreProfile(ctx, &entities.Peer{Username: "alice", UID: "uid-1", Email: "alice@mail.test"}))

	peer, err := userRepo.GetPeer(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, peer.Online)
	assert.NotZero(t, peer.LastSeen)
	assert.Equal(t, "uid-1", peer.UID)
}

func TestReserveUsernameFirstWriterWins(t *testing.T) {
	ctx := context.Background()
	db := store.NewMemoryStore()
	t.Cleanup(func() { _ = db.Close() })
	userRepo := NewUserRepo(db, &config.ChatlineConfModel{})

	require.NoError(t, userRepo.ReserveUsername(ctx, "alice", "uid-1"))
	// same account retries are idempotent
	require.NoError(t, userRepo.ReserveUsername(ctx, "alice", "uid-1"))
	assert.ErrorIs(t, userRepo.ReserveUsername(ctx, "alice", "uid-2"), ErrUsernameTaken)
}
