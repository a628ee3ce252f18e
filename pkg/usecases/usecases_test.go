package usecases

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chatline/config"
	"chatline/pkg/cache"
	"chatline/pkg/repo"
	"chatline/pkg/repo/driver/cursor"
	"chatline/pkg/repo/driver/store"
)

// fixture is one engine session against a shared in-memory store. Tests
// spin up several fixtures on the same store to play multi-user scenarios.
type fixture struct {
	user     string
	conf     *config.ChatlineConfModel
	db       *store.MemoryStore
	cursors  *cursor.Store
	chatRepo repo.ChatRepoImpl
	userRepo repo.UserRepoImpl
	callRepo repo.CallRepoImpl
}

func newSharedStore() *store.MemoryStore {
	return store.NewMemoryStore()
}

func testConf() *config.ChatlineConfModel {
	return &config.ChatlineConfModel{
		LogLevel:         "error",
		Mode:             "local",
		LoginTokenExpiry: "1h",
		Presence: config.Presence{
			HeartbeatSeconds: 1,
			OfflineAfter:     75,
		},
		Call: config.Call{
			RingTimeoutSeconds: 1,
		},
	}
}

func newFixture(t *testing.T, user string, db *store.MemoryStore) *fixture {
	t.Helper()

	conf := testConf()
	cursors, err := cursor.Open(filepath.Join(t.TempDir(), user+"-cursors.db"))
	require.NoError(t, err)
	t.Cleanup(func() { cursors.Close() })

	return &fixture{
		user:     user,
		conf:     conf,
		db:       db,
		cursors:  cursors,
		chatRepo: repo.NewChatRepo(db, conf),
		userRepo: repo.NewUserRepo(db, conf),
		callRepo: repo.NewCallRepo(db, conf),
	}
}

// resetCaches gives each test a clean slate; the caches are process-wide.
func resetCaches() {
	cache.Init()
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}
