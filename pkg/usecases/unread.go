package usecases

import (
	"context"
	"encoding/json"
	"sync"

	"chatline/config"
	"chatline/pkg/cache"
	"chatline/pkg/consts"
	"chatline/pkg/entities"
	"chatline/pkg/repo"
	"chatline/pkg/repo/driver/cursor"
	"chatline/pkg/repo/driver/medium"
	"chatline/pkg/repo/driver/store"
	"chatline/utilities"
)

// UnreadUseCases keeps one live subscription per tracked conversation and
// recounts its badge from every snapshot. Read state never leaves the
// device: the cursor store is local, only counts are derived from shared
// data.
type UnreadUseCases struct {
	user     string
	conf     *config.ChatlineConfModel
	chatRepo repo.ChatRepoImpl
	cursors  *cursor.Store
	ws       *medium.Socket

	mu      sync.Mutex
	watched map[string]store.UnsubscribeFunc
}

// ConversationRef names one conversation for the watch set: its kind and,
// for individual chats, the peer handle. The handle travels alongside the
// store key because keys cannot be parsed back into handles (handles may
// contain the separator).
type ConversationRef struct {
	Kind string
	Peer string
}

// Reconcile diffs the wanted conversation set against the live
// subscriptions: targets that disappeared are unsubscribed, new ones
// subscribed, survivors left untouched. Conversations with a blocked peer
// are never watched.
func (u *UnreadUseCases) Reconcile(ctx context.Context, targets map[string]ConversationRef) {
	log := utilities.NewLogger("UnreadReconcile")

	u.mu.Lock()
	defer u.mu.Unlock()

	for target, unsub := range u.watched {
		ref, wanted := targets[target]
		if wanted && !u.peerBlocked(ref) {
			continue
		}
		unsub()
		delete(u.watched, target)
		cache.UnreadCache.Drop(target)
	}

	for target, ref := range targets {
		if _, ok := u.watched[target]; ok {
			continue
		}
		if u.peerBlocked(ref) {
			continue
		}

		target := target
		u.watched[target] = u.chatRepo.WatchMessages(target, ref.Kind, func(snap store.Snapshot) {
			u.recount(target, snap)
		}, func(err error) {
			log.WithError(err).Warnf("unread watch error for %s", target)
		})
	}
}

func (u *UnreadUseCases) peerBlocked(ref ConversationRef) bool {
	return ref.Kind == consts.ChatKindIndividual && cache.BlockedUserCache.IsBlocked(u.user, ref.Peer)
}

// recount derives the badge from a full snapshot: messages from others
// newer than both the read cursor and the clear tombstone. The cache
// arbitrates against pending read markers, so a stale snapshot racing a
// mark-read cannot resurrect the badge.
func (u *UnreadUseCases) recount(target string, snap store.Snapshot) {
	log := utilities.NewLogger("recount")

	markedAt, err := u.cursors.Get(u.user, target)
	if err != nil {
		log.WithError(err).Errorf("reading cursor for %s", target)
	}
	floor := markedAt
	if ts := cache.TombstoneCache.Get(target); ts > floor {
		floor = ts
	}

	count := 0
	var newest int64
	for _, child := range snap.Children {
		var msg entities.Message
		if err := json.Unmarshal(child.Value, &msg); err != nil {
			continue
		}
		if msg.Username == u.user {
			continue
		}
		if msg.Timestamp > newest {
			newest = msg.Timestamp
		}
		if msg.Timestamp > floor {
			count++
		}
	}

	inEffect := cache.UnreadCache.SetFromRecount(target, count, newest)
	u.pushBadge(target, inEffect)
}

// MarkRead moves the cursor to now and zeroes the badge optimistically,
// before any snapshot confirms it.
func (u *UnreadUseCases) MarkRead(ctx context.Context, target string) error {
	markedAt := utilities.UnixMilli(utilities.TimeNow())
	if err := u.cursors.Set(u.user, target, markedAt); err != nil {
		return err
	}
	cache.UnreadCache.Reset(target, markedAt)
	u.pushBadge(target, 0)
	return nil
}

func (u *UnreadUseCases) pushBadge(target string, count int) {
	if u.ws == nil {
		return
	}
	_ = u.ws.PushEvent(u.user, entities.GatewayEvent{Kind: consts.EventUnread, Data: map[string]interface{}{
		"target": target,
		"count":  count,
		"total":  cache.UnreadCache.Total(),
	}})
}

func (u *UnreadUseCases) Total() int {
	return cache.UnreadCache.Total()
}

func (u *UnreadUseCases) Count(target string) int {
	return cache.UnreadCache.Get(target)
}

func (u *UnreadUseCases) SubscriptionCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.watched)
}

func (u *UnreadUseCases) Stop() {
	u.mu.Lock()
	defer u.mu.Unlock()
	for target, unsub := range u.watched {
		unsub()
		delete(u.watched, target)
	}
}

type UnreadUseCaseImply interface {
	Reconcile(ctx context.Context, targets map[string]ConversationRef)
	MarkRead(ctx context.Context, target string) error
	Total() int
	Count(target string) int
	SubscriptionCount() int
	Stop()
}

func NewUnreadUseCases(
	user string, conf *config.ChatlineConfModel, chatRepo repo.ChatRepoImpl,
	cursors *cursor.Store, ws *medium.Socket,
) UnreadUseCaseImply {
	return &UnreadUseCases{
		user:     user,
		conf:     conf,
		chatRepo: chatRepo,
		cursors:  cursors,
		ws:       ws,
		watched:  make(map[string]store.UnsubscribeFunc),
	}
}
