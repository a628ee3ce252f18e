package usecases

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"chatline/config"
	"chatline/pkg/cache"
	"chatline/pkg/consts"
	"chatline/pkg/entities"
	"chatline/pkg/repo"
	"chatline/pkg/repo/driver/medium"
	"chatline/pkg/repo/driver/store"
	"chatline/utilities"
)

// PresenceUseCases announces the local user on the users node and mirrors
// every peer's presence into the cache. A disconnect write flips the user
// offline when the session dies; the heartbeat keeps lastSeen fresh so
// peers can spot sessions that died without one.
type PresenceUseCases struct {
	user     string
	conf     *config.ChatlineConfModel
	userRepo repo.UserRepoImpl
	ws       *medium.Socket

	mu     sync.Mutex
	cancel context.CancelFunc
	unsub  store.UnsubscribeFunc
}

func (p *PresenceUseCases) Start(ctx context.Context) error {
	log := utilities.NewLogger("PresenceStart")

	if err := p.userRepo.RegisterPresence(ctx, p.user); err != nil {
		return err
	}

	hbCtx, cancel := context.WithCancel(ctx)

	p.mu.Lock()
	p.cancel = cancel
	p.unsub = p.userRepo.WatchUsers(p.onUsers, func(err error) {
		log.WithError(err).Warn("presence watch error")
	})
	p.mu.Unlock()

	go func() {
		interval := time.Duration(p.conf.Presence.HeartbeatSeconds) * time.Second
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-hbCtx.Done():
				return
			case <-ticker.C:
				if err := p.userRepo.Heartbeat(hbCtx, p.user); err != nil {
					log.WithError(err).Warn("heartbeat failed")
				}
			}
		}
	}()

	return nil
}

func (p *PresenceUseCases) onUsers(snap store.Snapshot) {
	peers := make(map[string]entities.Peer, len(snap.Children))
	for _, child := range snap.Children {
		var peer entities.Peer
		if err := json.Unmarshal(child.Value, &peer); err != nil {
			continue
		}
		peer.Username = child.Key
		peers[child.Key] = peer
	}
	cache.PresenceCache.ReplaceAll(peers)

	if p.ws != nil {
		_ = p.ws.PushEvent(p.user, entities.GatewayEvent{Kind: consts.EventPresence, Data: peers})
	}
}

// IsOnline requires both the online flag and a heartbeat within the
// staleness window, so crashed sessions read as offline once they go quiet.
func (p *PresenceUseCases) IsOnline(user string) bool {
	if !cache.PresenceCache.IsOnline(user) {
		return false
	}
	window := int64(p.conf.Presence.OfflineAfter) * 1000
	if window <= 0 {
		return true
	}
	lastSeen := cache.PresenceCache.LastSeenOf(user)
	return utilities.UnixMilli(utilities.TimeNow())-lastSeen <= window
}

func (p *PresenceUseCases) LastSeenOf(user string) int64 {
	return cache.PresenceCache.LastSeenOf(user)
}

func (p *PresenceUseCases) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	if p.unsub != nil {
		p.unsub()
		p.unsub = nil
	}
	p.mu.Unlock()

	return p.userRepo.SetOffline(ctx, p.user)
}

type PresenceUseCaseImply interface {
	Start(ctx context.Context) error
	IsOnline(user string) bool
	LastSeenOf(user string) int64
	Stop(ctx context.Context) error
}

func NewPresenceUseCases(
	user string, conf *config.ChatlineConfModel, userRepo repo.UserRepoImpl, ws *medium.Socket,
) PresenceUseCaseImply {
	return &PresenceUseCases{
		user:     user,
		conf:     conf,
		userRepo: userRepo,
		ws:       ws,
	}
}
