package cache

import (
	"sync"

	"chatline/pkg/entities"
)

type presenceEntry struct {
	online   bool
	lastSeen int64
}

// PresenceCacheModel holds the last known online flag and lastSeen millis of
// every peer seen on the users node.
type PresenceCacheModel struct {
	sync.RWMutex
	cache map[string]presenceEntry
}

var PresenceCache *PresenceCacheModel

func InitPresenceCache() *PresenceCacheModel {
	PresenceCache = new(PresenceCacheModel)
	PresenceCache.cache = make(map[string]presenceEntry)
	return PresenceCache
}

func (c *PresenceCacheModel) Update(user string, online bool, lastSeen int64) {
	c.Lock()
	defer c.Unlock()

	c.cache[user] = presenceEntry{online: online, lastSeen: lastSeen}
}

func (c *PresenceCacheModel) ReplaceAll(peers map[string]entities.Peer) {
	c.Lock()
	defer c.Unlock()

	c.cache = make(map[string]presenceEntry, len(peers))
	for user, p := range peers {
		c.cache[user] = presenceEntry{online: p.Online, lastSeen: p.LastSeen}
	}
}

func (c *PresenceCacheModel) IsOnline(user string) bool {
	c.RLock()
	defer c.RUnlock()

	return c.cache[user].online
}

func (c *PresenceCacheModel) LastSeenOf(user string) int64 {
	c.RLock()
	defer c.RUnlock()

	return c.cache[user].lastSeen
}
