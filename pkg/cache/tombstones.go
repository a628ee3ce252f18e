package cache

import (
	"sync"
)

// TombstoneCacheModel mirrors the clearedChats node for the local user.
// Messages at or before a conversation's tombstone are hidden everywhere.
type TombstoneCacheModel struct {
	sync.RWMutex
	cache map[string]int64
}

var TombstoneCache *TombstoneCacheModel

func InitTombstoneCache() *TombstoneCacheModel {
	TombstoneCache = new(TombstoneCacheModel)
	TombstoneCache.cache = make(map[string]int64)
	return TombstoneCache
}

func (c *TombstoneCacheModel) ReplaceAll(tombstones map[string]int64) {
	c.Lock()
	defer c.Unlock()

	c.cache = tombstones
	if c.cache == nil {
		c.cache = make(map[string]int64)
	}
}

func (c *TombstoneCacheModel) Set(target string, clearedAt int64) {
	c.Lock()
	defer c.Unlock()

	if clearedAt > c.cache[target] {
		c.cache[target] = clearedAt
	}
}

// Get returns the cleared-at millis for target, zero when never cleared.
func (c *TombstoneCacheModel) Get(target string) int64 {
	c.RLock()
	defer c.RUnlock()

	return c.cache[target]
}
