package cache

import (
	"sync"
)

type unreadEntry struct {
	count int
	// markedAt is the pending read marker: while a recount's newest message
	// is not newer than it, the recount is stale and must not resurrect the
	// badge.
	markedAt int64
}

// UnreadCacheModel holds per-conversation unread counts, reconciled from
// store snapshots and optimistically reset on mark-read.
type UnreadCacheModel struct {
	sync.RWMutex
	cache map[string]unreadEntry
}

var UnreadCache *UnreadCacheModel

func InitUnreadCache() *UnreadCacheModel {
	UnreadCache = new(UnreadCacheModel)
	UnreadCache.cache = make(map[string]unreadEntry)
	return UnreadCache
}

// SetFromRecount applies a recount for target. newestTs is the timestamp of
// the newest counted message; a recount carrying nothing newer than a
// pending read marker loses to the marker. Returns the count now in effect.
func (c *UnreadCacheModel) SetFromRecount(target string, count int, newestTs int64) int {
	c.Lock()
	defer c.Unlock()

	entry := c.cache[target]
	if newestTs <= entry.markedAt {
		entry.count = 0
	} else {
		entry.count = count
	}
	c.cache[target] = entry
	return entry.count
}

// Reset zeroes the badge and records the read marker so that in-flight
// recounts for older state cannot bring the count back.
func (c *UnreadCacheModel) Reset(target string, markedAt int64) {
	c.Lock()
	defer c.Unlock()

	entry := c.cache[target]
	entry.count = 0
	if markedAt > entry.markedAt {
		entry.markedAt = markedAt
	}
	c.cache[target] = entry
}

func (c *UnreadCacheModel) Drop(target string) {
	c.Lock()
	defer c.Unlock()

	delete(c.cache, target)
}

func (c *UnreadCacheModel) Get(target string) int {
	c.RLock()
	defer c.RUnlock()

	return c.cache[target].count
}

func (c *UnreadCacheModel) Total() int {
	c.RLock()
	defer c.RUnlock()

	total := 0
	for _, entry := range c.cache {
		total += entry.count
	}
	return total
}
