package cache

import (
	"sort"
	"sync"

	"chatline/pkg/entities"
)

// BlockedUserCacheModel mirrors the store's block relations. Relations are
// directional: blocker -> target, with the effects applied on the blocker's
// side only.
type BlockedUserCacheModel struct {
	sync.RWMutex
	cache map[string]map[string]entities.BlockRelation
}

var BlockedUserCache *BlockedUserCacheModel

func InitBlockedUserCache() *BlockedUserCacheModel {
	BlockedUserCache = new(BlockedUserCacheModel)
	BlockedUserCache.cache = make(map[string]map[string]entities.BlockRelation)
	return BlockedUserCache
}

func (c *BlockedUserCacheModel) Add(blocker, target string, relation entities.BlockRelation) {
	c.Lock()
	defer c.Unlock()

	if _, ok := c.cache[blocker]; !ok {
		c.cache[blocker] = make(map[string]entities.BlockRelation)
	}

	c.cache[blocker][target] = relation
}

func (c *BlockedUserCacheModel) Remove(blocker, target string) {
	c.Lock()
	defer c.Unlock()

	if _, ok := c.cache[blocker]; !ok {
		return
	}

	delete(c.cache[blocker], target)
}

// ReplaceAll swaps one blocker's relation set with the store's current view.
func (c *BlockedUserCacheModel) ReplaceAll(blocker string, relations map[string]entities.BlockRelation) {
	c.Lock()
	defer c.Unlock()

	if len(relations) == 0 {
		delete(c.cache, blocker)
		return
	}
	c.cache[blocker] = relations
}

func (c *BlockedUserCacheModel) IsBlocked(blocker, target string) bool {
	c.RLock()
	defer c.RUnlock()

	if _, ok := c.cache[blocker]; !ok {
		return false
	}

	_, blocked := c.cache[blocker][target]
	return blocked
}

func (c *BlockedUserCacheModel) List(blocker string) []string {
	c.RLock()
	defer c.RUnlock()

	targets := make([]string, 0, len(c.cache[blocker]))
	for target := range c.cache[blocker] {
		targets = append(targets, target)
	}
	sort.Strings(targets)
	return targets
}
