package cache

import (
	"sync"

	"chatline/pkg/entities"
)

// LastMessageCacheModel keeps the newest visible message per conversation,
// used for contact-list previews and recency ordering.
type LastMessageCacheModel struct {
	sync.RWMutex
	cache map[string]entities.Message
}

var LastMessageCache *LastMessageCacheModel

func InitLastMessageCache() *LastMessageCacheModel {
	LastMessageCache = new(LastMessageCacheModel)
	LastMessageCache.cache = make(map[string]entities.Message)
	return LastMessageCache
}

func (c *LastMessageCacheModel) Set(target string, msg entities.Message) {
	c.Lock()
	defer c.Unlock()

	c.cache[target] = msg
}

func (c *LastMessageCacheModel) Drop(target string) {
	c.Lock()
	defer c.Unlock()

	delete(c.cache, target)
}

func (c *LastMessageCacheModel) Get(target string) (entities.Message, bool) {
	c.RLock()
	defer c.RUnlock()

	msg, ok := c.cache[target]
	return msg, ok
}
