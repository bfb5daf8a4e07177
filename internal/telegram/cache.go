package telegram

import (
	"sync"

	"github.com/golang/groupcache/lru"

	"kbot/internal/platform"
)

// The Bot API cannot fetch a message by ID, so every message the adapter
// sees or sends is kept here for reply-chain walks.
type messageCache struct {
	mu  sync.Mutex
	lru *lru.Cache
}

type cacheKey struct {
	channelID string
	messageID string
}

func newMessageCache(size int) *messageCache {
	return &messageCache{lru: lru.New(size)}
}

func (c *messageCache) add(m platform.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(cacheKey{m.ChannelID, m.ID}, m)
}

// addIfAbsent stores m unless a fuller copy is already cached. Messages
// embedded as reply targets lack their own reply link.
func (c *messageCache) addIfAbsent(m platform.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := cacheKey{m.ChannelID, m.ID}
	if _, ok := c.lru.Get(key); ok {
		return
	}
	c.lru.Add(key, m)
}

func (c *messageCache) get(channelID, messageID string) (platform.Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.lru.Get(cacheKey{channelID, messageID})
	if !ok {
		return platform.Message{}, false
	}
	return v.(platform.Message), true
}

func (c *messageCache) setText(channelID, messageID, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := cacheKey{channelID, messageID}
	v, ok := c.lru.Get(key)
	if !ok {
		return
	}
	m := v.(platform.Message)
	m.Content = text
	c.lru.Add(key, m)
}

func (c *messageCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
