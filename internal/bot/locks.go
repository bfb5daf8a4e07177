package bot

import "sync"

// channelLocks serializes handlers per channel. Entries are dropped once no
// handler holds or waits for them.
type channelLocks struct {
	mu    sync.Mutex
	locks map[string]*channelLock
}

type channelLock struct {
	mu   sync.Mutex
	refs int
}

func newChannelLocks() *channelLocks {
	return &channelLocks{locks: make(map[string]*channelLock)}
}

// Lock blocks until the channel is free and returns its unlock func.
func (c *channelLocks) Lock(channelID string) func() {
	c.mu.Lock()
	l, ok := c.locks[channelID]
	if !ok {
		l = &channelLock{}
		c.locks[channelID] = l
	}
	l.refs++
	c.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		c.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(c.locks, channelID)
		}
		c.mu.Unlock()
	}
}

func (c *channelLocks) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.locks)
}
