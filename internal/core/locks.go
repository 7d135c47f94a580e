package core

import (
	"sync"

	"roomdesk/internal/domain"
)

// CodeLocks serializes lifecycle operations per room code. Create,
// delete, extend and expiry-fire for one code run one at a time;
// operations on different codes proceed in parallel.
type CodeLocks struct {
	mu    sync.Mutex
	locks map[domain.RoomCode]*sync.Mutex
}

func NewCodeLocks() *CodeLocks {
	return &CodeLocks{locks: make(map[domain.RoomCode]*sync.Mutex)}
}

func (c *CodeLocks) Lock(code domain.RoomCode) {
	c.mu.Lock()
	l, ok := c.locks[code]
	if !ok {
		l = &sync.Mutex{}
		c.locks[code] = l
	}
	c.mu.Unlock()
	l.Lock()
}

func (c *CodeLocks) Unlock(code domain.RoomCode) {
	c.mu.Lock()
	l := c.locks[code]
	c.mu.Unlock()
	l.Unlock()
}
