package memory

import (
	"context"
	"sync"
	"time"
)

// Lease is a process-local WindowLease for tests and single-node runs.
type Lease struct {
	mu      sync.Mutex
	holders map[int64]time.Time
	now     func() time.Time
}

func NewLease() *Lease {
	return &Lease{
		holders: make(map[int64]time.Time),
		now:     time.Now,
	}
}

func (l *Lease) Acquire(_ context.Context, windowID int64, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if expiresAt, held := l.holders[windowID]; held && now.Before(expiresAt) {
		return false, nil
	}
	l.holders[windowID] = now.Add(ttl)
	return true, nil
}

func (l *Lease) Release(_ context.Context, windowID int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.holders, windowID)
	return nil
}
