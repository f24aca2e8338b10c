package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"graphitti-backend/pkg/errors"
)

type lockEntry struct {
	owner     string
	expiresAt time.Time
}

// AdvisoryLock is an in-process advisory lock for tests and single-node
// deployments
type AdvisoryLock struct {
	mu    sync.Mutex
	locks map[string]lockEntry
}

// NewAdvisoryLock creates an empty in-memory lock table
func NewAdvisoryLock() *AdvisoryLock {
	return &AdvisoryLock{locks: map[string]lockEntry{}}
}

// Acquire takes the named lock, returning a release function. Expired locks
// are treated as free.
func (l *AdvisoryLock) Acquire(ctx context.Context, resource, owner string, ttl time.Duration) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if entry, held := l.locks[resource]; held && entry.expiresAt.After(now) && entry.owner != owner {
		return nil, errors.NewConsistencyError(
			fmt.Sprintf("resource %s is locked by another operation", resource), nil)
	}

	l.locks[resource] = lockEntry{owner: owner, expiresAt: now.Add(ttl)}

	release := func(ctx context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if entry, held := l.locks[resource]; held && entry.owner == owner {
			delete(l.locks, resource)
		}
		return nil
	}
	return release, nil
}
