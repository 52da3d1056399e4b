package lock

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Local is an in-process Locker backed by one weighted semaphore per key.
type Local struct {
	mode Mode

	mu   sync.Mutex
	sems map[string]*semaphore.Weighted
}

// NewLocal returns an in-process locker.
func NewLocal(mode Mode) *Local {
	return &Local{mode: mode, sems: make(map[string]*semaphore.Weighted)}
}

func (l *Local) Lock(ctx context.Context, key string) (Unlock, error) {
	sem := l.semaphore(key)

	if l.mode == Wait {
		if err := sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
	} else if !sem.TryAcquire(1) {
		return nil, busy(key)
	}

	var once sync.Once
	return func() error {
		once.Do(func() { sem.Release(1) })
		return nil
	}, nil
}

func (l *Local) semaphore(key string) *semaphore.Weighted {
	l.mu.Lock()
	defer l.mu.Unlock()

	sem, ok := l.sems[key]
	if !ok {
		sem = semaphore.NewWeighted(1)
		l.sems[key] = sem
	}
	return sem
}
