// Package lock serializes generation runs per workspace root.
//
// A lock is held for one full generate and materialize cycle. The local
// locker covers invocations sharing a process; the Redis locker covers
// separate processes on machines sharing a Redis instance.
package lock

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrWorkspaceBusy is returned in reject mode when another run holds the
// workspace.
var ErrWorkspaceBusy = errors.New("workspace is busy: another generation is running")

// Unlock releases a held lock. It is safe to call more than once.
type Unlock func() error

// Locker acquires an exclusive lock for a key.
type Locker interface {
	Lock(ctx context.Context, key string) (Unlock, error)
}

// Mode selects what happens when the lock is already held.
type Mode int

const (
	// Reject fails immediately with ErrWorkspaceBusy.
	Reject Mode = iota
	// Wait queues until the lock is free or ctx ends.
	Wait
)

func (m Mode) String() string {
	if m == Wait {
		return "wait"
	}
	return "reject"
}

// ParseMode parses "reject" or "wait".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "reject":
		return Reject, nil
	case "wait":
		return Wait, nil
	default:
		return Reject, fmt.Errorf("unknown lock mode %q (want reject or wait)", s)
	}
}

func busy(key string) error {
	return fmt.Errorf("%w (%s)", ErrWorkspaceBusy, key)
}
