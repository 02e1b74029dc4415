// Package loadlock provides the single-flight gate that keeps at most one
// track load in progress.
package loadlock

import (
	"context"
	"sync"
	"sync/atomic"
)

// Lock is a non-blocking two-state gate (Free, Busy). A caller that fails
// to acquire it must give up rather than wait; pending loads are never queued.
type Lock struct {
	busy atomic.Bool
}

// New returns a free lock.
func New() *Lock {
	return &Lock{}
}

// Ticket is held by the caller that made the lock Busy. Only the ticket
// can free the lock again.
type Ticket struct {
	lock *Lock
	once sync.Once
}

// TryAcquire marks the lock Busy and returns a ticket, or returns false if
// a load is already in flight.
func (l *Lock) TryAcquire() (*Ticket, bool) {
	if !l.busy.CompareAndSwap(false, true) {
		return nil, false
	}
	return &Ticket{lock: l}, true
}

// Busy reports whether a load is in flight.
func (l *Lock) Busy() bool {
	return l.busy.Load()
}

// Release frees the lock. Releasing twice, or a nil ticket, is a no-op.
func (t *Ticket) Release() {
	if t == nil {
		return
	}
	t.once.Do(func() {
		t.lock.busy.Store(false)
	})
}

// Do runs fn while holding the lock. If the lock is Busy, fn is not run and
// Do returns ran=false with a nil error. The lock is released on every exit
// path of fn, including a panic.
func (l *Lock) Do(ctx context.Context, fn func(ctx context.Context) error) (ran bool, err error) {
	ticket, ok := l.TryAcquire()
	if !ok {
		return false, nil
	}
	defer ticket.Release()
	return true, fn(ctx)
}
