// Package applock serializes work per key (an app id) across goroutines,
// and across processes when Redis is configured.
package applock

import (
	"context"
	"errors"
	"sync"
)

// ErrNotHeld is returned by an unlock whose lease expired or was taken over.
var ErrNotHeld = errors.New("applock: lock not held")

// Locker acquires an exclusive lock on key. Acquire blocks until the lock is
// granted or ctx is done. The returned func releases it.
type Locker interface {
	Acquire(ctx context.Context, key string) (unlock func() error, err error)
}

// Local is an in-process keyed mutex.
type Local struct {
	mu    sync.Mutex
	locks map[string]*localEntry
}

type localEntry struct {
	ch   chan struct{}
	refs int
}

func NewLocal() *Local {
	return &Local{locks: map[string]*localEntry{}}
}

func (l *Local) Acquire(ctx context.Context, key string) (func() error, error) {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &localEntry{ch: make(chan struct{}, 1)}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, e, false)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() error {
		once.Do(func() { l.release(key, e, true) })
		return nil
	}, nil
}

func (l *Local) release(key string, e *localEntry, held bool) {
	if held {
		<-e.ch
	}
	l.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
	l.mu.Unlock()
}
