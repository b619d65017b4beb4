// Package locking serializes work per aggregate id inside one process.
package locking

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/casehub/backend/internal/domain/shared"
	"github.com/google/uuid"
)

type keyedEntry struct {
	ch   chan struct{}
	refs int
}

// KeyedMutex hands out one lock per key. Entries are reference counted and
// dropped when the last holder or waiter leaves, so memory stays bounded by
// the number of keys in use.
type KeyedMutex struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*keyedEntry
	timeout time.Duration
}

// Option configures a KeyedMutex
type Option func(*KeyedMutex)

// WithWaitTimeout bounds how long Lock waits for a held key. A wait that
// runs out fails with shared.ErrConcurrentModification.
func WithWaitTimeout(d time.Duration) Option {
	return func(m *KeyedMutex) {
		m.timeout = d
	}
}

// NewKeyedMutex creates an empty KeyedMutex
func NewKeyedMutex(opts ...Option) *KeyedMutex {
	m := &KeyedMutex{entries: make(map[uuid.UUID]*keyedEntry)}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Lock blocks until the lock for key is held or ctx is done. The returned
// function releases the lock and must be called exactly once.
func (m *KeyedMutex) Lock(ctx context.Context, key uuid.UUID) (func(), error) {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	m.mu.Lock()
	e, ok := m.entries[key]
	if !ok {
		e = &keyedEntry{ch: make(chan struct{}, 1)}
		m.entries[key] = e
	}
	e.refs++
	m.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		m.release(key, e)
		if m.timeout > 0 && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, shared.ErrConcurrentModification
		}
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			m.release(key, e)
		})
	}, nil
}

func (m *KeyedMutex) release(key uuid.UUID, e *keyedEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(m.entries, key)
	}
}

// Len returns the number of keys currently locked or awaited
func (m *KeyedMutex) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
