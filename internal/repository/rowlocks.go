package repository

import (
	"context"
	"sync"
)

// RowLocks hands out one exclusive, context-aware lock per key. Entries are
// dropped once nobody holds or waits on them.
type RowLocks struct {
	mu   sync.Mutex
	rows map[string]*rowLock
}

type rowLock struct {
	sem  chan struct{}
	refs int
}

// NewRowLocks returns an empty lock table
func NewRowLocks() *RowLocks {
	return &RowLocks{rows: make(map[string]*rowLock)}
}

// Acquire blocks until key is free or ctx is done
func (l *RowLocks) Acquire(ctx context.Context, key string) error {
	l.mu.Lock()
	rl, ok := l.rows[key]
	if !ok {
		rl = &rowLock{sem: make(chan struct{}, 1)}
		l.rows[key] = rl
	}
	rl.refs++
	l.mu.Unlock()

	select {
	case rl.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		l.mu.Lock()
		l.unref(key, rl)
		l.mu.Unlock()
		return ctx.Err()
	}
}

// Release frees key. Releasing a key nobody holds is a no-op.
func (l *RowLocks) Release(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rl, ok := l.rows[key]
	if !ok {
		return
	}
	<-rl.sem
	l.unref(key, rl)
}

// unref must be called with l.mu held
func (l *RowLocks) unref(key string, rl *rowLock) {
	rl.refs--
	if rl.refs == 0 {
		delete(l.rows, key)
	}
}

// AuctionKey and UserKey name the lockable rows
func AuctionKey(id string) string { return "auction:" + id }
func UserKey(id string) string    { return "user:" + id }
