package indexer

import "sync/atomic"

// IndexLock is a non-blocking lock guarding a store against concurrent builds.
// A second IndexRepository call while one is running fails fast instead of
// queueing behind it.
type IndexLock struct {
	state atomic.Int32 // 0 = unlocked, 1 = locked
}

// TryAcquire attempts to acquire the lock without blocking.
func (l *IndexLock) TryAcquire() bool {
	return l.state.CompareAndSwap(0, 1)
}

// Release releases the lock.
// Must only be called by the goroutine that successfully acquired the lock.
func (l *IndexLock) Release() {
	l.state.Store(0)
}

// Held reports whether a build currently holds the lock
func (l *IndexLock) Held() bool {
	return l.state.Load() == 1
}

// Busy reports whether a build is currently running
func (idx *Indexer) Busy() bool {
	return idx.lock.Held()
}
