package indexer

import "sync/atomic"

// IndexLock is a non-blocking flag guarding one index run at a time. Watch
// flushes and API jobs share it with Index.
type IndexLock struct {
	held atomic.Bool
}

// TryAcquire takes the lock if it is free and reports whether it did.
func (l *IndexLock) TryAcquire() bool {
	return l.held.CompareAndSwap(false, true)
}

// Release frees the lock. Only the holder may call it.
func (l *IndexLock) Release() {
	l.held.Store(false)
}

// Held reports whether a run is in progress.
func (l *IndexLock) Held() bool {
	return l.held.Load()
}
