package pipeline

import "sync/atomic"

// AnalysisLock provides non-blocking lock semantics using atomic operations.
// Servers hold it for the length of one analysis to refuse overlapping runs.
type AnalysisLock struct {
	state atomic.Int32 // 0 = unlocked, 1 = locked
}

// TryAcquire attempts to acquire the lock without blocking.
// Returns true if the lock was successfully acquired, false otherwise.
func (l *AnalysisLock) TryAcquire() bool {
	return l.state.CompareAndSwap(0, 1)
}

// Release releases the lock.
// Must only be called by the goroutine that successfully acquired the lock.
func (l *AnalysisLock) Release() {
	l.state.Store(0)
}

// Held reports whether an analysis currently holds the lock
func (l *AnalysisLock) Held() bool {
	return l.state.Load() == 1
}
