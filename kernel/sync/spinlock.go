// Package sync provides synchronization primitive implementations for spinlocks
// and interrupt-safe critical sections.
package sync

import "sync/atomic"

// spinAttemptsBeforeYielding is the number of failed acquire attempts after
// which Acquire invokes yieldFn (if set).
const spinAttemptsBeforeYielding = 128

var (
	// There is no scheduler to yield to; tests set this to runtime.Gosched.
	yieldFn func()
)

// Spinlock implements a lock where each task trying to acquire it busy-waits
// till the lock becomes available.
type Spinlock struct {
	state uint32
}

// Acquire blocks until the lock can be acquired by the currently active task.
// Any attempt to re-acquire a lock already held by the current task will cause
// a deadlock.
func (l *Spinlock) Acquire() {
	for attempts := 0; ; attempts++ {
		// Only attempt the (bus-locking) swap when the lock looks free
		if atomic.LoadUint32(&l.state) == 0 && l.TryToAcquire() {
			return
		}

		if attempts == spinAttemptsBeforeYielding {
			attempts = 0
			if yieldFn != nil {
				yieldFn()
			}
		}
	}
}

// TryToAcquire attempts to acquire the lock and returns true if the lock could
// be acquired or false otherwise.
func (l *Spinlock) TryToAcquire() bool {
	return atomic.SwapUint32(&l.state, 1) == 0
}

// Release relinquishes a held lock allowing other tasks to acquire it. Calling
// Release while the lock is free has no effect.
func (l *Spinlock) Release() {
	atomic.StoreUint32(&l.state, 0)
}
