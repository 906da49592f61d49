package sync

import (
	"fridayos/kernel/cpu"

	xcpu "golang.org/x/sys/cpu"
)

var (
	// The following functions are mocked by tests and are automatically
	// inlined by the compiler.
	privilegeLevelFn    = cpu.PrivilegeLevel
	interruptsEnabledFn = cpu.InterruptsEnabled
	disableInterruptsFn = cpu.DisableInterrupts
	enableInterruptsFn  = cpu.EnableInterrupts
)

// saveAndDisableInterrupts clears the interrupt flag and reports whether it
// was set. The flag can only be changed at privilege level 0; when the code
// runs as a user-space process (tests, the boot simulator) it is left as is
// and the returned state is always false.
func saveAndDisableInterrupts() InterruptState {
	if privilegeLevelFn() != 0 {
		return false
	}

	state := InterruptState(interruptsEnabledFn())
	disableInterruptsFn()
	return state
}

func restoreInterrupts(state InterruptState) {
	if state {
		enableInterruptsFn()
	}
}

// InterruptState captures whether interrupts were enabled before a critical
// section was entered.
type InterruptState bool

// IRQSpinlock is a spinlock that also disables interrupts for as long as it is
// held. It must be used for any state that interrupt handlers can touch;
// otherwise a handler that fires while the lock is held would spin forever.
type IRQSpinlock struct {
	lock Spinlock
	_    xcpu.CacheLinePad
}

// Acquire disables interrupts, acquires the lock and returns the interrupt
// state that was active before the call. The returned value must be passed
// to Release:
//
//	state := l.Acquire()
//	defer l.Release(state)
func (l *IRQSpinlock) Acquire() InterruptState {
	state := saveAndDisableInterrupts()
	l.lock.Acquire()
	return state
}

// Release relinquishes the lock and re-enables interrupts if they were
// enabled when the matching Acquire call was made.
func (l *IRQSpinlock) Release(state InterruptState) {
	l.lock.Release()
	restoreInterrupts(state)
}

// WithoutInterrupts runs fn with interrupts disabled and restores the previous
// interrupt state once fn returns or panics.
func WithoutInterrupts(fn func()) {
	state := saveAndDisableInterrupts()
	defer restoreInterrupts(state)

	fn()
}
