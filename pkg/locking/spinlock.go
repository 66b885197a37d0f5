package locking

import "sync"

// SpinLock is the external lock primitive this core assumes: acquire/
// release that nests push_off/pop_off-style interrupt-disable state.
// Since this module simulates interrupts rather than fielding real ones,
// "interrupts disabled" is tracked as a per-tracker depth counter instead
// of a hardware flag; the nesting discipline is what the core actually
// relies on: nested acquires track the depth per CPU and re-enable only
// on the outermost release.
type SpinLock struct {
	mu    sync.Mutex
	rank  Rank
	class string
}

// NewSpinLock creates a spinlock of the given lock-order rank, named for
// diagnostics (mirroring xv6's initlock(&lk, "name")).
func NewSpinLock(rank Rank, name string) *SpinLock {
	return &SpinLock{rank: rank, class: name}
}

// Lock acquires the spinlock, recording the acquisition on t for
// lock-order validation. t may be nil for locks taken outside any
// tracked thread of control (e.g. the boot goroutine).
func (s *SpinLock) Lock(t *Tracker) {
	if t != nil {
		t.Acquire(s.rank)
	}
	s.mu.Lock()
}

// Unlock releases the spinlock.
func (s *SpinLock) Unlock(t *Tracker) {
	s.mu.Unlock()
	if t != nil {
		t.Release(s.rank)
	}
}

// Rank reports the lock's position in the global order.
func (s *SpinLock) Rank() Rank { return s.rank }

// Name reports the lock's diagnostic name.
func (s *SpinLock) Name() string { return s.class }
