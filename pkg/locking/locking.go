// Package locking implements a runtime lock-order validator, in the
// spirit of gVisor's generated MutexClass wrappers (see
// pkg/sentry/kernel/thread_group_timer_mutex.go for the shape this is
// grounded on) but written from scratch: the call sites this is modeled
// on were generated from a lock-order annotation that isn't itself part
// of this package.
//
// The kernel core's lock order is:
//
//	wait_lock > join_lock > proc.lock > thread.lock > semaphore_table.lock > sleep-lock
//
// Each Class below is registered with its rank in that order; acquiring
// a lower-ranked class while a higher-ranked one is already held on the
// same goroutine panics immediately, directly implementing Testable
// Property 6 ("no code path acquires a lock lower in the order before a
// higher one").
package locking

import (
	"fmt"
	"sync"
)

// Rank orders lock classes from outermost to innermost. Lower values must
// be acquired before higher values.
type Rank int

const (
	RankWait Rank = iota
	RankJoin
	RankProc
	RankThread
	RankSemTable
	RankSleepLock
)

func (r Rank) String() string {
	switch r {
	case RankWait:
		return "wait_lock"
	case RankJoin:
		return "join_lock"
	case RankProc:
		return "proc.lock"
	case RankThread:
		return "thread.lock"
	case RankSemTable:
		return "semaphore_table.lock"
	case RankSleepLock:
		return "sleep-lock"
	default:
		return fmt.Sprintf("Rank(%d)", int(r))
	}
}

// Tracker tracks, per calling goroutine, the ranks currently acquired. The
// validator is necessarily best-effort about "per goroutine": it keys on
// goroutine identity obtained the cheap, standard way (a per-goroutine
// stack passed explicitly via a *Tracker), since Go provides no public
// goroutine-local storage.
type Tracker struct {
	mu    sync.Mutex
	stack []Rank
}

// NewTracker returns an empty lock-order tracker. One Tracker should be
// shared by everything a single logical "thread of control" might lock.
// In this module each simulated CPU owns one, used by whichever kernel
// Thread is dispatched on it; the clock goroutine and the boot path each
// have their own.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Acquire records that a lock of the given rank is about to be held.
// Panics if a lower-or-equal rank is already held deeper on the stack:
// out-of-order acquisition is a programmer error, not a recoverable
// condition.
func (t *Tracker) Acquire(r Rank) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.stack) > 0 {
		top := t.stack[len(t.stack)-1]
		if r <= top {
			panic(fmt.Sprintf("lock order violation: acquiring %s while holding %s", r, top))
		}
	}
	t.stack = append(t.stack, r)
}

// Release removes r from the stack, wherever it sits. Releases are not
// required to be LIFO: Sleep's discipline is acquire the inner proc.lock
// then release the caller's outer lock (wait_lock/join_lock) while
// proc.lock is still held, which is a legal non-LIFO release of a
// higher-ranked lock — only out-of-order *acquisition* is the
// programmer error this tracker exists to catch. Panics if r is not on
// the stack at all.
func (t *Tracker) Release(r Rank) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, held := range t.stack {
		if held == r {
			t.stack = append(t.stack[:i], t.stack[i+1:]...)
			return
		}
	}
	panic(fmt.Sprintf("lock order violation: releasing %s, not held", r))
}

// Holding reports whether r is anywhere on the tracker's current stack.
func (t *Tracker) Holding(r Rank) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, held := range t.stack {
		if held == r {
			return true
		}
	}
	return false
}

// Depth returns the number of locks currently held, used by Sched's
// "interrupt-disable depth equals 1" precondition check.
func (t *Tracker) Depth() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.stack)
}
