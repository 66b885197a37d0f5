package kernel

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/rv64kernel/core/pkg/locking"
)

// tickChanKey is the sentinel wait-channel every sys_sleep(n) waiter and
// the clock's own interrupt handler rendezvous on (ticks.chanKey in the
// original's clockintr).
var tickChanKey = WaitChannel(&struct{ _ byte }{})

// Clock is the tick generator backing sys_sleep/sys_uptime. A single
// simulated timer interrupt, paced by a token-bucket limiter instead of
// a real hardware timer, increments the shared counter and wakes
// everyone sleeping on it. tickslock is its own private lock, independent
// of the documented six-lock global order (wait_lock/join_lock/proc/
// thread/semaphore_table/sleep-lock); the clock's tickslock mirrors
// xv6's own tickslock, which likewise sits outside that hierarchy.
type Clock struct {
	lock    *rawLock
	mu      sync.Mutex // guards ticks directly, so Uptime needn't join the sleep loop's lock
	ticks   int64
	tracker *locking.Tracker // dedicated to the clock goroutine's own thread of control

	limiter *rate.Limiter
}

func newClock(tickHz int) *Clock {
	if tickHz <= 0 {
		tickHz = 1
	}
	return &Clock{
		lock:    &rawLock{},
		tracker: locking.NewTracker(),
		limiter: rate.NewLimiter(rate.Limit(tickHz), 1),
	}
}

// Run drives the clock until ctx is cancelled, one simulated timer
// interrupt per tick period (clockintr). Intended to run in its own
// goroutine, parallel to RunAllCPUs.
func (k *Kernel) Run(ctx context.Context) error {
	c := k.clock
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil
		}
		c.mu.Lock()
		c.ticks++
		c.mu.Unlock()

		k.wakeupTick(c.tracker)

		select {
		case <-ctx.Done():
			return nil
		default:
		}
	}
}

// wakeupTick wakes every thread parked on the tick channel. It does not
// use Kernel.Wakeup's thread-exclusion argument since the clock
// interrupt has no "calling thread" of its own.
func (k *Kernel) wakeupTick(tr *locking.Tracker) {
	for _, p := range k.procs {
		p.lock.Lock(tr)
		for _, th := range p.threads {
			if th.state == Sleeping && th.chanKey == tickChanKey {
				th.state = Runnable
			}
		}
		p.lock.Unlock(tr)
	}
}

// Uptime returns the number of ticks since boot (sys_uptime).
func (k *Kernel) Uptime() int64 {
	c := k.clock
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ticks
}

// SleepTicks blocks the calling thread for n clock ticks (sys_sleep).
// n <= 0 returns immediately.
func (k *Kernel) SleepTicks(t *Thread, n int64) {
	if n <= 0 {
		return
	}
	c := k.clock
	tr := t.tracker()

	c.lock.Lock(tr)
	target := c.readTicksLocked() + n
	for c.readTicksLocked() < target {
		if t.killed {
			break
		}
		k.Sleep(t, tickChanKey, c.lock)
	}
	c.lock.Unlock(tr)
}

func (c *Clock) readTicksLocked() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ticks
}
