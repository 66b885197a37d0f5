package kernel

import "github.com/rv64kernel/core/pkg/locking"

// extLock is the shape of the "external_lock" parameter sleep() takes in
// the original: anything built on locking.SpinLock (wait_lock, join_lock,
// the tick lock, ...).
type extLock interface {
	Lock(*locking.Tracker)
	Unlock(*locking.Tracker)
}

// Sleep atomically releases lk and sleeps on ch, reacquiring lk when
// awakened. Precondition: caller holds lk.
func (k *Kernel) Sleep(t *Thread, ch WaitChannel, lk extLock) {
	p := t.proc
	tr := t.tracker()

	p.lock.Lock(tr) // DOC: sleeplock1
	lk.Unlock(tr)

	t.chanKey = ch
	t.state = Sleeping
	k.Sched(t)

	t.chanKey = nil

	p.lock.Unlock(tr)
	lk.Lock(tr)
}

// Wakeup wakes every thread sleeping on ch, except the caller. Must not
// be called while holding any process lock.
func (k *Kernel) Wakeup(t *Thread, ch WaitChannel) {
	tr := t.tracker()
	for _, p := range k.procs {
		p.lock.Lock(tr)
		for _, th := range p.threads {
			if th == t {
				continue
			}
			if th.state == Sleeping && th.chanKey == ch {
				th.state = Runnable
			}
		}
		p.lock.Unlock(tr)
	}
}
