package kernel

import (
	"sync"

	"github.com/rv64kernel/core/pkg/locking"
)

// SemState is a binary semaphore descriptor's allocation state.
type SemState int

const (
	UnusedS SemState = iota
	UsedS
)

// rawLock is a plain mutex satisfying extLock without participating in
// the Tracker's lock-order validation: it stands in for a sleeplock's
// own private bookkeeping spinlock, which the documented global lock
// order does not name (that order covers semaphore_table.lock and the
// sleep-lock abstraction itself, not its internal implementation detail).
type rawLock struct{ mu sync.Mutex }

func (r *rawLock) Lock(*locking.Tracker)   { r.mu.Lock() }
func (r *rawLock) Unlock(*locking.Tracker) { r.mu.Unlock() }

// semaphore is a binary synchronization primitive: a sleep-lock plus a
// descriptor index and allocation state. Waiters block via
// Sleep/Wakeup rather than spinning, so a blocked BsemDown frees its CPU
// for other runnable threads exactly as acquiresleep does.
type semaphore struct {
	state      SemState // guarded by the owning SemTable's table lock
	descriptor int

	sl     *rawLock
	locked bool
}

// SemTable is the fixed pool of MAX_BSEM binary semaphore descriptors.
// tableLock sits at RankSemTable, strictly above the sleep-lock rank in
// the global lock order.
type SemTable struct {
	tableLock *locking.SpinLock
	sems      []*semaphore
}

func newSemTable(maxBsem int) *SemTable {
	t := &SemTable{
		tableLock: locking.NewSpinLock(locking.RankSemTable, "semaphore_table.lock"),
		sems:      make([]*semaphore, maxBsem),
	}
	for i := range t.sems {
		t.sems[i] = &semaphore{
			state:      UnusedS,
			descriptor: i,
			sl:         &rawLock{},
		}
	}
	return t
}

func (t *SemTable) inRange(d int32) bool {
	return d >= 0 && int(d) < len(t.sems)
}

// BsemAlloc returns the first UNUSEDS descriptor, or -1 if the pool is
// exhausted.
func (k *Kernel) BsemAlloc(t *Thread) int32 {
	tbl := k.semTable
	tr := t.tracker()
	tbl.tableLock.Lock(tr)
	defer tbl.tableLock.Unlock(tr)
	for _, s := range tbl.sems {
		if s.state == UnusedS {
			s.state = UsedS
			return int32(s.descriptor)
		}
	}
	return -1
}

// BsemFree returns descriptor d to UNUSEDS. Out-of-range descriptors are
// silent no-ops.
func (k *Kernel) BsemFree(t *Thread, d int32) {
	tbl := k.semTable
	tr := t.tracker()
	if !tbl.inRange(d) {
		return
	}
	tbl.tableLock.Lock(tr)
	tbl.sems[d].state = UnusedS
	tbl.tableLock.Unlock(tr)
}

// BsemDown blocks until descriptor d is available, then claims it
// (acquiresleep). Out-of-range or unallocated descriptors are silent
// no-ops.
func (k *Kernel) BsemDown(t *Thread, d int32) {
	tbl := k.semTable
	tr := t.tracker()
	if !tbl.inRange(d) {
		return
	}
	tbl.tableLock.Lock(tr)
	s := tbl.sems[d]
	if s.state != UsedS {
		tbl.tableLock.Unlock(tr)
		return
	}
	tbl.tableLock.Unlock(tr)

	s.sl.Lock(tr)
	for s.locked {
		k.Sleep(t, WaitChannel(s), s.sl)
	}
	s.locked = true
	s.sl.Unlock(tr)
}

// BsemUp releases descriptor d and wakes anything blocked on BsemDown
// (releasesleep). Out-of-range or unallocated descriptors are silent
// no-ops.
func (k *Kernel) BsemUp(t *Thread, d int32) {
	tbl := k.semTable
	tr := t.tracker()
	if !tbl.inRange(d) {
		return
	}
	tbl.tableLock.Lock(tr)
	s := tbl.sems[d]
	if s.state != UsedS {
		tbl.tableLock.Unlock(tr)
		return
	}
	tbl.tableLock.Unlock(tr)

	s.sl.Lock(tr)
	s.locked = false
	k.Wakeup(t, WaitChannel(s))
	s.sl.Unlock(tr)
}
