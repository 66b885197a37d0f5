package locking

import "testing"

func TestTrackerAcceptsIncreasingOrder(t *testing.T) {
	tr := NewTracker()
	tr.Acquire(RankWait)
	tr.Acquire(RankProc)
	tr.Acquire(RankThread)
	if tr.Depth() != 3 {
		t.Fatalf("depth = %d, want 3", tr.Depth())
	}
	tr.Release(RankThread)
	tr.Release(RankProc)
	tr.Release(RankWait)
	if tr.Depth() != 0 {
		t.Fatalf("depth = %d, want 0", tr.Depth())
	}
}

func TestTrackerPanicsOnOutOfOrderAcquire(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic acquiring proc.lock while holding thread.lock")
		}
	}()
	tr := NewTracker()
	tr.Acquire(RankThread)
	tr.Acquire(RankProc)
}

func TestTrackerAllowsNonLIFORelease(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("unexpected panic releasing out of LIFO order: %v", r)
		}
	}()
	tr := NewTracker()
	tr.Acquire(RankWait)
	tr.Acquire(RankProc)
	tr.Release(RankWait)
	if tr.Holding(RankWait) || !tr.Holding(RankProc) || tr.Depth() != 1 {
		t.Fatalf("after releasing wait_lock: holding wait=%v proc=%v depth=%d, want false true 1",
			tr.Holding(RankWait), tr.Holding(RankProc), tr.Depth())
	}
}

func TestSpinLockRoundTrip(t *testing.T) {
	tr := NewTracker()
	s := NewSpinLock(RankProc, "proc")
	s.Lock(tr)
	if !tr.Holding(RankProc) {
		t.Fatal("tracker should report RankProc held")
	}
	s.Unlock(tr)
	if tr.Holding(RankProc) {
		t.Fatal("tracker should not report RankProc held after Unlock")
	}
}

func TestSpinLockWithNilTracker(t *testing.T) {
	s := NewSpinLock(RankSemTable, "semaphore_table.lock")
	s.Lock(nil)
	s.Unlock(nil)
}
