package kernel

import "testing"

func TestForkWait(t *testing.T) {
	k, ctx := newTestKernel(t)

	done := make(chan struct{})
	var gotPid, gotStatus int32

	k.UserInit(func(kk *Kernel, th *Thread) {
		childPid := kk.Fork(th, func(kk2 *Kernel, child *Thread) {
			kk2.Exit(child, 9)
		})
		if childPid < 0 {
			t.Errorf("Fork failed")
		} else {
			pid := kk.Wait(th, func(status int32) error {
				gotStatus = status
				return nil
			})
			gotPid = pid
		}
		close(done)
		// init never exits; idle so the goroutine just blocks once the
		// test's scheduler context is cancelled.
		for {
			kk.Yield(th)
		}
	})

	waitOrTimeout(t, ctx, done)
	if gotStatus != 9 {
		t.Errorf("child exit status = %d, want 9", gotStatus)
	}
	if gotPid <= 0 {
		t.Errorf("Wait returned pid %d, want > 0", gotPid)
	}
}

func TestWaitReturnsMinusOneWithNoChildren(t *testing.T) {
	k, ctx := newTestKernel(t)

	done := make(chan struct{})
	var result int32

	k.UserInit(func(kk *Kernel, th *Thread) {
		result = kk.Wait(th, nil)
		close(done)
		for {
			kk.Yield(th)
		}
	})

	waitOrTimeout(t, ctx, done)
	if result != -1 {
		t.Errorf("Wait with no children = %d, want -1", result)
	}
}

func TestExitReparentsOrphansToInit(t *testing.T) {
	k, ctx := newTestKernel(t)

	grandchildReparented := make(chan struct{})

	k.UserInit(func(kk *Kernel, th *Thread) {
		kk.Fork(th, func(kk2 *Kernel, mid *Thread) {
			kk2.Fork(mid, func(kk3 *Kernel, grand *Thread) {
				// Park briefly so the parent (mid) can exit first and
				// orphan this process to init.
				for i := 0; i < 5; i++ {
					kk3.Yield(grand)
				}
				kk3.waitLock.Lock(grand.tracker())
				reparented := grand.proc.parent == kk3.initProc
				kk3.waitLock.Unlock(grand.tracker())
				if reparented {
					close(grandchildReparented)
				}
				kk3.Exit(grand, 0)
			})
			kk2.Exit(mid, 0)
		})

		// Reap every zombie child (mid, then grand once reparented)
		// without ever letting init itself exit.
		for {
			if kk.Wait(th, nil) < 0 {
				kk.Yield(th)
			}
		}
	})

	waitOrTimeout(t, ctx, grandchildReparented)
}
