package kernel

import "testing"

func TestKthreadCreateJoin(t *testing.T) {
	k, ctx := newTestKernel(t)

	done := make(chan struct{})
	var gotStatus int32
	var joinErr int32

	k.UserInit(func(kk *Kernel, th *Thread) {
		tid := kk.ThreadCreate(th, 0, 0, func(kk2 *Kernel, kt *Thread) {
			kk2.KthreadExit(kt, 42)
		})
		if tid < 0 {
			t.Errorf("ThreadCreate failed")
		} else {
			joinErr = kk.ThreadJoin(th, tid, &gotStatus)
		}
		close(done)
		for {
			kk.Yield(th)
		}
	})

	waitOrTimeout(t, ctx, done)
	if joinErr != 0 {
		t.Fatalf("ThreadJoin returned %d, want 0", joinErr)
	}
	if gotStatus != 42 {
		t.Errorf("joined thread status = %d, want 42", gotStatus)
	}
}

func TestKthreadJoinRejectsSelf(t *testing.T) {
	k, ctx := newTestKernel(t)

	done := make(chan struct{})
	var result int32

	k.UserInit(func(kk *Kernel, th *Thread) {
		result = kk.ThreadJoin(th, th.ID(), nil)
		close(done)
		for {
			kk.Yield(th)
		}
	})

	waitOrTimeout(t, ctx, done)
	if result != -1 {
		t.Errorf("self-join returned %d, want -1", result)
	}
}

func TestKthreadJoinUnknownTidFails(t *testing.T) {
	k, ctx := newTestKernel(t)

	done := make(chan struct{})
	var result int32

	k.UserInit(func(kk *Kernel, th *Thread) {
		result = kk.ThreadJoin(th, 999999, nil)
		close(done)
		for {
			kk.Yield(th)
		}
	})

	waitOrTimeout(t, ctx, done)
	if result != -1 {
		t.Errorf("join of unknown tid returned %d, want -1", result)
	}
}

func TestExitWaitsForAllThreads(t *testing.T) {
	k, ctx := newTestKernel(t)

	done := make(chan struct{})
	var childStatus int32

	k.UserInit(func(kk *Kernel, th *Thread) {
		kk.Fork(th, func(kk2 *Kernel, main *Thread) {
			kk2.ThreadCreate(main, 0, 0, func(kk3 *Kernel, kt *Thread) {
				for i := 0; i < 5; i++ {
					kk3.Yield(kt)
				}
				kk3.KthreadExit(kt, 1)
			})
			// Exiting main thread must wait for the sibling kthread to
			// finish before the whole process becomes a zombie; Exit's
			// own Yield loop gives the scheduler a chance to run it.
			kk2.Exit(main, 3)
		})

		pid := kk.Wait(th, func(status int32) error {
			childStatus = status
			return nil
		})
		if pid < 0 {
			t.Errorf("Wait failed")
		}
		close(done)
		for {
			kk.Yield(th)
		}
	})

	waitOrTimeout(t, ctx, done)
	if childStatus != 3 {
		t.Errorf("child process exit status = %d, want 3", childStatus)
	}
}
