package kernel

import (
	"reflect"
	"testing"

	"github.com/mohae/deepcopy"
)

const testSigUsr = 10

func TestSigActionRejectsSigkillAndSigstop(t *testing.T) {
	k, ctx := newTestKernel(t)
	done := make(chan struct{})
	var killResult, stopResult int32

	k.UserInit(func(kk *Kernel, th *Thread) {
		killResult = kk.SigAction(th, SigKill, &SigActionArg{Handler: KernelHandler(HandlerIgnore)}, nil)
		stopResult = kk.SigAction(th, SigStop, &SigActionArg{Handler: KernelHandler(HandlerIgnore)}, nil)
		close(done)
		for {
			kk.Yield(th)
		}
	})

	waitOrTimeout(t, ctx, done)
	if killResult != -1 {
		t.Errorf("SigAction(SIGKILL) = %d, want -1", killResult)
	}
	if stopResult != -1 {
		t.Errorf("SigAction(SIGSTOP) = %d, want -1", stopResult)
	}
}

func TestSigActionRoundTripsOldValue(t *testing.T) {
	k, ctx := newTestKernel(t)
	done := make(chan struct{})
	var firstOld, secondOld SigActionArg
	var ok bool
	var addr uint64

	k.UserInit(func(kk *Kernel, th *Thread) {
		addr = RegisterUserHandler(func(*Thread, int) {})
		kk.SigAction(th, testSigUsr, &SigActionArg{Handler: UserHandler(addr), Mask: 0x4}, &firstOld)
		kk.SigAction(th, testSigUsr, &firstOld, &secondOld)
		ok = true
		close(done)
		for {
			kk.Yield(th)
		}
	})

	waitOrTimeout(t, ctx, done)
	if !ok {
		t.Fatal("scenario did not complete")
	}
	if secondOld.Handler != UserHandler(addr) {
		t.Errorf("second SigAction's oldOut handler = %+v, want %+v", secondOld.Handler, UserHandler(addr))
	}
	if secondOld.Mask != 0x4 {
		t.Errorf("second SigAction's oldOut mask = %#x, want 0x4", secondOld.Mask)
	}
}

func TestKillSetsPendingAndDeliversKernelHandler(t *testing.T) {
	k, ctx := newTestKernel(t)
	done := make(chan struct{})
	var stopped, resumed bool

	k.UserInit(func(kk *Kernel, th *Thread) {
		kk.Kill(th, th.Process().PID(), SigStop)
		kk.CheckPendingSignals(th)
		stopped = th.Process().isStopped

		kk.Kill(th, th.Process().PID(), SigCont)
		kk.CheckPendingSignals(th)
		resumed = !th.Process().isStopped

		close(done)
		for {
			kk.Yield(th)
		}
	})

	waitOrTimeout(t, ctx, done)
	if !stopped {
		t.Error("process should be stopped after SIGSTOP delivery")
	}
	if !resumed {
		t.Error("process should no longer be stopped after SIGCONT delivery")
	}
}

func TestUserSignalHandlerRunsAndSigreturns(t *testing.T) {
	k, ctx := newTestKernel(t)
	done := make(chan struct{})
	handlerRan := make(chan int, 1)

	addr := RegisterUserHandler(func(t *Thread, signum int) {
		handlerRan <- signum
	})

	var before Trapframe

	k.UserInit(func(kk *Kernel, th *Thread) {
		kk.SigAction(th, testSigUsr, &SigActionArg{Handler: UserHandler(addr)}, nil)
		// Snapshot every register, not just Epc, so the sigreturn check
		// below catches a handler that clobbers any saved field.
		before = *deepcopy.Copy(th.Trapframe()).(*Trapframe)

		kk.Kill(th, th.Process().PID(), testSigUsr)
		kk.CheckPendingSignals(th)

		if !reflect.DeepEqual(before, *th.Trapframe()) {
			t.Errorf("trapframe not fully restored after sigreturn: got %+v, want %+v", *th.Trapframe(), before)
		}
		close(done)
		for {
			kk.Yield(th)
		}
	})

	waitOrTimeout(t, ctx, done)
	select {
	case signum := <-handlerRan:
		if signum != testSigUsr {
			t.Errorf("handler ran for signal %d, want %d", signum, testSigUsr)
		}
	default:
		t.Error("user handler never ran")
	}
}

func TestSigProcMaskBlocksDelivery(t *testing.T) {
	k, ctx := newTestKernel(t)
	done := make(chan struct{})
	handlerRan := make(chan int, 1)

	addr := RegisterUserHandler(func(t *Thread, signum int) {
		handlerRan <- signum
	})

	k.UserInit(func(kk *Kernel, th *Thread) {
		kk.SigAction(th, testSigUsr, &SigActionArg{Handler: UserHandler(addr)}, nil)
		kk.SigProcMask(th, 1<<uint(testSigUsr))
		kk.Kill(th, th.Process().PID(), testSigUsr)
		kk.CheckPendingSignals(th)
		close(done)
		for {
			kk.Yield(th)
		}
	})

	waitOrTimeout(t, ctx, done)
	select {
	case <-handlerRan:
		t.Error("handler ran despite signal being masked")
	default:
	}
}
