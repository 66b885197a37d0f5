package kernel

import (
	"bytes"
	"encoding/binary"
	"sync"

	"github.com/rv64kernel/core/pkg/klog"
)

// UserHandlerFunc stands in for the guest machine instructions at a user
// handler's address: since this module has no real trampoline executing
// arbitrary guest code, a registered Go closure plays the role of "the
// handler runs". handleUserSignal calls it synchronously, then performs
// the sigreturn the stub would otherwise trigger asynchronously from user
// space (see DESIGN.md).
type UserHandlerFunc func(t *Thread, signum int)

var (
	userHandlersMu sync.Mutex
	userHandlers   = map[uint64]UserHandlerFunc{}
	nextUserAddr   uint64 = 1 << 20 // stay well clear of the sentinel range
)

// RegisterUserHandler allocates a fresh guest "address" for fn and returns
// it, suitable for passing to SigAction as the new handler address.
func RegisterUserHandler(fn UserHandlerFunc) uint64 {
	userHandlersMu.Lock()
	defer userHandlersMu.Unlock()
	addr := nextUserAddr
	nextUserAddr++
	userHandlers[addr] = fn
	return addr
}

func lookupUserHandler(addr uint64) (UserHandlerFunc, bool) {
	userHandlersMu.Lock()
	defer userHandlersMu.Unlock()
	fn, ok := userHandlers[addr]
	return fn, ok
}

// validSigMask rejects any mask with the SIGKILL or SIGSTOP bits set
// (is_valid_sigmask), implementing the invariant that those two signals
// may never be blockable.
func validSigMask(mask uint32) bool {
	return mask&((1<<uint(SigKill))|(1<<uint(SigStop))) == 0
}

// SigProcMask atomically swaps the process's signal mask, returning the
// previous value. A mask with the SIGKILL or SIGSTOP bit set is rejected:
// the process mask is left unchanged and its current value is returned.
func (k *Kernel) SigProcMask(t *Thread, mask uint32) uint32 {
	p := t.proc
	tr := t.tracker()
	p.lock.Lock(tr)
	defer p.lock.Unlock(tr)
	old := p.sigMask
	if validSigMask(mask) {
		p.sigMask = mask
	}
	return old
}

// SigAction installs newAction for signum, returning the previous
// (handler, mask) via oldOut if non-nil. Rejects SIGKILL/SIGSTOP
// registration and masks that include either bit.
func (k *Kernel) SigAction(t *Thread, signum int, newAction *SigActionArg, oldOut *SigActionArg) int32 {
	if signum < 0 || signum >= NSignals {
		return -1
	}
	p := t.proc
	tr := t.tracker()
	p.lock.Lock(tr)
	defer p.lock.Unlock(tr)

	if oldOut != nil {
		oldOut.Handler = p.handlers[signum]
		oldOut.Mask = p.handlerMasks[signum]
	}

	if newAction == nil {
		return -1
	}
	if signum == SigKill || signum == SigStop {
		return -1
	}
	if !validSigMask(newAction.Mask) {
		return -1
	}

	if kh, ok := sentinelHandler(newAction.Handler.UserAddr); ok && !newAction.Handler.Kernel {
		p.handlers[signum] = kh
	} else {
		p.handlers[signum] = newAction.Handler
	}
	p.handlerMasks[signum] = newAction.Mask
	return 0
}

// SigActionArg bundles a handler and its deferred mask, the Go shape of
// the original's "struct sigaction" copy in/out payload.
type SigActionArg struct {
	Handler SignalHandler
	Mask    uint32
}

// Kill sets bit signum in pid's pending-signal set. Returns -1 if signum
// is out of range or pid does not exist.
func (k *Kernel) Kill(caller *Thread, pid int32, signum int) int32 {
	if signum < 0 || signum >= NSignals {
		return -1
	}
	tr := caller.tracker()
	for _, p := range k.procs {
		p.lock.Lock(tr)
		if p.state != ProcUnused && p.pid == pid {
			p.pending |= 1 << uint(signum)
			p.lock.Unlock(tr)
			return 0
		}
		p.lock.Unlock(tr)
	}
	return -1
}

// CheckPendingSignals is the delivery pipeline entered on every return
// path from kernel to user (usertrapret's check_pending_signals). It is
// invoked by the Syscalls wrapper after every non-terminating syscall,
// standing in for the user-space return point.
func (k *Kernel) CheckPendingSignals(t *Thread) {
	p := t.proc
	tr := t.tracker()

	p.lock.Lock(tr)
	if p.isHandlingSignal {
		p.lock.Unlock(tr)
		return
	}
	for signum := 0; signum < NSignals; signum++ {
		blocked := p.sigMask&(1<<uint(signum)) != 0
		set := p.pending&(1<<uint(signum)) != 0
		if !blocked && set {
			k.deliverSignal(t, signum)
		}
	}
	p.lock.Unlock(tr)
}

// deliverSignal dispatches signum per its handler class. Caller must hold
// p.lock.
func (k *Kernel) deliverSignal(t *Thread, signum int) {
	p := t.proc
	h := p.handlers[signum]
	if h.Kernel {
		k.deliverKernelSignal(t, signum, h)
		return
	}
	k.deliverUserSignal(t, signum, h)
}

// deliverKernelSignal runs a kernel-implemented default handler inline
// (handle_kernel_signal). Caller must hold p.lock.
func (k *Kernel) deliverKernelSignal(t *Thread, signum int, h SignalHandler) {
	p := t.proc
	p.sigMaskBackup = p.sigMask
	p.sigMask = p.handlerMasks[signum]
	p.isHandlingSignal = true

	switch h.Kind {
	case HandlerKill:
		p.killed = true
		for _, sib := range p.threads {
			if sib.state == Sleeping {
				sib.state = Runnable
				break
			}
		}
	case HandlerStop:
		p.isStopped = true
	case HandlerCont:
		p.isStopped = false
	case HandlerIgnore:
		// no-op
	}

	p.sigMask = p.sigMaskBackup
	p.isHandlingSignal = false
	p.pending &^= 1 << uint(signum) // clear the bit rather than leaving it set
}

// deliverUserSignal simulates handing control to a user-space handler:
// back up the trapframe, write the stack-rewrite records via the
// process's AddressSpace, invoke the registered Go callback standing in
// for the handler's guest instructions, then perform the sigreturn the
// stub would otherwise trigger. Caller must hold p.lock.
func (k *Kernel) deliverUserSignal(t *Thread, signum int, h SignalHandler) {
	p := t.proc
	tf := t.trapframe

	*p.trapframeBackup = *tf
	p.sigMaskBackup = p.sigMask
	p.sigMask = p.handlerMasks[signum]
	p.isHandlingSignal = true

	if p.addrSpace != nil {
		tf.Sp -= trapframeSize
		var buf bytes.Buffer
		_ = binary.Write(&buf, binary.LittleEndian, p.trapframeBackup)
		_ = p.addrSpace.CopyOut(tf.Sp, buf.Bytes()) // best-effort, as copyout is in the original
	}

	savedEpc := tf.Epc
	tf.Epc = h.UserAddr
	tf.Ra = tf.Sp
	tf.A0 = uint64(signum)
	p.pending &^= 1 << uint(signum)

	klog.Proc(p.pid).Debugf("delivering user signal %d", signum)

	if fn, ok := lookupUserHandler(h.UserAddr); ok {
		p.lock.Unlock(t.tracker())
		fn(t, signum)
		p.lock.Lock(t.tracker())
		k.sigReturnLocked(t)
	} else {
		// No registered guest code behind this address: restore as if
		// the handler returned immediately, matching a no-op handler.
		tf.Epc = savedEpc
		k.sigReturnLocked(t)
	}
}

// SigReturn restores the saved trapframe and signal mask (sys_sigret).
func (k *Kernel) SigReturn(t *Thread) {
	p := t.proc
	tr := t.tracker()
	p.lock.Lock(tr)
	k.sigReturnLocked(t)
	p.lock.Unlock(tr)
}

func (k *Kernel) sigReturnLocked(t *Thread) {
	p := t.proc
	*t.trapframe = *p.trapframeBackup
	p.sigMask = p.sigMaskBackup
	p.isHandlingSignal = false
}
