package kernel

import (
	"github.com/rv64kernel/core/pkg/klog"
	"github.com/rv64kernel/core/pkg/locking"
)

// Process represents an address space, an open-file table, a signal
// configuration, and a set of threads.
type Process struct {
	lock *locking.SpinLock // proc.lock, rank RankProc
	kern *Kernel
	slot int

	state  ProcState
	killed bool
	pid    int32

	parent *Process // guarded by kern.waitLock, not lock

	size      int64
	addrSpace AddressSpace
	files     [NOFILE]OpenFile
	cwd       WorkingDirectory

	threads []*Thread

	name   string
	xstate int32

	sigMask uint32
	pending uint32
	handlers      [NSignals]SignalHandler
	handlerMasks  [NSignals]uint32

	trapframes      []Trapframe
	trapframeBackup *Trapframe

	isStopped        bool
	isHandlingSignal bool
	sigMaskBackup    uint32
}

func newProcess(k *Kernel, slot int, nthread int) *Process {
	p := &Process{
		lock: locking.NewSpinLock(locking.RankProc, "proc"),
		kern: k,
		slot: slot,
	}
	p.threads = make([]*Thread, nthread)
	for i := range p.threads {
		p.threads[i] = newThread(p, i)
	}
	return p
}

// PID returns the process's identifier.
func (p *Process) PID() int32 { return p.pid }

// State returns the process's lifecycle state.
func (p *Process) State() ProcState { return p.state }

// Name returns the process's debug name.
func (p *Process) Name() string { return p.name }

// Killed reports whether the process has been marked killed.
func (p *Process) Killed() bool { return p.killed }

// Threads returns the process's thread slots (including UNUSEDT ones).
func (p *Process) Threads() []*Thread { return p.threads }

// MainThread returns the process's permanent thread 0.
func (p *Process) MainThread() *Thread { return p.threads[0] }

// installDefaultHandlers wires def_handlers[] for a freshly allocated (or
// freed) process: SIGKILL/SIGSTOP/SIGCONT get their named kernel
// defaults, SIG_DFL/SIG_IGN fall back to kill/ignore, everything else
// kills, matching allocproc's handler-table initialization loop exactly.
func (p *Process) installDefaultHandlers() {
	for i := 0; i < NSignals; i++ {
		switch i {
		case SigDFL:
			p.handlers[i] = KernelHandler(HandlerKill)
		case SigIGN:
			p.handlers[i] = KernelHandler(HandlerIgnore)
		case SigKill:
			p.handlers[i] = KernelHandler(HandlerKill)
		case SigStop:
			p.handlers[i] = KernelHandler(HandlerStop)
		case SigCont:
			p.handlers[i] = KernelHandler(HandlerCont)
		default:
			p.handlers[i] = KernelHandler(HandlerKill)
		}
		p.handlerMasks[i] = 0
	}
}

// AllocProcess scans the process table for an UNUSED slot and wires it up
// for use (allocproc). Returns the process with its lock held, or nil on
// resource exhaustion or an address-space allocation failure.
func (k *Kernel) AllocProcess(tracker *locking.Tracker) *Process {
	for _, p := range k.procs {
		p.lock.Lock(tracker)
		if p.state != ProcUnused {
			p.lock.Unlock(tracker)
			continue
		}

		p.pid = k.allocPid()
		p.state = ProcUsed

		p.trapframes = make([]Trapframe, len(p.threads))
		for i, th := range p.threads {
			th.trapframe = &p.trapframes[i]
			th.state = UnusedT
			th.id = k.allocTid()
		}

		if k.newAddrSpace != nil {
			as, err := k.newAddrSpace()
			if err != nil {
				k.freeProc(p)
				p.lock.Unlock(tracker)
				return nil
			}
			p.addrSpace = as
		}

		p.trapframeBackup = &Trapframe{}
		p.installDefaultHandlers()
		k.indexProc(p.pid, p.slot)

		return p
	}
	return nil
}

// UserInit bootstraps the very first process (userinit): allocates it,
// marks it as the kernel's permanent init process (the ultimate reparent
// target and the one process Exit refuses to terminate), and dispatches
// workload on its main thread. Must be called exactly once, before any
// Fork.
func (k *Kernel) UserInit(workload func(k *Kernel, th *Thread)) *Process {
	p := k.AllocProcess(k.bootTracker)
	if p == nil {
		panic("kernel: no process slots for init")
	}
	p.name = "init"
	p.cwd = NewFakeWorkingDirectory("/")
	k.initProc = p

	main := p.threads[0]
	main.state = Runnable
	main.start(k, workload)
	p.lock.Unlock(k.bootTracker)
	return p
}

// Fork creates a new process, copying the parent. Returns
// the child's PID to the parent, or -1 on resource exhaustion.
func (k *Kernel) Fork(t *Thread, workload func(k *Kernel, th *Thread)) int32 {
	p := t.proc
	tr := t.tracker()

	np := k.AllocProcess(tr)
	if np == nil {
		return -1
	}
	childMain := np.threads[0]

	if p.addrSpace != nil {
		childAS, err := p.addrSpace.Fork()
		if err != nil {
			k.freeProc(np)
			np.lock.Unlock(tr)
			return -1
		}
		np.addrSpace = childAS
	}
	np.size = p.size

	*childMain.trapframe = *t.trapframe
	childMain.trapframe.A0 = 0 // fork returns 0 in the child

	for i, f := range p.files {
		if f != nil {
			np.files[i] = f.Dup()
		}
	}
	if p.cwd != nil {
		np.cwd = p.cwd.Dup()
	}

	np.name = p.name
	np.sigMask = p.sigMask
	np.handlers = p.handlers
	np.handlerMasks = p.handlerMasks

	pid := np.pid
	np.lock.Unlock(tr)

	k.waitLock.Lock(tr)
	np.parent = p
	k.waitLock.Unlock(tr)

	np.lock.Lock(tr)
	np.state = ProcUsed
	childMain.state = Runnable
	childMain.start(k, workload)
	np.lock.Unlock(tr)

	return pid
}

// reparent assigns every child of p to init and wakes it. Caller must
// hold kern.waitLock.
func (k *Kernel) reparent(t *Thread, p *Process) {
	for _, pp := range k.procs {
		if pp.parent == p {
			pp.parent = k.initProc
			k.Wakeup(t, WaitChannel(k.initProc))
		}
	}
}

// Exit terminates the calling thread's whole process.
// Never returns for a well-formed caller. Exiting the init process is a
// fatal error.
func (k *Kernel) Exit(t *Thread, status int32) {
	p := t.proc
	tr := t.tracker()

	if p == k.initProc {
		panic("init exiting")
	}

	k.Wakeup(t, WaitChannel(t))

	p.lock.Lock(tr)
	if t.killed || t.state == ZombieT || t.state == UnusedT {
		// Already being torn down by a sibling's Exit (which marked us
		// killed): get out of its way instead of racing the same
		// teardown, without calling Sched while still RUNNING.
		t.state = ZombieT
		k.Sched(t)
	}
	for _, sib := range p.threads {
		if sib != t {
			sib.killed = true
		}
	}
	p.lock.Unlock(tr)

	for {
		found := false
		p.lock.Lock(tr)
		for _, sib := range p.threads {
			if sib != t && sib.state != ZombieT && sib.state != UnusedT {
				found = true
				break
			}
		}
		p.lock.Unlock(tr)
		if !found {
			break
		}
		k.Yield(t)
	}

	for i, f := range p.files {
		if f != nil {
			f.Close()
			p.files[i] = nil
		}
	}
	if p.cwd != nil {
		p.cwd.Release()
		p.cwd = nil
	}

	k.waitLock.Lock(tr)
	k.reparent(t, p)
	if p.parent != nil {
		k.Wakeup(t, WaitChannel(p.parent))
	}

	p.lock.Lock(tr)
	t.state = UnusedT
	p.xstate = status
	p.state = ProcZombie
	k.waitLock.Unlock(tr)

	klog.Proc(p.pid).Debugf("exit status=%d", status)
	k.Sched(t)
	panic("zombie exit")
}

// Wait waits for a child process to exit, returning its PID and copying
// out its exit status via out if non-nil. Returns -1 if the caller has no
// children, or is killed, or the copy-out fails.
func (k *Kernel) Wait(t *Thread, out func(status int32) error) int32 {
	p := t.proc
	tr := t.tracker()

	k.waitLock.Lock(tr)
	defer k.waitLock.Unlock(tr)

	for {
		haveKids := false
		for _, np := range k.procs {
			if np.parent != p {
				continue
			}
			np.lock.Lock(tr)
			haveKids = true
			if np.state == ProcZombie {
				pid := np.pid
				if out != nil {
					if err := out(np.xstate); err != nil {
						np.lock.Unlock(tr)
						return -1
					}
				}
				k.freeProc(np)
				np.lock.Unlock(tr)
				return pid
			}
			np.lock.Unlock(tr)
		}

		if !haveKids || p.killed {
			return -1
		}

		k.Sleep(t, WaitChannel(p), k.waitLock)
	}
}

// freeProc returns p to UNUSED, releasing its threads and address space.
// Caller must hold p.lock.
func (k *Kernel) freeProc(p *Process) {
	for _, th := range p.threads {
		k.freeThread(th)
	}
	if p.addrSpace != nil {
		p.addrSpace.Release()
	}
	k.unindexProc(p.pid)

	p.addrSpace = nil
	p.size = 0
	p.pid = 0
	p.parent = nil
	p.name = ""
	p.killed = false
	p.xstate = 0
	p.state = ProcUnused
	p.pending = 0
	p.sigMask = 0
	p.isStopped = false
	p.isHandlingSignal = false
	p.sigMaskBackup = 0
	p.installDefaultHandlers() // reset eagerly rather than leaving stale entries
	p.trapframes = nil
	p.trapframeBackup = nil
}
