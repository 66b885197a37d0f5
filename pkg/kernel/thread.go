package kernel

import (
	"github.com/rv64kernel/core/pkg/locking"
)

// Thread is a kernel execution context bound to a process. Preemption/
// blocking is expressed as a goroutine parking on resume/parked channels
// instead of a register-level context switch.
type Thread struct {
	lock *locking.SpinLock // thread.lock, rank RankThread

	proc *Process
	slot int // index into proc.threads; slot 0 is the process's main thread

	id    int32
	state ThreadState

	chanKey WaitChannel // non-nil only while Sleeping

	trapframe *Trapframe
	name      string
	killed    bool
	xstate    int32

	// cpu is set by the scheduler immediately before dispatching this
	// thread (mirrors cpu->thread / "current thread" being established).
	cpu *CPU

	resume chan struct{} // scheduler -> thread: run
	parked chan struct{} // thread -> scheduler: I've stopped running

	firstDispatch bool
	workload      func(k *Kernel, t *Thread)
}

func newThread(p *Process, slot int) *Thread {
	return &Thread{
		lock:   locking.NewSpinLock(locking.RankThread, "thread"),
		proc:   p,
		slot:   slot,
		state:  UnusedT,
		resume: make(chan struct{}),
		parked: make(chan struct{}),
	}
}

// ID returns the thread's TID (kthread_id).
func (t *Thread) ID() int32 { return t.id }

// Name returns the thread's debug name.
func (t *Thread) Name() string { return t.name }

// State returns the thread's current lifecycle state.
func (t *Thread) State() ThreadState { return t.state }

// Process returns the owning process.
func (t *Thread) Process() *Process { return t.proc }

// Trapframe returns the thread's register image.
func (t *Thread) Trapframe() *Trapframe { return t.trapframe }

// CPU returns the CPU this thread is currently dispatched on, or nil.
func (t *Thread) CPU() *CPU { return t.cpu }

// tracker returns the lock-order tracker of whichever CPU this thread is
// currently running on. Must only be called while the thread is actually
// executing (i.e. between being resumed and parking again).
func (t *Thread) tracker() *locking.Tracker {
	if t.cpu == nil {
		return nil
	}
	return t.cpu.tracker
}

// isMainThread reports whether this is the process's permanent thread 0
// ("each process's thread 0 exists for the process
// lifetime; its kernel stack is owned by the process, not reclaimed on
// thread free").
func (t *Thread) isMainThread() bool { return t.slot == 0 }

// start launches the thread's goroutine, parked on its resume channel
// until the scheduler first dispatches it. Called once per slot
// allocation (UserInit and Fork for slot 0, ThreadCreate for the rest).
func (t *Thread) start(k *Kernel, workload func(k *Kernel, th *Thread)) {
	t.workload = workload
	t.firstDispatch = true
	go func() {
		<-t.resume
		k.forkReturn(t)
		if t.workload != nil {
			t.workload(k, t)
		}
		k.threadFallOff(t)
	}()
}

// Sched is the yield-to-scheduler primitive. Preconditions
// mirror the original: caller holds its process lock, the lock-order
// depth is 1 (only proc.lock held), and the thread is not RUNNING.
// This simulation has no real interrupt flag, so the original's
// interrupts-disabled check has no counterpart here. Violations of the
// checked preconditions panic.
func (k *Kernel) Sched(t *Thread) {
	tr := t.tracker()
	if tr == nil || !tr.Holding(locking.RankProc) {
		panic("sched: p->lock not held")
	}
	if tr.Depth() != 1 {
		panic("sched: locks held besides p->lock")
	}
	if t.state == Running {
		panic("sched: thread still RUNNING")
	}
	t.parked <- struct{}{}
	<-t.resume
}

// forkReturn is the first-time entry point for every new thread
// (fork_return/forkret): release the process lock held from the
// scheduler's dispatch, and — once, the very first time any thread in
// the kernel's lifetime reaches here — perform the filesystem-root
// equivalent initialization. Root initialization is delegated to an
// injected hook because this core has no filesystem of its own.
func (k *Kernel) forkReturn(t *Thread) {
	t.proc.lock.Unlock(t.tracker())
	k.rootInitOnce()
}

// threadFallOff handles a workload function returning normally instead
// of calling KthreadExit/Exit itself — the Go equivalent of a kernel
// thread's start function falling off the end rather than looping
// forever; treated as an implicit exit(0)/kthread_exit(0).
func (k *Kernel) threadFallOff(t *Thread) {
	if t.isMainThread() {
		k.Exit(t, 0)
	} else {
		k.KthreadExit(t, 0)
	}
}

// ThreadCreate allocates a new thread slot (kthread_create). Recycles
// ZOMBIET slots by first transitioning them to UNUSEDT, matching
// allocthread. Returns -1 if no slot is free.
func (k *Kernel) ThreadCreate(t *Thread, startFn uint64, userStackBase uint64, workload func(k *Kernel, th *Thread)) int32 {
	p := t.proc
	p.lock.Lock(t.tracker())
	defer p.lock.Unlock(t.tracker())

	var nt *Thread
	for _, cand := range p.threads {
		if cand.state == ZombieT {
			cand.state = UnusedT
		}
		if cand.state == UnusedT && nt == nil {
			nt = cand
		}
	}
	if nt == nil {
		return -1
	}

	nt.id = k.allocTid()
	nt.killed = false
	nt.name = ""
	*nt.trapframe = *t.trapframe
	// 16-byte aligned slack below the top of the caller-provided stack,
	// matching allocthread's "- 16".
	nt.trapframe.Sp = userStackBase - 16
	nt.trapframe.Epc = startFn
	nt.state = Runnable
	nt.start(k, workload)
	return nt.id
}

// ThreadID returns the calling thread's TID (kthread_id).
func (k *Kernel) ThreadID(t *Thread) int32 { return t.id }

// KthreadExit terminates the calling thread (kthread_exit). If it is the
// last non-terminal thread in the process, delegates to Exit; otherwise
// records the exit status, wakes any joiner, and schedules away.
func (k *Kernel) KthreadExit(t *Thread, status int32) {
	p := t.proc
	p.lock.Lock(t.tracker())
	last := true
	for _, other := range p.threads {
		if other != t && other.state != ZombieT && other.state != UnusedT {
			last = false
			break
		}
	}
	t.xstate = status
	p.lock.Unlock(t.tracker())

	k.Wakeup(t, WaitChannel(t))

	if last {
		k.Exit(t, status)
		return
	}

	p.lock.Lock(t.tracker())
	t.state = ZombieT
	k.Sched(t)
	// unreachable: the slot is UnusedT/ZombieT and will never be
	// rescheduled until ThreadCreate recycles it with a new goroutine.
}

// ThreadJoin waits for the sibling thread tid to terminate, copying out
// its exit status (kthread_join). Fails on self-join or an unknown tid.
// Implements the intended semantics behind xv6's tautological join loop
// condition: sleep while the target is neither ZOMBIET nor UNUSEDT.
func (k *Kernel) ThreadJoin(t *Thread, tid int32, out *int32) int32 {
	p := t.proc
	if tid == t.id {
		return -1
	}

	var target *Thread
	for _, cand := range p.threads {
		if cand.id == tid {
			target = cand
			break
		}
	}
	if target == nil {
		return -1
	}

	k.joinLock.Lock(t.tracker())
	for target.state != ZombieT && target.state != UnusedT {
		k.Sleep(t, WaitChannel(target), k.joinLock)
	}
	k.joinLock.Unlock(t.tracker())

	if target.state == UnusedT {
		// Already reaped by a previous join.
		return -1
	}

	xstate := target.xstate
	k.freeThread(target)

	if out != nil {
		*out = xstate
	}
	return 0
}

func (k *Kernel) freeThread(t *Thread) {
	t.chanKey = nil
	t.name = ""
	t.state = UnusedT
	t.killed = false
}
