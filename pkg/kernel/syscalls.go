package kernel

// Errno mirrors the original's convention of returning a negative count
// for failure, expressed as a Go error instead of a sentinel integer.
type Errno string

func (e Errno) Error() string { return string(e) }

const (
	ErrNoMem  Errno = "out of process/thread slots"
	ErrBadArg Errno = "invalid argument"
	ErrNoKid  Errno = "no such child or thread"
)

// Syscalls is the thin entry-point surface a trap handler would dispatch
// into (sysproc.c's sys_* family). Every call here runs with the calling
// thread already established on trap entry and, except for the terminating
// ones, ends by draining pending signals before returning to user space
// (usertrapret's check_pending_signals call).
type Syscalls struct {
	k *Kernel
}

// NewSyscalls wraps k's raw kernel operations behind the syscall-return
// contract (int64 result or error, with signal delivery on every
// non-terminating return path).
func NewSyscalls(k *Kernel) *Syscalls { return &Syscalls{k: k} }

// deliver stands in for usertrapret's return-to-user sequence: drain
// pending signals, then check the killed flag a default-action SIGKILL
// (or any handlerless signal) leaves behind, exiting with -1 exactly as
// trap.c's "if(p->killed) exit(-1)" does on both of its return paths.
// The init process is exempt: nothing may ever exit it.
func (s *Syscalls) deliver(t *Thread) {
	s.k.CheckPendingSignals(t)
	if t.proc.killed && t.proc != s.k.initProc {
		s.k.Exit(t, -1)
	}
}

// Fork creates a child process.
func (s *Syscalls) Fork(t *Thread, workload func(k *Kernel, th *Thread)) (int64, error) {
	pid := s.k.Fork(t, workload)
	s.deliver(t)
	if pid < 0 {
		return -1, ErrNoMem
	}
	return int64(pid), nil
}

// Exit terminates the calling process. Never returns to the caller.
func (s *Syscalls) Exit(t *Thread, status int32) {
	s.k.Exit(t, status)
}

// Wait blocks for a child to exit, copying its status via out.
func (s *Syscalls) Wait(t *Thread, out func(status int32) error) (int64, error) {
	pid := s.k.Wait(t, out)
	s.deliver(t)
	if pid < 0 {
		return -1, ErrNoKid
	}
	return int64(pid), nil
}

// GetPid returns the calling process's PID.
func (s *Syscalls) GetPid(t *Thread) (int64, error) {
	pid := int64(t.proc.pid)
	s.deliver(t)
	return pid, nil
}

// Sbrk grows or shrinks the calling process's address space by n bytes,
// returning the address space's size before the change.
func (s *Syscalls) Sbrk(t *Thread, n int64) (int64, error) {
	p := t.proc
	tr := t.tracker()
	p.lock.Lock(tr)
	old := p.size
	if p.addrSpace != nil {
		newSize, err := p.addrSpace.Grow(old, n)
		if err != nil {
			p.lock.Unlock(tr)
			s.deliver(t)
			return -1, ErrBadArg
		}
		p.size = newSize
	} else {
		p.size = old + n
	}
	p.lock.Unlock(tr)
	s.deliver(t)
	return old, nil
}

// SleepTicks blocks the calling thread for n clock ticks.
func (s *Syscalls) SleepTicks(t *Thread, n int64) (int64, error) {
	s.k.SleepTicks(t, n)
	s.deliver(t)
	return 0, nil
}

// Uptime returns the tick count since boot.
func (s *Syscalls) Uptime(t *Thread) (int64, error) {
	u := s.k.Uptime()
	s.deliver(t)
	return u, nil
}

// Kill sets signum pending in pid's process.
func (s *Syscalls) Kill(t *Thread, pid int32, signum int) (int64, error) {
	r := s.k.Kill(t, pid, signum)
	s.deliver(t)
	if r < 0 {
		return -1, ErrBadArg
	}
	return 0, nil
}

// SigProcMask swaps the calling process's signal mask.
func (s *Syscalls) SigProcMask(t *Thread, mask uint32) (int64, error) {
	old := s.k.SigProcMask(t, mask)
	s.deliver(t)
	return int64(old), nil
}

// SigAction installs a new handler for signum.
func (s *Syscalls) SigAction(t *Thread, signum int, newAction, oldOut *SigActionArg) (int64, error) {
	r := s.k.SigAction(t, signum, newAction, oldOut)
	s.deliver(t)
	if r < 0 {
		return -1, ErrBadArg
	}
	return 0, nil
}

// SigReturn restores the trapframe/mask saved before a user handler ran.
func (s *Syscalls) SigReturn(t *Thread) (int64, error) {
	s.k.SigReturn(t)
	return 0, nil
}

// KthreadCreate spawns a new thread in the calling process.
func (s *Syscalls) KthreadCreate(t *Thread, startFn, userStackBase uint64, workload func(k *Kernel, th *Thread)) (int64, error) {
	id := s.k.ThreadCreate(t, startFn, userStackBase, workload)
	s.deliver(t)
	if id < 0 {
		return -1, ErrNoMem
	}
	return int64(id), nil
}

// KthreadID returns the calling thread's TID.
func (s *Syscalls) KthreadID(t *Thread) (int64, error) {
	id := s.k.ThreadID(t)
	s.deliver(t)
	return int64(id), nil
}

// KthreadExit terminates the calling thread. May not return to the
// caller if this was the process's last thread.
func (s *Syscalls) KthreadExit(t *Thread, status int32) {
	s.k.KthreadExit(t, status)
}

// KthreadJoin waits for sibling thread tid to terminate.
func (s *Syscalls) KthreadJoin(t *Thread, tid int32, out *int32) (int64, error) {
	r := s.k.ThreadJoin(t, tid, out)
	s.deliver(t)
	if r < 0 {
		return -1, ErrNoKid
	}
	return 0, nil
}

// BsemAlloc allocates a binary semaphore descriptor.
func (s *Syscalls) BsemAlloc(t *Thread) (int64, error) {
	d := s.k.BsemAlloc(t)
	s.deliver(t)
	if d < 0 {
		return -1, ErrNoMem
	}
	return int64(d), nil
}

// BsemFree releases a binary semaphore descriptor.
func (s *Syscalls) BsemFree(t *Thread, d int32) (int64, error) {
	s.k.BsemFree(t, d)
	s.deliver(t)
	return 0, nil
}

// BsemDown blocks until descriptor d is available.
func (s *Syscalls) BsemDown(t *Thread, d int32) (int64, error) {
	s.k.BsemDown(t, d)
	s.deliver(t)
	return 0, nil
}

// BsemUp releases descriptor d.
func (s *Syscalls) BsemUp(t *Thread, d int32) (int64, error) {
	s.k.BsemUp(t, d)
	s.deliver(t)
	return 0, nil
}
