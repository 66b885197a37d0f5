// Package kernel implements the core concurrency and process-control
// subsystem: the process/thread table, the per-CPU round-robin
// scheduler, signal delivery (kernel and user handlers), sleep/wakeup,
// and the binary semaphore table.
//
// Grounded throughout on xv6's kernel/proc.c, proc.h, trap.c, sysproc.c,
// semaphore.h and signals.h, restructured in the idiom of gVisor's
// pkg/sentry/kernel.
package kernel

// ProcState is a process's lifecycle state.
type ProcState int

const (
	ProcUnused ProcState = iota
	ProcUsed
	ProcZombie
)

func (s ProcState) String() string {
	switch s {
	case ProcUnused:
		return "unused"
	case ProcUsed:
		return "used  "
	case ProcZombie:
		return "zombie"
	default:
		return "?????"
	}
}

// ThreadState is a thread's lifecycle state.
type ThreadState int

const (
	UnusedT ThreadState = iota
	Sleeping
	Runnable
	Running
	ZombieT
)

func (s ThreadState) String() string {
	switch s {
	case UnusedT:
		return "unusedt"
	case Sleeping:
		return "sleep"
	case Runnable:
		return "runble"
	case Running:
		return "run"
	case ZombieT:
		return "zombiet"
	default:
		return "?"
	}
}

// Signal numbers with kernel-implemented defaults.
const (
	SigDFL   = 0
	SigIGN   = 1
	SigKill  = 9
	SigStop  = 17
	SigCont  = 19
	NSignals = 32
)

// NOFILE bounds the fixed per-process open-file table, matching xv6's
// param.h NOFILE.
const NOFILE = 16

// WaitChannel is an opaque sleep key; wakeup matches by equality exactly
// the way xv6 treats "any address" as a channel identifier. Callers
// should pass a pointer-typed value (e.g. the address of a
// process, a thread, or a dedicated token) so distinct channels never
// compare equal by accident.
type WaitChannel interface{}

// PID is a process identifier.
type PID int32

// TID is a thread identifier, unique across the whole kernel (xv6's
// nexttid is a single global counter, not scoped per process).
type TID int32
