package kernel

import "github.com/rv64kernel/core/pkg/locking"

// CPU is a per-hardware-thread descriptor: the currently
// running process/thread, and the nested interrupt-disable/lock-order
// state a real cpu struct keeps in noff/intena. Since this module
// expresses context switches as goroutine handoffs rather than register
// saves, CPU also
// carries no scheduler "context" register block — the handoff itself is
// the contract.
type CPU struct {
	id int

	// proc/thread mirror cpu->proc/cpu->thread: non-nil only while a
	// thread is actually dispatched on this CPU.
	proc   *Process
	thread *Thread

	// tracker stands in for cpu->noff/cpu->intena: the lock-order state
	// of whichever thread is currently executing on this CPU. Exactly one
	// goroutine is ever actively running code for a given CPU at a time
	// (the others are parked on a channel receive), so sharing one
	// tracker per CPU is safe and mirrors the original's per-CPU (not
	// per-thread) noff/intena fields.
	tracker *locking.Tracker
}

func newCPU(id int) *CPU {
	return &CPU{id: id, tracker: locking.NewTracker()}
}

// ID returns the CPU's index.
func (c *CPU) ID() int { return c.id }

// Proc returns the process currently dispatched on this CPU, or nil.
func (c *CPU) Proc() *Process { return c.proc }

// Thread returns the thread currently dispatched on this CPU, or nil.
func (c *CPU) Thread() *Thread { return c.thread }
