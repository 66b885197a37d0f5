package kernel

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/rv64kernel/core/pkg/klog"
)

// Yield gives up the CPU for one scheduling round.
func (k *Kernel) Yield(t *Thread) {
	p := t.proc
	tr := t.tracker()
	p.lock.Lock(tr)
	t.state = Runnable
	k.Sched(t)
	p.lock.Unlock(tr)
}

// RunScheduler runs a single CPU's infinite dispatch loop.
// It returns only when ctx is cancelled, which is used to bound the
// simulation in tests and in cmd/kernelsim's timed demos; a
// production boot would call it from a goroutine that never returns, one
// per CPU, exactly as xv6 enters scheduler() once per hart and never
// comes back.
func (k *Kernel) RunScheduler(ctx context.Context, cpu *CPU) {
	cpu.proc = nil
	cpu.thread = nil
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		// intr_on(): avoid deadlock by ensuring devices (here, the tick
		// generator) can always make progress between process scans.

		for _, p := range k.procs {
			p.lock.Lock(cpu.tracker)
			released := false

			if p.state == ProcUsed {
				for _, th := range p.threads {
					if th.state != Runnable {
						continue
					}

					if p.isStopped {
						blocked := p.sigMask&(1<<uint(SigCont)) != 0
						set := p.pending&(1<<uint(SigCont)) != 0
						if blocked || !set {
							p.lock.Unlock(cpu.tracker)
							released = true
							break
						}
					}

					th.state = Running
					cpu.proc = p
					cpu.thread = th
					th.cpu = cpu

					th.resume <- struct{}{}
					<-th.parked

					cpu.thread = nil
					cpu.proc = nil
				}
			}

			if !released {
				p.lock.Unlock(cpu.tracker)
			}

			select {
			case <-ctx.Done():
				return
			default:
			}
		}
	}
}

// RunAllCPUs launches RunScheduler for every CPU the kernel owns under
// one errgroup and returns once ctx is cancelled and every CPU's loop has
// stopped. The loops never return an error, and a panic in any of them
// is not recovered here.
func (k *Kernel) RunAllCPUs(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, cpu := range k.cpus {
		cpu := cpu
		g.Go(func() error {
			klog.CPU(cpu.ID()).Debugf("scheduler loop starting")
			k.RunScheduler(gctx, cpu)
			return nil
		})
	}
	return g.Wait()
}
