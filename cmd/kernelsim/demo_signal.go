package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/google/subcommands"

	"github.com/rv64kernel/core/pkg/kconfig"
	"github.com/rv64kernel/core/pkg/kernel"
)

// signalCmd demonstrates registering a user-space signal handler,
// sending it a signal with Kill, and observing the handler run followed
// by an automatic sigreturn.
type signalCmd struct{ rounds time.Duration }

func (*signalCmd) Name() string     { return "signal" }
func (*signalCmd) Synopsis() string { return "register a user handler and deliver a signal to it" }
func (*signalCmd) Usage() string    { return "demo signal - run the signal-delivery scenario\n" }
func (c *signalCmd) SetFlags(f *flag.FlagSet) {
	f.DurationVar(&c.rounds, "timeout", 2*time.Second, "how long to run the scheduler before giving up")
}

func (c *signalCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	k, err := kernel.New(kconfig.Default(), func() (kernel.AddressSpace, error) {
		return kernel.NewFakeAddressSpace(4096), nil
	})
	if err != nil {
		fmt.Println("boot error:", err)
		return subcommands.ExitFailure
	}

	handled := make(chan int, 1)
	addr := kernel.RegisterUserHandler(func(t *kernel.Thread, signum int) {
		handled <- signum
	})

	k.UserInit(func(kk *kernel.Kernel, t *kernel.Thread) {
		const SIGUSR = 10
		old := kernel.SigActionArg{}
		kk.SigAction(t, SIGUSR, &kernel.SigActionArg{Handler: kernel.UserHandler(addr)}, &old)
		kk.Kill(t, t.Process().PID(), SIGUSR)

		// init never exits; keep draining pending signals until the
		// scheduler is torn down.
		for {
			kk.CheckPendingSignals(t)
			kk.Yield(t)
		}
	})

	runCtx, cancel := context.WithTimeout(ctx, c.rounds)
	defer cancel()
	go k.RunAllCPUs(runCtx)

	select {
	case signum := <-handled:
		fmt.Printf("user handler ran for signal %d\n", signum)
		cancel()
	case <-runCtx.Done():
		fmt.Println("timed out waiting for signal demo")
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
