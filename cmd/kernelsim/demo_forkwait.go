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

// forkWaitCmd demonstrates Fork/Exit/Wait: init forks a child that exits
// with a fixed status, and init's Wait call observes it.
type forkWaitCmd struct{ rounds time.Duration }

func (*forkWaitCmd) Name() string     { return "fork-wait" }
func (*forkWaitCmd) Synopsis() string { return "fork a child process and wait for its exit status" }
func (*forkWaitCmd) Usage() string    { return "demo fork-wait - run the fork/wait scenario\n" }
func (c *forkWaitCmd) SetFlags(f *flag.FlagSet) {
	f.DurationVar(&c.rounds, "timeout", 2*time.Second, "how long to run the scheduler before giving up")
}

func (c *forkWaitCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	k, err := kernel.New(kconfig.Default(), func() (kernel.AddressSpace, error) {
		return kernel.NewFakeAddressSpace(4096), nil
	})
	if err != nil {
		fmt.Println("boot error:", err)
		return subcommands.ExitFailure
	}

	result := make(chan int32, 1)

	k.UserInit(func(kk *kernel.Kernel, t *kernel.Thread) {
		pid := kk.Fork(t, func(kk2 *kernel.Kernel, child *kernel.Thread) {
			kk2.Exit(child, 7)
		})
		if pid >= 0 {
			var status int32
			kk.Wait(t, func(s int32) error {
				status = s
				return nil
			})
			result <- status
		}
		// init never exits; idle until the scheduler is torn down.
		for {
			kk.Yield(t)
		}
	})

	runCtx, cancel := context.WithTimeout(ctx, c.rounds)
	defer cancel()
	go k.RunAllCPUs(runCtx)

	select {
	case status := <-result:
		fmt.Printf("child exited with status %d\n", status)
		cancel()
	case <-runCtx.Done():
		fmt.Println("timed out waiting for fork/wait demo")
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
