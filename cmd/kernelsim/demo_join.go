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

// joinCmd demonstrates kthread_create/kthread_join: init spawns a second
// thread in its own process and waits for its exit status.
type joinCmd struct{ rounds time.Duration }

func (*joinCmd) Name() string     { return "kthread-join" }
func (*joinCmd) Synopsis() string { return "spawn a sibling thread and join it" }
func (*joinCmd) Usage() string    { return "demo kthread-join - run the thread-join scenario\n" }
func (c *joinCmd) SetFlags(f *flag.FlagSet) {
	f.DurationVar(&c.rounds, "timeout", 2*time.Second, "how long to run the scheduler before giving up")
}

func (c *joinCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	k, err := kernel.New(kconfig.Default(), func() (kernel.AddressSpace, error) {
		return kernel.NewFakeAddressSpace(4096), nil
	})
	if err != nil {
		fmt.Println("boot error:", err)
		return subcommands.ExitFailure
	}

	result := make(chan int32, 1)

	k.UserInit(func(kk *kernel.Kernel, t *kernel.Thread) {
		tid := kk.ThreadCreate(t, 0, 0, func(kk2 *kernel.Kernel, th *kernel.Thread) {
			kk2.KthreadExit(th, 42)
		})
		if tid >= 0 {
			var status int32
			kk.ThreadJoin(t, tid, &status)
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
		fmt.Printf("joined thread exited with status %d\n", status)
		cancel()
	case <-runCtx.Done():
		fmt.Println("timed out waiting for kthread-join demo")
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
