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

// sleepCmd demonstrates SleepTicks/Uptime: init sleeps for a few
// simulated clock ticks, then reports the uptime it observed.
type sleepCmd struct {
	timeout time.Duration
	ticks   int64
}

func (*sleepCmd) Name() string     { return "sleep-ticks" }
func (*sleepCmd) Synopsis() string { return "sleep for N simulated clock ticks" }
func (*sleepCmd) Usage() string    { return "demo sleep-ticks [-n ticks] - run the sys_sleep scenario\n" }
func (c *sleepCmd) SetFlags(f *flag.FlagSet) {
	f.DurationVar(&c.timeout, "timeout", 3*time.Second, "how long to run before giving up")
	f.Int64Var(&c.ticks, "n", 5, "number of clock ticks to sleep for")
}

func (c *sleepCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	k, err := kernel.New(kconfig.Default(), func() (kernel.AddressSpace, error) {
		return kernel.NewFakeAddressSpace(4096), nil
	})
	if err != nil {
		fmt.Println("boot error:", err)
		return subcommands.ExitFailure
	}

	done := make(chan int64, 1)

	k.UserInit(func(kk *kernel.Kernel, t *kernel.Thread) {
		kk.SleepTicks(t, c.ticks)
		done <- kk.Uptime()
		// init never exits; idle until the scheduler is torn down.
		for {
			kk.Yield(t)
		}
	})

	runCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	go k.RunAllCPUs(runCtx)
	go k.Run(runCtx)

	select {
	case uptime := <-done:
		fmt.Printf("woke up after sleeping %d ticks, uptime now %d\n", c.ticks, uptime)
		cancel()
	case <-runCtx.Done():
		fmt.Println("timed out waiting for sleep-ticks demo")
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
