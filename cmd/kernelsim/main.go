// Command kernelsim boots the core kernel simulator and drives a few
// demonstration scenarios end to end: fork/wait, thread join, and signal
// delivery with a user-space handler. Subcommand registration follows
// gVisor's runsc CLI shape.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/rv64kernel/core/pkg/kconfig"
	"github.com/rv64kernel/core/pkg/klog"
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(&bootCmd{}, "")
	subcommands.Register(&forkWaitCmd{}, "demo")
	subcommands.Register(&signalCmd{}, "demo")
	subcommands.Register(&joinCmd{}, "demo")
	subcommands.Register(&sleepCmd{}, "demo")

	flag.Parse()
	ctx := context.Background()
	os.Exit(int(subcommands.Execute(ctx)))
}

// bootCmd validates a boot configuration file and prints it, standing in
// for runsc's "spec" inspection commands.
type bootCmd struct {
	configPath string
}

func (*bootCmd) Name() string     { return "boot" }
func (*bootCmd) Synopsis() string { return "validate and print a boot configuration" }
func (*bootCmd) Usage() string {
	return "boot [-config path] - load, validate, and print a kernel boot configuration\n"
}

func (c *bootCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.configPath, "config", "", "path to a TOML boot configuration file (defaults built in if empty)")
}

func (c *bootCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	cfg := kconfig.Default()
	if c.configPath != "" {
		loaded, err := kconfig.Load(c.configPath)
		if err != nil {
			klog.Errorf("loading config: %v", err)
			return subcommands.ExitFailure
		}
		cfg = loaded
	}
	if err := cfg.Validate(); err != nil {
		klog.Errorf("invalid config: %v", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("%+v\n", cfg)
	return subcommands.ExitSuccess
}
