package kernel

import (
	"context"
	"testing"
	"time"

	"github.com/rv64kernel/core/pkg/kconfig"
)

// newTestKernel boots a small kernel with a fake address-space factory
// and starts its scheduler loops, tearing everything down when the test
// ends.
func newTestKernel(t *testing.T) (*Kernel, context.Context) {
	t.Helper()
	cfg := kconfig.Default()
	cfg.NProc = 8
	cfg.NThread = 4
	cfg.NCPU = 2
	cfg.MaxBsem = 4
	cfg.LogLevel = "error"

	k, err := New(cfg, func() (AddressSpace, error) {
		return NewFakeAddressSpace(4096), nil
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	go k.RunAllCPUs(ctx)
	return k, ctx
}

func waitOrTimeout(t *testing.T, ctx context.Context, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-ctx.Done():
		t.Fatal("timed out waiting for scenario to complete")
	}
}
