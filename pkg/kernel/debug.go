package kernel

import (
	"fmt"
	"strings"

	"github.com/google/btree"
)

// ProcDump renders one line per live process in PID order, reading each
// process's state/name without taking its lock, matching procdump's
// documented "best-effort only, no locks held" contract.
func (k *Kernel) ProcDump() string {
	var b strings.Builder
	k.pidIndexMu.Lock()
	entries := make([]pidIndexEntry, 0, k.pidIndex.Len())
	k.pidIndex.Ascend(func(item btree.Item) bool {
		entries = append(entries, item.(pidIndexEntry))
		return true
	})
	k.pidIndexMu.Unlock()

	for _, e := range entries {
		p := k.procs[e.slot]
		fmt.Fprintf(&b, "%d %s %s\n", p.pid, p.state, p.name)
	}
	return b.String()
}
