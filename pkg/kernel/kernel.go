package kernel

import (
	"sync"

	"github.com/google/btree"

	"github.com/rv64kernel/core/pkg/kconfig"
	"github.com/rv64kernel/core/pkg/klog"
	"github.com/rv64kernel/core/pkg/locking"
)

// AddressSpaceFactory creates a fresh, empty address space for a newly
// allocated process (proc_pagetable's "empty user page table mapping the
// trampoline and trapframe pages" — the trampoline/trapframe mapping
// itself is VM plumbing the factory's concrete implementation owns, not
// this package's concern).
type AddressSpaceFactory func() (AddressSpace, error)

// Kernel owns the fixed-size tables and global locks, wired through an
// explicit struct rather than package-level globals — an explicit
// kernel context rather than truly global storage, where the language
// permits").
type Kernel struct {
	cfg kconfig.Config

	procs []*Process
	cpus  []*CPU

	// waitLock/joinLock are the two locks above proc.lock in the global
	// lock order.
	waitLock *locking.SpinLock
	joinLock *locking.SpinLock

	semTable *SemTable

	pidMu   sync.Mutex
	nextPid int32
	tidMu   sync.Mutex
	nextTid int32

	initProc *Process

	// pidIndex mirrors procdump's PID-ordered walk; kept as a BTree so the
	// debug dump can iterate in PID order without taking any process
	// lock, the way procdump intentionally takes none ("best-effort
	// only").
	pidIndexMu sync.Mutex
	pidIndex   *btree.BTree

	newAddrSpace AddressSpaceFactory

	clock *Clock

	bootTracker *locking.Tracker

	rootInit     sync.Once
	RootInitFunc func() // optional filesystem-root-init hook (fsinit)
}

// pidIndexEntry is the btree.Item stored in Kernel.pidIndex.
type pidIndexEntry struct {
	pid  int32
	slot int
}

func (e pidIndexEntry) Less(than btree.Item) bool {
	return e.pid < than.(pidIndexEntry).pid
}

// New builds a Kernel from cfg, wiring the process/thread/CPU/semaphore
// tables the way procinit() does, but without assuming package-level
// globals.
func New(cfg kconfig.Config, newAddrSpace AddressSpaceFactory) (*Kernel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := klog.SetLevel(cfg.LogLevel); err != nil {
		return nil, err
	}

	k := &Kernel{
		cfg:          cfg,
		waitLock:     locking.NewSpinLock(locking.RankWait, "wait_lock"),
		joinLock:     locking.NewSpinLock(locking.RankJoin, "join_lock"),
		nextPid:      1,
		nextTid:      1,
		pidIndex:     btree.New(32),
		newAddrSpace: newAddrSpace,
		bootTracker:  locking.NewTracker(),
	}
	k.semTable = newSemTable(cfg.MaxBsem)
	k.clock = newClock(cfg.TickHz)

	k.procs = make([]*Process, cfg.NProc)
	for i := range k.procs {
		k.procs[i] = newProcess(k, i, cfg.NThread)
	}

	k.cpus = make([]*CPU, cfg.NCPU)
	for i := range k.cpus {
		k.cpus[i] = newCPU(i)
	}

	return k, nil
}

// Config returns the kernel's boot configuration.
func (k *Kernel) Config() kconfig.Config { return k.cfg }

// CPUs returns the kernel's simulated CPU descriptors.
func (k *Kernel) CPUs() []*CPU { return k.cpus }

// BootTracker returns the lock-order tracker used for boot-time code
// paths (UserInit) that run outside any dispatched thread's CPU context.
// The clock goroutine keeps a tracker of its own.
func (k *Kernel) BootTracker() *locking.Tracker { return k.bootTracker }

func (k *Kernel) allocPid() int32 {
	k.pidMu.Lock()
	defer k.pidMu.Unlock()
	pid := k.nextPid
	k.nextPid++
	return pid
}

func (k *Kernel) allocTid() int32 {
	k.tidMu.Lock()
	defer k.tidMu.Unlock()
	tid := k.nextTid
	k.nextTid++
	return tid
}

func (k *Kernel) indexProc(pid int32, slot int) {
	k.pidIndexMu.Lock()
	defer k.pidIndexMu.Unlock()
	k.pidIndex.ReplaceOrInsert(pidIndexEntry{pid: pid, slot: slot})
}

func (k *Kernel) unindexProc(pid int32) {
	k.pidIndexMu.Lock()
	defer k.pidIndexMu.Unlock()
	k.pidIndex.Delete(pidIndexEntry{pid: pid})
}

// rootInitOnce performs the fsinit(ROOTDEV) equivalent exactly once,
// across the kernel's whole lifetime, the first time any thread reaches
// forkret — matching forkret's "static int first" guard.
func (k *Kernel) rootInitOnce() {
	if k.RootInitFunc == nil {
		return
	}
	k.rootInit.Do(k.RootInitFunc)
}
