package kernel

import (
	"errors"
	"sync"

	"golang.org/x/sys/unix"
)

// pageSize stands in for xv6's PGSIZE: the granularity the fake address
// space rounds its arena to, matching growproc's page-aligned allocation.
var pageSize = int64(unix.Getpagesize())

// pgroundup rounds sz up to the next page boundary.
func pgroundup(sz int64) int64 {
	return (sz + pageSize - 1) / pageSize * pageSize
}

// AddressSpace stands in for page-table creation, user copy in/out, and
// the kernel allocator, none of which this core implements itself. The
// core only ever talks to this narrow interface, the way pkg/sentry/kernel
// talks to pkg/sentry/mm without depending on its internals.
type AddressSpace interface {
	// CopyOut writes src into the address space at addr (the trapframe
	// stack-rewrite in signal delivery, a wait() status pointer, ...).
	CopyOut(addr uint64, src []byte) error
	// CopyIn reads len(dst) bytes from addr into dst (a sigaction
	// payload, a join status pointer, ...).
	CopyIn(dst []byte, addr uint64) error
	// Grow adjusts the process's break by delta bytes, returning the new
	// size (sbrk's growproc).
	Grow(oldSize, delta int64) (int64, error)
	// Fork returns a copy of the address space for a child process
	// (uvmcopy).
	Fork() (AddressSpace, error)
	// Release tears the address space down (proc_freepagetable).
	Release()
}

// OpenFile stands in for the file system's open-file descriptor object
// (struct file in xv6); dup/close are opaque since this core has no
// filesystem of its own.
type OpenFile interface {
	Dup() OpenFile
	Close() error
}

// WorkingDirectory stands in for the inode handle of a process's current
// working directory (idup/iput in xv6).
type WorkingDirectory interface {
	Dup() WorkingDirectory
	Release()
}

// ErrOutOfBounds is returned by the fake AddressSpace's CopyIn/CopyOut
// when addr+len falls outside the simulated arena.
var ErrOutOfBounds = errors.New("kernel: address out of bounds")

// FakeAddressSpace is an in-memory stand-in for a real page table, used
// by tests and cmd/kernelsim. It models a single flat byte arena with a
// movable break, which is all sbrk/copy in/out need to exercise the
// syscalls that touch user memory.
type FakeAddressSpace struct {
	mu    sync.Mutex
	mem   []byte
	brkSz int64
}

// NewFakeAddressSpace returns an empty address space with the given
// initial arena capacity, rounded up to a whole number of pages.
func NewFakeAddressSpace(capacity int64) *FakeAddressSpace {
	return &FakeAddressSpace{mem: make([]byte, pgroundup(capacity))}
}

func (a *FakeAddressSpace) CopyOut(addr uint64, src []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	end := addr + uint64(len(src))
	if end > uint64(len(a.mem)) {
		return ErrOutOfBounds
	}
	copy(a.mem[addr:end], src)
	return nil
}

func (a *FakeAddressSpace) CopyIn(dst []byte, addr uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	end := addr + uint64(len(dst))
	if end > uint64(len(a.mem)) {
		return ErrOutOfBounds
	}
	copy(dst, a.mem[addr:end])
	return nil
}

func (a *FakeAddressSpace) Grow(oldSize, delta int64) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	newSize := oldSize + delta
	if newSize < 0 {
		return 0, errors.New("kernel: negative address space size")
	}
	if newSize > int64(len(a.mem)) {
		grown := make([]byte, newSize)
		copy(grown, a.mem)
		a.mem = grown
	}
	a.brkSz = newSize
	return newSize, nil
}

func (a *FakeAddressSpace) Fork() (AddressSpace, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	dup := make([]byte, len(a.mem))
	copy(dup, a.mem)
	return &FakeAddressSpace{mem: dup, brkSz: a.brkSz}, nil
}

func (a *FakeAddressSpace) Release() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.mem = nil
}

// FakeOpenFile is a reference-counted stand-in for struct file.
type FakeOpenFile struct {
	mu   *sync.Mutex
	refs *int
	Name string
}

// NewFakeOpenFile returns a fresh, singly-referenced fake file.
func NewFakeOpenFile(name string) *FakeOpenFile {
	refs := 1
	return &FakeOpenFile{mu: &sync.Mutex{}, refs: &refs, Name: name}
}

func (f *FakeOpenFile) Dup() OpenFile {
	f.mu.Lock()
	defer f.mu.Unlock()
	*f.refs++
	return f
}

func (f *FakeOpenFile) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	*f.refs--
	return nil
}

// FakeWorkingDirectory is a reference-counted stand-in for an inode
// handle.
type FakeWorkingDirectory struct {
	mu   *sync.Mutex
	refs *int
	Path string
}

// NewFakeWorkingDirectory returns a fresh, singly-referenced fake cwd.
func NewFakeWorkingDirectory(path string) *FakeWorkingDirectory {
	refs := 1
	return &FakeWorkingDirectory{mu: &sync.Mutex{}, refs: &refs, Path: path}
}

func (w *FakeWorkingDirectory) Dup() WorkingDirectory {
	w.mu.Lock()
	defer w.mu.Unlock()
	*w.refs++
	return w
}

func (w *FakeWorkingDirectory) Release() {
	w.mu.Lock()
	defer w.mu.Unlock()
	*w.refs--
}
