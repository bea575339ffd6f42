package xpersist

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// Kind distinguishes the two region flavors this package supports.
type Kind int

const (
	// HeapRegion is created empty and anonymous.
	HeapRegion Kind = iota
	// GlobalsRegion is initialized by overlaying an existing address
	// range (the caller's already-mapped globals).
	GlobalsRegion
)

// Region is a contiguous byte range shared across cooperating worker
// processes via a dual mapping over one unlinked backing file: master
// (always shared, read/write) and working (toggled per transaction
// between private-COW and shared-RW). See doc.go.
type Region struct {
	mu sync.Mutex

	kind Kind
	size int
	fd   int

	master  []byte
	working []byte
	base    uintptr

	protected bool
	closed    bool

	counters *counters
}

// NewHeapRegion creates an empty region of n bytes backed by a fresh
// anonymous temporary file. n is rounded up to a whole number of
// pages.
func NewHeapRegion(n int) (*Region, error) {
	if n <= 0 {
		return nil, ErrRegionSize
	}
	return newRegion(HeapRegion, roundUpPage(n), nil)
}

// NewGlobalsRegion creates a region of len(init) bytes (rounded up to
// a whole number of pages) whose master mapping starts out as a copy
// of init, then overlays the working mapping directly onto init's
// backing address — which must itself be page-aligned, anonymous
// memory the caller owns and will not use again through any other
// reference, since the overlay destroys its original contents in
// place. This is how a globals region takes over a process's existing
// global state.
func NewGlobalsRegion(init []byte) (*Region, error) {
	if len(init) == 0 {
		return nil, ErrRegionSize
	}
	if addrOf(init)%uintptr(PageSize) != 0 {
		return nil, fmt.Errorf("xpersist: globals init slice is not page-aligned")
	}
	return newRegion(GlobalsRegion, roundUpPage(len(init)), init)
}

func roundUpPage(n int) int {
	return (n + PageSize - 1) &^ (PageSize - 1)
}

func newRegion(kind Kind, size int, init []byte) (*Region, error) {
	fd, err := backingFile(size)
	if err != nil {
		return nil, err
	}

	master, err := mmapAny(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}

	if init != nil {
		// Copy the caller's existing globals into master *before* the
		// working mapping overlays their address: the overlay below
		// clobbers init's contents in place.
		copy(master, init)
	}

	var working []byte
	var base uintptr
	if init != nil {
		base = addrOf(init)
		working, err = mmapFixed(base, fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	} else {
		working, err = mmapAny(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
		base = addrOf(working)
	}
	if err != nil {
		unix.Munmap(master)
		unix.Close(fd)
		return nil, err
	}

	r := &Region{
		kind:    kind,
		size:    size,
		fd:      fd,
		master:  master,
		working: working,
		base:    base,
	}
	r.counters = newCounters(r.pageCount(), r.wordCount(), r.cacheLineCount())
	return r, nil
}

func (r *Region) pageCount() int      { return r.size / PageSize }
func (r *Region) wordCount() int      { return r.size / WordSize }
func (r *Region) cacheLineCount() int { return r.size / CacheLineSize }

// Size returns the region's length in bytes.
func (r *Region) Size() int { return r.size }

// Base returns the working mapping's fixed address.
func (r *Region) Base() uintptr { return r.base }

// InRange reports whether addr falls within [Base(), Base()+Size()).
func (r *Region) InRange(addr uintptr) bool {
	return addr >= r.base && addr < r.base+uintptr(r.size)
}

// pageNo returns the page index of addr, which must satisfy InRange.
func (r *Region) pageNo(addr uintptr) int {
	return int((addr - r.base) / uintptr(PageSize))
}

// OpenProtection remaps working as PROT_READ, MAP_PRIVATE, establishing
// the fault-on-write discipline for the next transaction.
func (r *Region) OpenProtection() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	b, err := mmapFixed(r.base, r.fd, 0, r.size, unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		return err
	}
	r.working = b
	r.protected = true
	return nil
}

// CloseProtection remaps working as PROT_READ|PROT_WRITE, MAP_SHARED,
// the mode used when leaving instrumented execution.
func (r *Region) CloseProtection() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	b, err := mmapFixed(r.base, r.fd, 0, r.size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return err
	}
	r.working = b
	r.protected = false
	return nil
}

// Snapshot returns a point-in-time copy of the master mapping's bytes.
func (r *Region) Snapshot() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]byte, len(r.master))
	copy(out, r.master)
	return out
}

// ShareMemReadWord reads the master (not working) byte-word at addr's
// offset, bypassing the calling worker's private view. It is the read
// half of the atomics the host program exposes to instrumented code
// across the fault boundary.
func (r *Region) ShareMemReadWord(addr uintptr) (uint64, error) {
	if !r.InRange(addr) {
		return 0, ErrOutOfRange
	}
	off := addr - r.base
	if off+WordSize > uintptr(r.size) {
		return 0, ErrOutOfRange
	}
	return loadWord(r.master[off : off+WordSize]), nil
}

// ShareMemWriteWord writes val to the master byte-word at addr's
// offset, bypassing the calling worker's private view.
func (r *Region) ShareMemWriteWord(addr uintptr, val uint64) error {
	if !r.InRange(addr) {
		return ErrOutOfRange
	}
	off := addr - r.base
	if off+WordSize > uintptr(r.size) {
		return ErrOutOfRange
	}
	storeWord(r.master[off:off+WordSize], val)
	return nil
}

// Tracker exposes the region's counters and byte view to an external
// attribution reporter; see package tracker.
func (r *Region) Tracker() Tracker {
	return Tracker{region: r}
}

// Close releases the region's mappings and backing file descriptor.
// Accesses to previously returned slices are undefined after Close.
func (r *Region) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	var firstErr error
	if r.kind == GlobalsRegion {
		// A globals region's working mapping was placed by mmapFixed,
		// which unix.Munmap does not track, so unmap it directly.
		if _, _, errno := unix.Syscall(unix.SYS_MUNMAP, r.base, uintptr(r.size), 0); errno != 0 && firstErr == nil {
			firstErr = errno
		}
	} else if err := unix.Munmap(r.working); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := unix.Munmap(r.master); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := unix.Close(r.fd); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
