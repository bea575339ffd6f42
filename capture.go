package xpersist

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// pageSlice returns the region's working-mapping bytes for page pageNo.
func (r *Region) pageSlice(pageNo int) []byte {
	off := pageNo * PageSize
	return r.working[off : off+PageSize]
}

// HandleWrite is the write-capture path: it is called by the host's
// fault-delivery plumbing — a SIGSEGV handler, a userfaultfd reader,
// or the recovered-panic trampoline cmd/xpdemo demonstrates — after
// it has confirmed addr lies within the region.
//
// On return the page containing addr is writable in this worker's
// private view, enrolled in the worker's dirty set, and page_users has
// been incremented exactly once for it.
//
// addr outside the region is the caller's bug, not a recoverable
// condition: filtering out-of-range addresses is the fault handler's
// responsibility, so HandleWrite panics rather than returning an error
// for that case.
func (w *Worker) HandleWrite(addr uintptr) error {
	r := w.region
	if !r.InRange(addr) {
		panic(fmt.Sprintf("xpersist: HandleWrite: %#x is outside region [%#x, %#x)", addr, r.base, r.base+uintptr(r.size)))
	}

	pageNo := r.pageNo(addr)
	pageStart := r.base + uintptr(pageNo*PageSize)
	page := r.pageSlice(pageNo)

	if err := unix.Mprotect(page, unix.PROT_READ|unix.PROT_WRITE); err != nil {
		// Resource exhaustion mid-fault is fatal: the region's
		// protection discipline is load-bearing and there is no
		// fallback.
		panic(fmt.Sprintf("xpersist: mprotect page %d: %v", pageNo, err))
	}

	// Force the kernel to materialize this process's private COW copy
	// of the page before it is snapshotted, by reading and rewriting
	// the first word through an atomic (hence unelidable) access — an
	// ordering barrier strong enough that the compiler cannot elide
	// it, without resorting to inline assembly.
	first := wordAt(page[:WordSize])
	first.Store(first.Load())

	twin, err := w.twins.get()
	if err != nil {
		return err
	}
	copy(twin, page)

	pi, err := w.pages.get()
	if err != nil {
		w.twins.put(twin)
		return err
	}
	*pi = PageInfo{pageNo: pageNo, pageStart: pageStart, origTwin: twin}

	prevUsers := r.counters.incPageUser(pageNo)
	pi.shared = prevUsers != 0

	w.insertPrivate(pi)
	return nil
}
