package xpersist

import "errors"

// Errors returned by Region and Worker operations that are recoverable
// at the call site (construction-time sizing mistakes, pool exhaustion
// discovered before the fatal path is reached). HandleWrite panics
// instead when it is called with an out-of-range address or when its
// mprotect of the faulting page fails, because the core has no fallback
// for them and the region's own invariants would otherwise be violated.
// Other syscall failures (mmap during region construction and in
// OpenProtection/CloseProtection, madvise and mprotect in Begin) are
// returned as errors; the package does not abort on them.
var (
	// ErrRegionSize is returned when a region is constructed with a
	// non-positive size or, for a globals region, an init slice that
	// is empty.
	ErrRegionSize = errors.New("xpersist: invalid region size")

	// ErrOutOfRange is returned by operations that accept an address
	// or page number lying outside the region.
	ErrOutOfRange = errors.New("xpersist: address out of range")

	// ErrPoolExhausted is returned when a transaction's write set
	// exceeds the bound configured for the page-entry or twin-page
	// pool. The host program is expected to choose shorter
	// transactions; this is fatal to the transaction, not to the
	// region.
	ErrPoolExhausted = errors.New("xpersist: page or twin pool exhausted")

	// ErrClosed is returned by OpenProtection and CloseProtection after
	// Close has released the backing mapping.
	ErrClosed = errors.New("xpersist: region closed")
)
