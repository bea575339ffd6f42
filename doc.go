// Package xpersist implements a page-protected, copy-on-write shared
// memory region: the persistent memory manager at the core of a
// process-based (rather than thread-based) concurrency runtime.
//
// A Region wraps a single anonymous, unlinked backing file with two
// overlaid mappings: a master mapping that is always shared and
// read/write, and a working mapping that each cooperating worker
// process toggles between a private copy-on-write view
// (Region.OpenProtection; Worker.Begin keeps it private and read-only
// from one transaction to the next) and a shared read/write view
// (Region.CloseProtection, used when leaving instrumented execution).
// A first write to a page of the working mapping is expected to fault;
// the caller's fault-delivery plumbing (a SIGSEGV handler, a userfaultfd
// reader, or — as cmd/xpdemo demonstrates — a recovered Go runtime
// fault) calls Worker.HandleWrite with the faulting address, which
// unprotects the page, snapshots it, and enrolls it in the worker's
// dirty set. Between transactions Worker.PeriodicCheck samples dirtied
// pages for word-level deltas and cross-process cache-line
// interleaving. At a transaction boundary Worker.Commit merges the
// byte-level diff of every dirty page into the master mapping, and
// Worker.Begin discards the worker's private copies so the next
// transaction observes the committed state.
//
// Everything outside this package is left to its caller: substituting
// OS threads with processes, wiring SIGSEGV or userfaultfd delivery to
// HandleWrite, the underlying page allocator, and the heuristics that
// attribute counters to source-level objects. Package tracker is a
// reference implementation of that last piece.
package xpersist
