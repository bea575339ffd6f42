package xpersist

import "golang.org/x/sys/unix"

// PageSize is the machine page size used for all region arithmetic.
// It is read once from the kernel rather than hard-coded, since this
// module runs as ordinary userspace code on whatever architecture it
// is deployed to and cannot assume a single fixed page size.
var PageSize = unix.Getpagesize()

// CacheLineSize is the width, in bytes, of the false-sharing
// attribution unit. 64 bytes covers every mainstream amd64/arm64 part
// this module targets.
const CacheLineSize = 64

// WordSize is the width, in bytes, of the unit tracked by word_changes
// and scanned during sampling and commit.
const WordSize = 8

// WordsPerCacheLine is the number of WordSize words in one cache line.
const WordsPerCacheLine = CacheLineSize / WordSize

// MinInvalidatesCare is the conventional careThreshold to pass to
// Worker.CleanupHeapObject: a cache line with at least this many
// recorded invalidations is considered interesting enough that its
// counters must survive a free, so the attribution reporter can still
// see the signal. CleanupHeapObject does not read this constant itself;
// it uses the threshold its caller passes.
const MinInvalidatesCare = 1

// SharedMark is the reserved word-owner value meaning "written by two
// or more distinct workers". It can never collide with a real worker
// ID because NewWorker refuses to hand out that ID.
const SharedMark uint32 = 0xffffffff
