package xpersist

import (
	"sync/atomic"
	"unsafe"
)

// wordAt reinterprets the WordSize bytes at b[0:WordSize] as an atomic
// word cell. b must be aligned to WordSize, which holds for any slice
// carved out of a page-aligned mmap mapping at a WordSize-aligned
// offset — true of every word and cache-line boundary this package
// computes, since PageSize is always a multiple of WordSize.
func wordAt(b []byte) *atomic.Uint64 {
	return (*atomic.Uint64)(unsafe.Pointer(&b[0]))
}

// loadWord atomically reads the machine word stored at b[0:WordSize].
func loadWord(b []byte) uint64 {
	return wordAt(b).Load()
}

// storeWord atomically writes val to b[0:WordSize].
func storeWord(b []byte, val uint64) {
	wordAt(b).Store(val)
}
