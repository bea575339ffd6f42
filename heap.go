package xpersist

// CleanupHeapObject is invoked by the heap collaborator when an
// allocation spanning [ptr, ptr+size) is freed and about to be reused.
// If any cache line the allocation covers has accumulated at least
// careThreshold invalidations, it refuses to zero the counters — so an
// attribution reporter can still see the false-sharing signal — and
// returns false. Otherwise it zeroes the covered cache-invalidation
// and word-change entries and returns true.
func (w *Worker) CleanupHeapObject(ptr uintptr, size int, careThreshold int64) (bool, error) {
	r := w.region
	if !r.InRange(ptr) || !r.InRange(ptr+uintptr(size)-1) {
		return false, ErrOutOfRange
	}

	firstLine := int(ptr-r.base) / CacheLineSize
	lastLine := int(ptr+uintptr(size)-r.base-1)/CacheLineSize + 1

	if r.counters.maxInvalidates(firstLine, lastLine) >= careThreshold {
		return false, nil
	}
	r.counters.zeroRange(firstLine, lastLine)
	return true, nil
}
