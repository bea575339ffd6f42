package xpersist

// WordChange is the exported, read-only view of one word_changes cell:
// which worker (or SharedMark) owns the word and how many times its
// value has changed.
type WordChange struct {
	Owner   uint32
	Version uint32
}

// Tracker is the read-only interface consumed by an attribution
// reporter: a view of master's bytes plus the region's cache-line and
// word-change counters, with no access to anything process-local. The
// reporter, not this package, owns the heuristics that attribute these
// counters to source-level objects — see package tracker for a
// reference implementation.
type Tracker struct {
	region *Region
}

// Base returns the region's base address.
func (t Tracker) Base() uintptr { return t.region.Base() }

// Size returns the region's size in bytes.
func (t Tracker) Size() int { return t.region.Size() }

// Snapshot returns a point-in-time copy of the master mapping.
func (t Tracker) Snapshot() []byte { return t.region.Snapshot() }

// CacheInvalidates returns a point-in-time copy of the per-cache-line
// invalidation counts.
func (t Tracker) CacheInvalidates() []int64 {
	c := t.region.counters
	out := make([]int64, len(c.cacheInvalidate))
	for i := range out {
		out[i] = c.cacheInvalidate[i].Load()
	}
	return out
}

// WordChanges returns a point-in-time copy of the per-word owner and
// version counters.
func (t Tracker) WordChanges() []WordChange {
	c := t.region.counters
	out := make([]WordChange, len(c.wordChanges))
	for i := range out {
		cell := wordCell(c.wordChanges[i].Load())
		out[i] = WordChange{Owner: cell.tid(), Version: cell.version()}
	}
	return out
}

// CacheLineSizeBytes and WordSizeBytes report the granularities Base/Size and
// the counter arrays are indexed by — the reporter needs both to map
// a counter index back to a byte offset.
func (t Tracker) CacheLineSizeBytes() int { return CacheLineSize }
func (t Tracker) WordSizeBytes() int      { return WordSize }
