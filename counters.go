package xpersist

import "sync/atomic"

// wordCell packs a (tid, version) pair into one atomically-writable
// machine word, which also yields per-cell atomicity for free. tid
// occupies the high 32 bits, version the low 32.
type wordCell uint64

func packCell(tid, version uint32) wordCell {
	return wordCell(uint64(tid)<<32 | uint64(version))
}

func (c wordCell) tid() uint32     { return uint32(c >> 32) }
func (c wordCell) version() uint32 { return uint32(c) }

// counters holds the shared, region-scoped state: per-page dirtier
// counts, per-cache-line last writer and invalidation counts, and
// per-word (owner, version) cells. It is created once by the region
// constructor and referenced by every worker through Region, never as
// a process-wide singleton.
type counters struct {
	pageUsers       []atomic.Int32
	cacheLastThread []atomic.Int32
	cacheInvalidate []atomic.Int64
	wordChanges     []atomic.Uint64
}

func newCounters(pages, words, cacheLines int) *counters {
	return &counters{
		pageUsers:       make([]atomic.Int32, pages),
		cacheLastThread: make([]atomic.Int32, cacheLines),
		cacheInvalidate: make([]atomic.Int64, cacheLines),
		wordChanges:     make([]atomic.Uint64, words),
	}
}

// incPageUser atomically increments the dirtier count for page and
// returns the value it held beforehand.
func (c *counters) incPageUser(page int) int32 {
	return c.pageUsers[page].Add(1) - 1
}

// decPageUser atomically decrements the dirtier count for page. It is
// the refresh-time counterpart needed to keep the count equal to the
// number of distinct workers whose *current* transaction has enrolled
// the page, across more than one transaction; write-capture only ever
// increments it, at enrollment. See DESIGN.md.
func (c *counters) decPageUser(page int) {
	c.pageUsers[page].Add(-1)
}

func (c *counters) pageUserCount(page int) int32 {
	return c.pageUsers[page].Load()
}

// recordCacheInvalidate atomically exchanges the last-writer slot for
// line with workerID, and if the previous occupant was a different,
// non-zero worker, atomically increments that line's invalidation
// count. It returns whether the increment happened, for callers that
// need to dedup within a pass.
func (c *counters) recordCacheInvalidate(line int, workerID int32) bool {
	last := c.cacheLastThread[line].Swap(workerID)
	if last != 0 && last != workerID {
		c.cacheInvalidate[line].Add(1)
		return true
	}
	return false
}

func (c *counters) invalidates(line int) int64 {
	return c.cacheInvalidate[line].Load()
}

// recordWordChange loads the (tid, version) cell for word, claims it
// for workerID if unclaimed, marks it SharedMark if claimed by someone
// else, and adds delta to the version field, saturating at the field
// width. The whole update is retried under a CAS loop so the cell is
// updated atomically with no cross-cell ordering requirement.
func (c *counters) recordWordChange(word int, delta uint32, workerID uint32) {
	cell := &c.wordChanges[word]
	for {
		old := wordCell(cell.Load())
		tid := old.tid()
		switch {
		case tid == 0:
			tid = workerID
		case tid != workerID && tid != SharedMark:
			tid = SharedMark
		}
		version := old.version()
		if sum := uint64(version) + uint64(delta); sum > 0xffffffff {
			version = 0xffffffff
		} else {
			version = uint32(sum)
		}
		next := packCell(tid, version)
		if cell.CompareAndSwap(uint64(old), uint64(next)) {
			return
		}
	}
}

func (c *counters) wordCell(word int) wordCell {
	return wordCell(c.wordChanges[word].Load())
}

// zeroRange clears cache_invalidates and word_changes for the cache
// lines [first, last) and their constituent words, used by
// CleanupHeapObject.
func (c *counters) zeroRange(firstLine, lastLine int) {
	for l := firstLine; l < lastLine; l++ {
		c.cacheLastThread[l].Store(0)
		c.cacheInvalidate[l].Store(0)
	}
	firstWord := firstLine * WordsPerCacheLine
	lastWord := lastLine * WordsPerCacheLine
	for w := firstWord; w < lastWord && w < len(c.wordChanges); w++ {
		c.wordChanges[w].Store(0)
	}
}

func (c *counters) maxInvalidates(firstLine, lastLine int) int64 {
	var max int64
	for l := firstLine; l < lastLine; l++ {
		if v := c.cacheInvalidate[l].Load(); v > max {
			max = v
		}
	}
	return max
}
