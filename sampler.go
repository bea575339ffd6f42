package xpersist

import "github.com/dchest/siphash"

// wordsPerPage is the number of WordSize words per page.
func wordsPerPage() int { return PageSize / WordSize }

// cacheLinesPerPage is the number of cache lines per page.
func cacheLinesPerPage() int { return PageSize / CacheLineSize }

// globalCacheLine maps a page number and a within-page word index to
// the region-wide cache-line index counters.recordCacheInvalidate
// expects.
func globalCacheLine(pageNo, wordIdx int) int {
	return pageNo*cacheLinesPerPage() + wordIdx/WordsPerCacheLine
}

// PeriodicCheck is the sampling loop: for every page this worker has
// dirtied in the current transaction, it confirms whether the page is
// now known to be shared, binds a temporary twin the first time a page
// is found shared, and otherwise diffs the working page against that
// twin to tally per-word deltas and cross-worker cache-line
// interleaving. It is meant to be called between transactions (at lock
// acquire/release, in a real deployment).
func (w *Worker) PeriodicCheck() error {
	r := w.region
	for _, pi := range w.private {
		if !pi.shared {
			if r.counters.pageUserCount(pi.pageNo) <= 1 {
				continue
			}
			pi.shared = true
		}

		createTemp := false
		if !pi.alloced {
			twin, err := w.twins.get()
			if err != nil {
				return err
			}
			pi.tempTwin = twin
			pi.localWordChanges = make([]uint32, wordsPerPage())
			pi.alloced = true
			createTemp = true
		}

		w.recordChangesAndUpdate(pi, createTemp)
	}
	return nil
}

// recordChangesAndUpdate updates one page's sampling state. On the
// pass that just bound the temporary twin it only establishes the
// baseline; on every later pass it scans strictly left to right,
// counting per-word deltas and recording at most one cache-line
// invalidation per line per pass, so a single cache line is counted at
// most once per sampling pass per worker.
func (w *Worker) recordChangesAndUpdate(pi *PageInfo, createTemp bool) {
	working := w.region.pageSlice(pi.pageNo)

	if createTemp {
		copy(pi.tempTwin, working)
		return
	}

	if siphash.Hash(0, 0, working) == siphash.Hash(0, 0, pi.tempTwin) {
		// Fast path: the page is byte-identical to the last sample,
		// so the word-by-word scan below would find nothing. Purely
		// a performance short-circuit; it changes no counter that the
		// scan would not itself have left untouched.
		return
	}

	lastCacheNo := -1
	nwords := wordsPerPage()
	for i := 0; i < nwords; i++ {
		off := i * WordSize
		wv := loadWord(working[off : off+WordSize])
		tv := loadWord(pi.tempTwin[off : off+WordSize])
		if wv == tv {
			continue
		}
		pi.localWordChanges[i]++
		cacheNo := i / WordsPerCacheLine
		if cacheNo != lastCacheNo {
			w.region.counters.recordCacheInvalidate(globalCacheLine(pi.pageNo, i), w.id)
			lastCacheNo = cacheNo
		}
		storeWord(pi.tempTwin[off:off+WordSize], wv)
	}
}
