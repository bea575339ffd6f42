package xpersist

// mergeWord performs a masked merge: compare local and twin byte-wise,
// and write into dest only the bytes that differ, leaving the rest —
// which may have been concurrently written by another worker —
// untouched. The merged word is published with a single atomic store
// so other workers never observe a torn word. It reports whether dest
// changed.
//
// A real SIMD build would do the byte-wise compare-and-select as one
// 16-byte lane operation; this scalar byte loop is the portable
// fallback, semantically equivalent to it modulo the granularity at
// which unchanged bytes are skipped.
func mergeWord(dest, local, twin []byte) bool {
	var merged [WordSize]byte
	changed := false
	for b := 0; b < WordSize; b++ {
		if local[b] != twin[b] {
			merged[b] = local[b]
			changed = true
		} else {
			merged[b] = dest[b]
		}
	}
	if !changed {
		return false
	}
	storeWord(dest, loadWord(merged[:]))
	return true
}

// commitPageDiffs performs a byte-level masked merge of local (the
// working page) against twin into the master page for pageNo, word by
// word.
func (r *Region) commitPageDiffs(local, twin []byte, pageNo int) {
	master := r.masterPage(pageNo)
	n := wordsPerPage()
	for i := 0; i < n; i++ {
		off := i * WordSize
		mergeWord(master[off:off+WordSize], local[off:off+WordSize], twin[off:off+WordSize])
	}
}

func (r *Region) masterPage(pageNo int) []byte {
	off := pageNo * PageSize
	return r.master[off : off+PageSize]
}

// checkCommitPage is the full-instrumentation commit path taken for
// pages found shared and sampled at least once. It walks the page word
// by word, classifying each word as "reverted to pristine" (an ABA
// case, possibly still counted by sampling), or "actually changed"
// (merged into master and counted, with an extra +1 delta for any
// final commit-time change that sampling never observed).
func (w *Worker) checkCommitPage(pi *PageInfo) {
	r := w.region
	working := r.pageSlice(pi.pageNo)
	master := r.masterPage(pi.pageNo)
	baseWord := pi.pageNo * wordsPerPage()

	lastCacheNo := -1
	n := wordsPerPage()
	for i := 0; i < n; i++ {
		off := i * WordSize
		wv := loadWord(working[off : off+WordSize])
		ov := loadWord(pi.origTwin[off : off+WordSize])

		if wv == ov {
			if pi.localWordChanges[i] != 0 {
				r.counters.recordWordChange(baseWord+i, pi.localWordChanges[i], uint32(w.id))
			}
			continue
		}

		cacheNo := i / WordsPerCacheLine
		if cacheNo != lastCacheNo {
			r.counters.recordCacheInvalidate(globalCacheLine(pi.pageNo, i), w.id)
			lastCacheNo = cacheNo
		}

		tv := loadWord(pi.tempTwin[off : off+WordSize])
		if wv != tv {
			r.counters.recordWordChange(baseWord+i, pi.localWordChanges[i]+1, uint32(w.id))
		} else {
			r.counters.recordWordChange(baseWord+i, pi.localWordChanges[i], uint32(w.id))
		}

		mergeWord(master[off:off+WordSize], working[off:off+WordSize], pi.origTwin[off:off+WordSize])
	}
}

// Commit is the commit engine. For every page in the worker's dirty
// set it merges the page's byte-level diff into the region's master
// mapping and, when doChecking is true and the page was found shared
// and sampled, updates the region's word-change and cache-invalidation
// counters. The write set is left intact — callers invoke Begin next
// to discard it.
func (w *Worker) Commit(doChecking bool) {
	for _, pi := range w.private {
		if doChecking && pi.shared && pi.alloced {
			w.checkCommitPage(pi)
			continue
		}
		w.region.commitPageDiffs(w.region.pageSlice(pi.pageNo), pi.origTwin, pi.pageNo)
	}
}
