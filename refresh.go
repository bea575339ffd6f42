package xpersist

import "golang.org/x/sys/unix"

// Begin is the refresh step: it discards this worker's private copies
// of every dirtied page so the next transaction's reads observe the
// committed master, then clears the write set and returns pooled
// resources. Call it once per transaction boundary, after Commit.
//
// The dirty set is walked in pageNo order (already true, since it is
// kept sorted) and maximal runs of contiguous page numbers are
// refreshed with one madvise+mprotect pair each — a throughput
// optimization that is correctness-equivalent to refreshing page by
// page.
func (w *Worker) Begin() error {
	r := w.region
	i := 0
	for i < len(w.private) {
		j := i + 1
		for j < len(w.private) && w.private[j].pageNo == w.private[j-1].pageNo+1 {
			j++
		}
		if err := r.refreshRun(w.private[i].pageNo, w.private[j-1].pageNo); err != nil {
			return err
		}
		i = j
	}

	for _, pi := range w.private {
		r.counters.decPageUser(pi.pageNo)
		if pi.tempTwin != nil {
			w.twins.put(pi.tempTwin)
		}
		w.twins.put(pi.origTwin)
		w.pages.put(pi)
	}
	w.private = w.private[:0]
	return nil
}

// refreshRun drops the private copies of pages [first, last] (inclusive)
// and reprotects the combined range PROT_READ.
func (r *Region) refreshRun(first, last int) error {
	off := first * PageSize
	length := (last - first + 1) * PageSize
	run := r.working[off : off+length]

	if err := unix.Madvise(run, unix.MADV_DONTNEED); err != nil {
		return err
	}
	if err := unix.Mprotect(run, unix.PROT_READ); err != nil {
		return err
	}
	return nil
}
