package xpersist

import "sort"

// Worker is the process-local handle: one per cooperating worker
// process, holding everything that is strictly process-local (the
// dirty-page set, the page-entry and twin pools, and each PageInfo's
// localWordChanges). The Region it was built from holds everything
// that is shared: the backing file descriptor, master, and the counter
// arrays.
//
// A Worker is not safe for concurrent use by more than one goroutine:
// it models one worker process as one instruction stream, and the real
// substitution of threads for processes is left to its caller.
type Worker struct {
	id     int32
	region *Region

	pages *pagePool
	twins *twinPool

	// private holds dirtied-this-transaction PageInfos, kept sorted by
	// pageNo so Begin can batch contiguous runs.
	private []*PageInfo
}

// defaultPoolCapacity bounds the maximum write-set of a single
// transaction. It is generous enough for ordinary workloads without
// making a runaway transaction silently unbounded.
const defaultPoolCapacity = 4096

// NewWorker creates a worker process handle over region. id must be a
// positive, caller-assigned identifier unique among the region's
// concurrently active workers (in a real deployment, the OS pid; in
// tests, any distinct small positive integer) — it must never equal 0
// (reserved for "unclaimed") or SharedMark (reserved for "claimed by
// more than one worker").
func NewWorker(region *Region, id int32) (*Worker, error) {
	if id == 0 || uint32(id) == SharedMark {
		return nil, ErrOutOfRange
	}
	return &Worker{
		id:     id,
		region: region,
		pages:  newPagePool(defaultPoolCapacity),
		twins:  newTwinPool(2 * defaultPoolCapacity),
	}, nil
}

// ID returns the worker's process identifier.
func (w *Worker) ID() int32 { return w.id }

// Region returns the region this worker operates over.
func (w *Worker) Region() *Region { return w.region }

// findPrivate returns the index of pageNo in w.private (sorted by
// pageNo) and whether it was found, using binary search.
func (w *Worker) findPrivate(pageNo int) (int, bool) {
	i := sort.Search(len(w.private), func(i int) bool {
		return w.private[i].pageNo >= pageNo
	})
	if i < len(w.private) && w.private[i].pageNo == pageNo {
		return i, true
	}
	return i, false
}

// insertPrivate inserts or overwrites the PageInfo for pageNo: a
// second enrollment of an already-dirtied page within one transaction
// replaces the earlier PageInfo outright rather than asserting
// uniqueness.
func (w *Worker) insertPrivate(pi *PageInfo) {
	i, found := w.findPrivate(pi.pageNo)
	if found {
		old := w.private[i]
		w.private[i] = pi
		if old.tempTwin != nil {
			w.twins.put(old.tempTwin)
		}
		if old.origTwin != nil {
			w.twins.put(old.origTwin)
		}
		w.pages.put(old)
		return
	}
	w.private = append(w.private, nil)
	copy(w.private[i+1:], w.private[i:])
	w.private[i] = pi
}

// DirtyPageCount returns the number of pages currently enrolled in
// this worker's write set.
func (w *Worker) DirtyPageCount() int { return len(w.private) }
