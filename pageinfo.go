package xpersist

// PageInfo is the process-local record created on the first faulting
// write to a page within one transaction. Its lifetime is exactly one
// transaction: created by HandleWrite, possibly mutated several times
// by PeriodicCheck, consumed by Commit, then recycled.
type PageInfo struct {
	pageNo    int
	pageStart uintptr

	origTwin []byte // immutable snapshot taken at enrollment
	tempTwin []byte // present only if alloced; refreshed each sample

	shared  bool // true once this worker has seen >=2 workers enrolled on this page
	alloced bool // true iff tempTwin and localWordChanges are bound

	localWordChanges []uint32 // word-indexed delta counts, length = PageSize/WordSize
}

// PageNo returns the page's index within its region.
func (p *PageInfo) PageNo() int { return p.pageNo }

// Shared reports whether this worker has seen at least two workers
// enrolled on this page during the current transaction. It is set at
// enrollment if another worker was already enrolled, or otherwise by a
// later PeriodicCheck that finds a second enrollment; a worker that
// enrolled first reports false until then.
func (p *PageInfo) Shared() bool { return p.shared }

// PageStart returns the page's base address within the region.
func (p *PageInfo) PageStart() uintptr { return p.pageStart }

func (p *PageInfo) reset() {
	p.pageNo = 0
	p.pageStart = 0
	p.origTwin = nil
	p.tempTwin = nil
	p.shared = false
	p.alloced = false
	p.localWordChanges = nil
}

// pagePool is a bounded, process-local pool of *PageInfo records,
// reused per transaction. See twinPool's doc comment for why a plain
// free-list, not a lock-free allocator, is the right shape here.
type pagePool struct {
	free []*PageInfo
	cap  int
}

func newPagePool(capacity int) *pagePool {
	p := &pagePool{cap: capacity}
	p.free = make([]*PageInfo, 0, capacity)
	for i := 0; i < capacity; i++ {
		p.free = append(p.free, &PageInfo{})
	}
	return p
}

func (p *pagePool) get() (*PageInfo, error) {
	n := len(p.free)
	if n == 0 {
		return nil, ErrPoolExhausted
	}
	pi := p.free[n-1]
	p.free = p.free[:n-1]
	return pi, nil
}

func (p *pagePool) put(pi *PageInfo) {
	if len(p.free) >= p.cap {
		return
	}
	pi.reset()
	p.free = append(p.free, pi)
}
