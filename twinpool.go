package xpersist

// twinPool is a bounded, process-local pool of page-sized scratch
// buffers used for orig_twin and temp_twin snapshots. It is a plain
// free-list, not a lock-free bump allocator: the signal-safety demands
// of a real SIGSEGV handler apply to fault delivery itself, which this
// package never installs — a Worker, and therefore its pools, is
// driven by a single goroutine at a time, exactly as one worker
// process has one instruction stream.
type twinPool struct {
	free [][]byte
	cap  int
}

func newTwinPool(capacity int) *twinPool {
	p := &twinPool{cap: capacity}
	p.free = make([][]byte, 0, capacity)
	for i := 0; i < capacity; i++ {
		p.free = append(p.free, make([]byte, PageSize))
	}
	return p
}

// get removes a zeroed, page-sized buffer from the pool.
func (p *twinPool) get() ([]byte, error) {
	n := len(p.free)
	if n == 0 {
		return nil, ErrPoolExhausted
	}
	b := p.free[n-1]
	p.free = p.free[:n-1]
	return b, nil
}

// put returns a buffer to the pool for reuse by a later transaction.
func (p *twinPool) put(b []byte) {
	if len(p.free) >= p.cap {
		return
	}
	clear(b)
	p.free = append(p.free, b)
}
