package xpersist

import "testing"

func TestTwinPoolExhaustion(t *testing.T) {
	p := newTwinPool(1)
	b, err := p.get()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(b) != PageSize {
		t.Fatalf("len(b) = %d, want %d", len(b), PageSize)
	}
	if _, err := p.get(); err != ErrPoolExhausted {
		t.Fatalf("second get = %v, want ErrPoolExhausted", err)
	}
	p.put(b)
	if _, err := p.get(); err != nil {
		t.Fatalf("get after put: %v", err)
	}
}

func TestTwinPoolPutZeroesBuffer(t *testing.T) {
	p := newTwinPool(1)
	b, _ := p.get()
	for i := range b {
		b[i] = 0xff
	}
	p.put(b)
	reused, _ := p.get()
	for i, v := range reused {
		if v != 0 {
			t.Fatalf("reused[%d] = %#x, want 0 (pool should zero buffers on put)", i, v)
			break
		}
	}
}

func TestPagePoolExhaustion(t *testing.T) {
	p := newPagePool(1)
	pi, err := p.get()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	pi.pageNo = 9
	if _, err := p.get(); err != ErrPoolExhausted {
		t.Fatalf("second get = %v, want ErrPoolExhausted", err)
	}
	p.put(pi)
	reused, err := p.get()
	if err != nil {
		t.Fatalf("get after put: %v", err)
	}
	if reused.pageNo != 0 {
		t.Fatal("put did not reset the recycled PageInfo")
	}
}
