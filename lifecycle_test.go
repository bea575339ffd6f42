package xpersist

import "testing"

// writeByte stores val at addr within the worker's private (working)
// view, simulating what the host's instrumented code does after
// HandleWrite has unprotected the page.
func writeByte(r *Region, addr uintptr, val byte) {
	r.working[addr-r.base] = val
}

func TestSharedPageCommitMergesBothWorkersChanges(t *testing.T) {
	r, err := NewHeapRegion(PageSize)
	if err != nil {
		t.Fatalf("NewHeapRegion: %v", err)
	}
	defer r.Close()
	if err := r.OpenProtection(); err != nil {
		t.Fatalf("OpenProtection: %v", err)
	}

	w1, _ := NewWorker(r, 1)
	w2, _ := NewWorker(r, 2)

	addr1 := r.Base()              // byte 0
	addr2 := r.Base() + WordSize*2 // byte 16, same page, different word

	if err := w1.HandleWrite(addr1); err != nil {
		t.Fatalf("w1 HandleWrite: %v", err)
	}
	if err := w2.HandleWrite(addr2); err != nil {
		t.Fatalf("w2 HandleWrite: %v", err)
	}

	writeByte(r, addr1, 0xAA)
	writeByte(r, addr2, 0xBB)

	if err := w1.PeriodicCheck(); err != nil {
		t.Fatalf("w1 PeriodicCheck: %v", err)
	}
	if err := w2.PeriodicCheck(); err != nil {
		t.Fatalf("w2 PeriodicCheck: %v", err)
	}

	if !w1.private[0].alloced {
		t.Fatal("w1's page was not recognized as shared after PeriodicCheck")
	}

	w1.Commit(true)
	w2.Commit(true)

	master := r.masterPage(0)
	if master[0] != 0xAA {
		t.Fatalf("master[0] = %#x, want 0xAA", master[0])
	}
	if master[WordSize*2] != 0xBB {
		t.Fatalf("master[16] = %#x, want 0xBB", master[WordSize*2])
	}

	if r.counters.invalidates(0) == 0 {
		t.Error("no cache-line invalidation recorded across two workers' writes to the same page")
	}

	if err := w1.Begin(); err != nil {
		t.Fatalf("w1 Begin: %v", err)
	}
	if err := w2.Begin(); err != nil {
		t.Fatalf("w2 Begin: %v", err)
	}
	if w1.DirtyPageCount() != 0 || w2.DirtyPageCount() != 0 {
		t.Fatal("Begin did not clear the write set")
	}
	if r.counters.pageUserCount(0) != 0 {
		t.Fatalf("pageUserCount(0) after both workers' Begin = %d, want 0", r.counters.pageUserCount(0))
	}
}

func TestUnsharedPageCommitUsesPlainDiffPath(t *testing.T) {
	r, err := NewHeapRegion(PageSize)
	if err != nil {
		t.Fatalf("NewHeapRegion: %v", err)
	}
	defer r.Close()
	if err := r.OpenProtection(); err != nil {
		t.Fatalf("OpenProtection: %v", err)
	}

	w, _ := NewWorker(r, 1)
	addr := r.Base() + WordSize*3
	if err := w.HandleWrite(addr); err != nil {
		t.Fatalf("HandleWrite: %v", err)
	}
	writeByte(r, addr, 0x7)

	// No PeriodicCheck: the page was never sampled or found shared, so
	// Commit must take the plain diff path regardless of doChecking.
	w.Commit(true)

	master := r.masterPage(0)
	if master[WordSize*3] != 0x7 {
		t.Fatalf("master byte = %#x, want 0x7", master[WordSize*3])
	}
}

func TestPeriodicCheckCountsWordDeltasAcrossPasses(t *testing.T) {
	r, err := NewHeapRegion(PageSize)
	if err != nil {
		t.Fatalf("NewHeapRegion: %v", err)
	}
	defer r.Close()
	if err := r.OpenProtection(); err != nil {
		t.Fatalf("OpenProtection: %v", err)
	}

	w1, _ := NewWorker(r, 1)
	w2, _ := NewWorker(r, 2)

	addr := r.Base()
	if err := w1.HandleWrite(addr); err != nil {
		t.Fatalf("w1 HandleWrite: %v", err)
	}
	if err := w2.HandleWrite(addr); err != nil {
		t.Fatalf("w2 HandleWrite: %v", err)
	}

	writeByte(r, addr, 1)
	if err := w1.PeriodicCheck(); err != nil { // baseline pass: binds temp_twin
		t.Fatalf("PeriodicCheck (baseline): %v", err)
	}
	if w1.private[0].localWordChanges[0] != 0 {
		t.Fatal("baseline pass counted a delta")
	}

	writeByte(r, addr, 2)
	if err := w1.PeriodicCheck(); err != nil { // first real diff pass
		t.Fatalf("PeriodicCheck (diff): %v", err)
	}
	if w1.private[0].localWordChanges[0] != 1 {
		t.Fatalf("localWordChanges[0] = %d, want 1", w1.private[0].localWordChanges[0])
	}

	writeByte(r, addr, 2) // no change from last sample
	if err := w1.PeriodicCheck(); err != nil {
		t.Fatalf("PeriodicCheck (no-op): %v", err)
	}
	if w1.private[0].localWordChanges[0] != 1 {
		t.Fatalf("localWordChanges[0] after a no-op pass = %d, want 1 (siphash fast path should skip it)", w1.private[0].localWordChanges[0])
	}
}
