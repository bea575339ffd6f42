package xpersist

import (
	"bytes"
	"testing"
)

func TestNewHeapRegionRoundsUpToPage(t *testing.T) {
	r, err := NewHeapRegion(1)
	if err != nil {
		t.Fatalf("NewHeapRegion: %v", err)
	}
	defer r.Close()

	if r.Size() != PageSize {
		t.Fatalf("Size() = %d, want %d", r.Size(), PageSize)
	}
	if r.Base() == 0 {
		t.Fatal("Base() is zero")
	}
}

func TestNewHeapRegionRejectsNonPositiveSize(t *testing.T) {
	if _, err := NewHeapRegion(0); err != ErrRegionSize {
		t.Fatalf("NewHeapRegion(0) = %v, want ErrRegionSize", err)
	}
	if _, err := NewHeapRegion(-1); err != ErrRegionSize {
		t.Fatalf("NewHeapRegion(-1) = %v, want ErrRegionSize", err)
	}
}

func TestNewGlobalsRegionRejectsMisaligned(t *testing.T) {
	init := make([]byte, 2*PageSize)
	// Slicing off the front almost certainly breaks page alignment.
	misaligned := init[1 : PageSize+1]
	if _, err := NewGlobalsRegion(misaligned); err == nil {
		t.Fatal("NewGlobalsRegion accepted a misaligned slice")
	}
}

func TestNewGlobalsRegionRejectsEmpty(t *testing.T) {
	if _, err := NewGlobalsRegion(nil); err != ErrRegionSize {
		t.Fatalf("NewGlobalsRegion(nil) = %v, want ErrRegionSize", err)
	}
}

func TestRegionInRange(t *testing.T) {
	r, err := NewHeapRegion(PageSize)
	if err != nil {
		t.Fatalf("NewHeapRegion: %v", err)
	}
	defer r.Close()

	if !r.InRange(r.Base()) {
		t.Error("Base() reported out of range")
	}
	if !r.InRange(r.Base() + uintptr(r.Size()) - 1) {
		t.Error("last byte reported out of range")
	}
	if r.InRange(r.Base() + uintptr(r.Size())) {
		t.Error("one past the end reported in range")
	}
	if r.InRange(r.Base() - 1) {
		t.Error("one before the base reported in range")
	}
}

func TestRegionShareMemReadWriteWord(t *testing.T) {
	r, err := NewHeapRegion(PageSize)
	if err != nil {
		t.Fatalf("NewHeapRegion: %v", err)
	}
	defer r.Close()

	if err := r.ShareMemWriteWord(r.Base(), 0xdeadbeef); err != nil {
		t.Fatalf("ShareMemWriteWord: %v", err)
	}
	got, err := r.ShareMemReadWord(r.Base())
	if err != nil {
		t.Fatalf("ShareMemReadWord: %v", err)
	}
	if got != 0xdeadbeef {
		t.Fatalf("ShareMemReadWord = %#x, want %#x", got, 0xdeadbeef)
	}

	if _, err := r.ShareMemReadWord(r.Base() - 8); err != ErrOutOfRange {
		t.Fatalf("read before base = %v, want ErrOutOfRange", err)
	}
	lastWord := r.Base() + uintptr(r.Size()) - WordSize
	if _, err := r.ShareMemReadWord(lastWord + 1); err != ErrOutOfRange {
		t.Fatalf("unaligned tail read = %v, want ErrOutOfRange", err)
	}
}

func TestRegionSnapshotIsACopy(t *testing.T) {
	r, err := NewHeapRegion(PageSize)
	if err != nil {
		t.Fatalf("NewHeapRegion: %v", err)
	}
	defer r.Close()

	if err := r.ShareMemWriteWord(r.Base(), 1); err != nil {
		t.Fatalf("ShareMemWriteWord: %v", err)
	}
	snap := r.Snapshot()
	if err := r.ShareMemWriteWord(r.Base(), 2); err != nil {
		t.Fatalf("ShareMemWriteWord: %v", err)
	}
	if loadWord(snap[:WordSize]) != 1 {
		t.Fatal("Snapshot mutated after being taken, or aliases master")
	}
	after := r.Snapshot()
	if loadWord(after[:WordSize]) != 2 {
		t.Fatal("Snapshot did not observe the later write")
	}
	if bytes.Equal(snap, after) {
		t.Fatal("two snapshots taken around a write are identical")
	}
}

func TestRegionCloseIsIdempotentAndLocksOut(t *testing.T) {
	r, err := NewHeapRegion(PageSize)
	if err != nil {
		t.Fatalf("NewHeapRegion: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if err := r.OpenProtection(); err != ErrClosed {
		t.Fatalf("OpenProtection after Close = %v, want ErrClosed", err)
	}
}
