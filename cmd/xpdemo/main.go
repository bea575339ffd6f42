// Command xpdemo wires xpersist to a real fault-delivery path and
// drives a handful of independent workers through a few transactions
// each, printing a false-sharing hotspot report at the end.
//
// The fault-delivery wiring here — catching a real write fault and
// turning it into a call to Worker.HandleWrite — is left entirely to
// the caller in the xpersist package itself; this command exists only
// to prove the core's contract is usable end to end.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"runtime/debug"
	"unsafe"

	"golang.org/x/sync/errgroup"

	"xpersist"
	"xpersist/tracker"
)

func main() {
	size := flag.Int("region-size", 64*1024, "region size in bytes")
	workers := flag.Int("workers", 4, "number of independent worker demos to run concurrently")
	transactions := flag.Int("transactions", 8, "transactions per worker")
	writesPerTxn := flag.Int("writes", 6, "writes per transaction")
	flag.Parse()

	if err := run(*size, *workers, *transactions, *writesPerTxn); err != nil {
		log.Fatal(err)
	}
}

func run(size, workers, transactions, writesPerTxn int) error {
	g, _ := errgroup.WithContext(context.Background())

	for i := 0; i < workers; i++ {
		id := i + 1
		g.Go(func() error {
			return demoWorker(id, size, transactions, writesPerTxn)
		})
	}
	return g.Wait()
}

// demoWorker owns a private region: within one OS process every
// worker's protected mapping lives in the same address space, so only
// one worker at a time may hold real write-protection over a given
// region. Giving each demo worker its own region keeps the real
// mmap/mprotect path honest while still exercising it concurrently.
func demoWorker(id, size, transactions, writesPerTxn int) error {
	region, err := xpersist.NewHeapRegion(size)
	if err != nil {
		return fmt.Errorf("worker %d: new region: %w", id, err)
	}
	defer region.Close()

	w, err := xpersist.NewWorker(region, int32(id))
	if err != nil {
		return fmt.Errorf("worker %d: new worker: %w", id, err)
	}

	defer debug.SetPanicOnFault(debug.SetPanicOnFault(true))

	for t := 0; t < transactions; t++ {
		if err := region.OpenProtection(); err != nil {
			return fmt.Errorf("worker %d: open protection: %w", id, err)
		}

		for n := 0; n < writesPerTxn; n++ {
			off := uintptr(rand.Intn(size))
			addr := region.Base() + off
			if err := protectedStore(w, addr, byte(t+n+1)); err != nil {
				return fmt.Errorf("worker %d: protected store: %w", id, err)
			}
		}

		if err := w.PeriodicCheck(); err != nil {
			return fmt.Errorf("worker %d: periodic check: %w", id, err)
		}
		w.Commit(true)
		if err := w.Begin(); err != nil {
			return fmt.Errorf("worker %d: begin: %w", id, err)
		}
	}

	if err := region.CloseProtection(); err != nil {
		return fmt.Errorf("worker %d: close protection: %w", id, err)
	}

	rep := tracker.Check(region.Tracker(), region.Base()+uintptr(size))
	printReport(id, rep)
	return nil
}

// protectedStore writes val at addr, recovering a real protection
// fault (if one occurs) into a call to Worker.HandleWrite and retrying
// once — the pure-Go analogue of a SIGSEGV handler, which xpersist
// itself never installs. debug.SetPanicOnFault makes an invalid access
// panic instead of crashing the process; the panic value's Addr()
// method reports the faulting address.
func protectedStore(w *xpersist.Worker, addr uintptr, val byte) error {
	const maxAttempts = 2
	for attempt := 0; attempt < maxAttempts; attempt++ {
		faultAddr, faultErr, faulted := tryStore(addr, val)
		if !faulted {
			return nil
		}
		if faultErr != nil {
			return faultErr
		}
		if err := w.HandleWrite(faultAddr); err != nil {
			return err
		}
	}
	return fmt.Errorf("xpdemo: %#x faulted again after HandleWrite", addr)
}

// tryStore attempts the write once, recovering a real protection
// fault turned into a panic by debug.SetPanicOnFault. Its panic value
// implements interface{ Addr() uintptr }, from which the faulting
// address is recovered.
func tryStore(addr uintptr, val byte) (faultAddr uintptr, err error, faulted bool) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		faulted = true
		faulter, ok := r.(interface{ Addr() uintptr })
		if !ok {
			err = fmt.Errorf("xpdemo: unexpected panic accessing %#x: %v", addr, r)
			return
		}
		faultAddr = faulter.Addr()
	}()
	*(*byte)(unsafe.Pointer(addr)) = val
	return 0, nil, false
}

func printReport(id int, rep tracker.Report) {
	if len(rep.Hotspots) == 0 {
		fmt.Printf("worker %d: no false-sharing hotspots detected\n", id)
		return
	}
	fmt.Printf("worker %d: %d hotspot cache line(s)\n", id, len(rep.Hotspots))
	for _, h := range rep.Hotspots {
		fmt.Printf("  line %d @ %#x: %d invalidations, %d words changed\n",
			h.Line, h.Address, h.Invalidates, h.WordsChanged)
	}
	os.Stdout.Sync()
}
