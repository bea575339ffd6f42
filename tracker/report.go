// Package tracker is a reference false-sharing attribution reporter:
// it consumes a xpersist.Tracker's counters and base/size and owns the
// heuristics that attribute those counters to source-level objects.
// xpersist itself never imports this package.
//
// This reporter's heuristic is deliberately simple — one candidate
// "object" per cache line, since the core exposes no allocator
// metadata finer than that — and its output format is a pprof profile
// (github.com/google/pprof/profile) so the result can be inspected
// with `go tool pprof` the way a CPU or heap profile would be.
package tracker

import (
	"fmt"
	"sort"

	"github.com/google/pprof/profile"

	"xpersist"
)

// Hotspot is one cache line whose invalidation count met the
// reporting threshold.
type Hotspot struct {
	Line         int
	Address      uintptr
	Invalidates  int64
	WordsChanged int
}

// Report attributes the tracker's counters to cache-line-granularity
// "objects" between t.Base() and end, the boundary the host program's
// heap or globals allocator hands to the finalize hook. Only lines
// with at least one invalidation are reported.
type Report struct {
	Hotspots []Hotspot
}

// Check is the finalize entry point: it walks the tracker's counters
// up to end and returns every cache line that saw at least one
// cross-worker invalidation, most-invalidated first.
func Check(t xpersist.Tracker, end uintptr) Report {
	lineSize := t.CacheLineSizeBytes()
	wordSize := t.WordSizeBytes()
	wordsPerLine := lineSize / wordSize

	invalidates := t.CacheInvalidates()
	changes := t.WordChanges()

	lastLine := int(end-t.Base()) / lineSize
	if lastLine > len(invalidates) {
		lastLine = len(invalidates)
	}

	var rep Report
	for line := 0; line < lastLine; line++ {
		inv := invalidates[line]
		if inv == 0 {
			continue
		}
		changed := 0
		base := line * wordsPerLine
		for w := base; w < base+wordsPerLine && w < len(changes); w++ {
			if changes[w].Version != 0 {
				changed++
			}
		}
		rep.Hotspots = append(rep.Hotspots, Hotspot{
			Line:         line,
			Address:      t.Base() + uintptr(line*lineSize),
			Invalidates:  inv,
			WordsChanged: changed,
		})
	}
	sort.Slice(rep.Hotspots, func(i, j int) bool {
		return rep.Hotspots[i].Invalidates > rep.Hotspots[j].Invalidates
	})
	return rep
}

// Profile renders a Report as a pprof profile: one sample per hotspot
// cache line, valued by its invalidation count, so the hotspots can be
// explored with the standard pprof tooling (`go tool pprof -top`).
func Profile(rep Report) *profile.Profile {
	p := &profile.Profile{
		SampleType: []*profile.ValueType{{Type: "invalidations", Unit: "count"}},
		PeriodType: &profile.ValueType{Type: "invalidations", Unit: "count"},
		Period:     1,
	}

	for i, h := range rep.Hotspots {
		id := uint64(i + 1)
		fn := &profile.Function{
			ID:         id,
			Name:       fmt.Sprintf("cacheline[%d]@%#x", h.Line, h.Address),
			SystemName: fmt.Sprintf("cacheline[%d]", h.Line),
		}
		loc := &profile.Location{
			ID:      id,
			Address: uint64(h.Address),
			Line:    []profile.Line{{Function: fn, Line: 1}},
		}
		p.Function = append(p.Function, fn)
		p.Location = append(p.Location, loc)
		p.Sample = append(p.Sample, &profile.Sample{
			Location: []*profile.Location{loc},
			Value:    []int64{h.Invalidates},
			NumLabel: map[string][]int64{"words_changed": {int64(h.WordsChanged)}},
		})
	}
	return p
}
