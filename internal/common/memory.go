package common

import (
	"fmt"
	"runtime"
)

// MemorySnapshot is the subset of runtime.MemStats worth reporting.
type MemorySnapshot struct {
	HeapAlloc  uint64
	TotalAlloc uint64
	Mallocs    uint64
	NumGC      uint32
}

// TakeMemorySnapshot reads the current runtime memory statistics.
func TakeMemorySnapshot() MemorySnapshot {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return MemorySnapshot{
		HeapAlloc:  m.HeapAlloc,
		TotalAlloc: m.TotalAlloc,
		Mallocs:    m.Mallocs,
		NumGC:      m.NumGC,
	}
}

// MemoryDelta is the allocation activity between two snapshots.
type MemoryDelta struct {
	AllocatedBytes uint64 `json:"allocated_bytes"`
	Mallocs        uint64 `json:"mallocs"`
	GCs            uint32 `json:"gcs"`
}

// Since returns the activity between before and s. TotalAlloc, Mallocs and
// NumGC are monotonic, so the result never underflows for ordered snapshots.
func (s MemorySnapshot) Since(before MemorySnapshot) MemoryDelta {
	var d MemoryDelta
	if s.TotalAlloc >= before.TotalAlloc {
		d.AllocatedBytes = s.TotalAlloc - before.TotalAlloc
	}
	if s.Mallocs >= before.Mallocs {
		d.Mallocs = s.Mallocs - before.Mallocs
	}
	if s.NumGC >= before.NumGC {
		d.GCs = s.NumGC - before.NumGC
	}
	return d
}

// String formats the delta in KB.
func (d MemoryDelta) String() string {
	return fmt.Sprintf("+%d KB in %d allocs, %d GC", d.AllocatedBytes/1024, d.Mallocs, d.GCs)
}
