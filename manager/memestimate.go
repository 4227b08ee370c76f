package manager

import (
	"github.com/shirou/gopsutil/v3/mem"
)

// memoryHeadroom decides whether accepting chunkBytes more in-memory
// staging data is affordable against inmemMax. It combines the qbuf's own
// tracked byte count (exact, per qbuf) with a system-memory
// sample (advisory — spec §4.4/§9 calls this a heuristic, not a
// transactional check): even under the tracked budget, a host already
// critically low on free memory refuses further in-memory growth.
type memoryHeadroom struct {
	inmemMax int64

	// sampleVM is swappable in tests; defaults to gopsutil's VirtualMemory.
	sampleVM func() (*mem.VirtualMemoryStat, error)
}

func newMemoryHeadroom(inmemMax int64) *memoryHeadroom {
	return &memoryHeadroom{
		inmemMax: inmemMax,
		sampleVM: mem.VirtualMemory,
	}
}

// criticalSystemUsedPercent is the system-wide memory utilization above
// which no qbuf may grow its in-memory staging further, regardless of its
// own tracked budget.
const criticalSystemUsedPercent = 90.0

// CanAfford reports whether chunkBytes more bytes may be staged in memory
// for a qbuf that has currently used trackedBytes of its inmemMax budget.
// The decision is monotonic only in the sense the caller must enforce: once
// a qbuf has spilled, this is never consulted again for it (spec §4.4).
func (h *memoryHeadroom) CanAfford(trackedBytes, chunkBytes int64) bool {
	if trackedBytes+chunkBytes > h.inmemMax {
		return false
	}
	if vm, err := h.sampleVM(); err == nil && vm.UsedPercent >= criticalSystemUsedPercent {
		return false
	}
	return true
}
