package system

import (
	"math"
	"runtime"
	"runtime/debug"
)

// HeapProbe implements ota.HeapProbe as the memory budget minus the heap in
// use. Without a Budget, the runtime memory limit (GOMEMLIMIT) is used.
type HeapProbe struct {
	Budget uint64

	readStats func(*runtime.MemStats)
}

// FreeHeap implements ota.HeapProbe.
func (p *HeapProbe) FreeHeap() uint64 {
	limit := p.limit()
	var ms runtime.MemStats
	if p.readStats != nil {
		p.readStats(&ms)
	} else {
		runtime.ReadMemStats(&ms)
	}
	if ms.HeapInuse >= limit {
		return 0
	}
	return limit - ms.HeapInuse
}

func (p *HeapProbe) limit() uint64 {
	if p.Budget > 0 {
		return p.Budget
	}
	// a negative input reads the limit without changing it.
	if limit := debug.SetMemoryLimit(-1); limit > 0 && limit < math.MaxInt64 {
		return uint64(limit)
	}
	return math.MaxUint64
}
