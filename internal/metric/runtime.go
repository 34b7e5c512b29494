package metric

import (
	"runtime"
	"time"
)

const bytesPerMegabyte = 1024 * 1024

// RuntimeSource reads process-level metrics from the Go runtime. It serves
// as a portable fallback when no hardware-backed source is available.
type RuntimeSource struct{}

func NewRuntimeSource() *RuntimeSource {
	return &RuntimeSource{}
}

func (*RuntimeSource) Collect() (*Sample, error) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	values := map[Kind]float64{
		MemoryUsage: float64(ms.HeapAlloc) / bytesPerMegabyte,
	}
	custom := map[string]float64{
		"runtime.goroutines": float64(runtime.NumGoroutine()),
		"runtime.gc_count":   float64(ms.NumGC),
	}

	return NewSample(time.Now(), values, custom), nil
}
