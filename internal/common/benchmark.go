package common

import (
	"fmt"
	"runtime"
	"slices"
	"time"
)

// MemoryStats is a snapshot of the runtime allocator.
type MemoryStats struct {
	Alloc         uint64  `json:"alloc" yaml:"alloc"`
	TotalAlloc    uint64  `json:"total_alloc" yaml:"total_alloc"`
	Sys           uint64  `json:"sys" yaml:"sys"`
	Mallocs       uint64  `json:"mallocs" yaml:"mallocs"`
	NumGC         uint32  `json:"num_gc" yaml:"num_gc"`
	GCCPUFraction float64 `json:"gc_cpu_fraction" yaml:"gc_cpu_fraction"`
}

// GetMemoryStats returns current memory statistics.
func GetMemoryStats() MemoryStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return MemoryStats{
		Alloc:         m.Alloc,
		TotalAlloc:    m.TotalAlloc,
		Sys:           m.Sys,
		Mallocs:       m.Mallocs,
		NumGC:         m.NumGC,
		GCCPUFraction: m.GCCPUFraction,
	}
}

func (m MemoryStats) String() string {
	return fmt.Sprintf("Alloc: %d KB, Total: %d KB, Sys: %d KB, GC: %d (%.2f%% CPU)",
		m.Alloc/1024, m.TotalAlloc/1024, m.Sys/1024, m.NumGC, m.GCCPUFraction*100)
}

// BenchmarkResult holds the per-iteration timings of one benchmark run.
type BenchmarkResult struct {
	Name         string          `json:"name" yaml:"name"`
	Iterations   int             `json:"iterations" yaml:"iterations"`
	Durations    []time.Duration `json:"-" yaml:"-"`
	MemoryBefore MemoryStats     `json:"memory_before" yaml:"memory_before"`
	MemoryAfter  MemoryStats     `json:"memory_after" yaml:"memory_after"`
	Error        error           `json:"-" yaml:"-"`
}

// Benchmark runs fn warmup times untimed, then iterations times timed. It
// stops at the first error.
func Benchmark(name string, warmup, iterations int, fn func() error) BenchmarkResult {
	res := BenchmarkResult{Name: name}
	for range warmup {
		if err := fn(); err != nil {
			res.Error = fmt.Errorf("warmup: %w", err)
			return res
		}
	}

	runtime.GC()
	res.MemoryBefore = GetMemoryStats()
	res.Durations = make([]time.Duration, 0, iterations)
	for range iterations {
		t := NewTimer()
		err := fn()
		res.Durations = append(res.Durations, t.Stop())
		if err != nil {
			res.Error = err
			break
		}
	}
	res.Iterations = len(res.Durations)
	res.MemoryAfter = GetMemoryStats()
	return res
}

// Total returns the summed duration of all iterations.
func (br BenchmarkResult) Total() time.Duration {
	var total time.Duration
	for _, d := range br.Durations {
		total += d
	}
	return total
}

// Mean returns the average iteration duration.
func (br BenchmarkResult) Mean() time.Duration {
	if len(br.Durations) == 0 {
		return 0
	}
	return br.Total() / time.Duration(len(br.Durations))
}

// Percentile returns the nearest-rank p-th percentile, p in [0,100].
func (br BenchmarkResult) Percentile(p float64) time.Duration {
	if len(br.Durations) == 0 {
		return 0
	}
	sorted := slices.Clone(br.Durations)
	slices.Sort(sorted)
	p = min(max(p, 0), 100)
	idx := int(p/100*float64(len(sorted))+0.5) - 1
	return sorted[min(max(idx, 0), len(sorted)-1)]
}

// AllocsPerIteration returns the average number of heap allocations.
func (br BenchmarkResult) AllocsPerIteration() uint64 {
	if br.Iterations == 0 || br.MemoryAfter.Mallocs < br.MemoryBefore.Mallocs {
		return 0
	}
	return (br.MemoryAfter.Mallocs - br.MemoryBefore.Mallocs) / uint64(br.Iterations)
}

func (br BenchmarkResult) String() string {
	if br.Error != nil {
		return fmt.Sprintf("%s: ERROR - %v", br.Name, br.Error)
	}
	return fmt.Sprintf("%s: %d iterations, mean: %v, p50: %v, p95: %v, total: %v, allocs/op: %d",
		br.Name, br.Iterations, br.Mean(), br.Percentile(50), br.Percentile(95), br.Total(), br.AllocsPerIteration())
}
