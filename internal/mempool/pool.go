// Package mempool keeps size-classed scratch buffers for the per-frame hot
// path: rearranged output heads, the input tensor and NMS masks.
package mempool

import "sync"

const step = 1024

// sizeClass rounds n up to the next multiple of 1024, with 1024 as minimum.
func sizeClass(n int) int {
	if n <= step {
		return step
	}
	return (n + step - 1) / step * step
}

// sized is a set of sync.Pools keyed by size class.
type sized[T any] struct {
	pools sync.Map // int -> *sync.Pool
}

func (s *sized[T]) pool(cls int) *sync.Pool {
	if p, ok := s.pools.Load(cls); ok {
		return p.(*sync.Pool)
	}
	p, _ := s.pools.LoadOrStore(cls, &sync.Pool{New: func() any { return make([]T, cls) }})
	return p.(*sync.Pool)
}

func (s *sized[T]) get(n int) []T {
	if n < 0 {
		n = 0
	}
	cls := sizeClass(n)
	buf, ok := s.pool(cls).Get().([]T)
	if !ok || cap(buf) < cls {
		buf = make([]T, cls)
	}
	return buf[:n]
}

func (s *sized[T]) put(buf []T) {
	if buf == nil {
		return
	}
	// A buffer only goes back to a class it can fully serve.
	cls := cap(buf) / step * step
	if cls < step {
		return
	}
	s.pool(cls).Put(buf[:cls]) //nolint:staticcheck
}

var (
	float32s sized[float32]
	bools    sized[bool]
)

// GetFloat32 returns a []float32 of length n. Contents are not zeroed.
// Return it with PutFloat32 when done.
func GetFloat32(n int) []float32 { return float32s.get(n) }

// PutFloat32 returns a buffer to the pool. It is safe to pass a nil slice.
func PutFloat32(buf []float32) { float32s.put(buf) }

// GetBool returns a zeroed []bool of length n. Return it with PutBool.
func GetBool(n int) []bool {
	buf := bools.get(n)
	clear(buf)
	return buf
}

// PutBool returns a buffer to the pool. It is safe to pass a nil slice.
func PutBool(buf []bool) { bools.put(buf) }
