// Package mempool recycles the float32 input tensors built for every
// detector and recognizer run.
package mempool

import (
	"sync"
	"sync/atomic"
)

// classStep is the bucket granularity in elements.
const classStep = 1024

// sizeClass rounds n up to a multiple of classStep, with one step minimum.
func sizeClass(n int) int {
	if n <= classStep {
		return classStep
	}
	return (n + classStep - 1) / classStep * classStep
}

// Stats counts pool traffic. Misses are gets that had to allocate.
type Stats struct {
	Gets   uint64
	Puts   uint64
	Misses uint64
}

// Pool hands out slices of T bucketed by size class.
type Pool[T any] struct {
	buckets sync.Map // size class -> *sync.Pool
	gets    atomic.Uint64
	puts    atomic.Uint64
	misses  atomic.Uint64
}

func (p *Pool[T]) bucket(cls int) *sync.Pool {
	if b, ok := p.buckets.Load(cls); ok {
		return b.(*sync.Pool)
	}
	b, _ := p.buckets.LoadOrStore(cls, &sync.Pool{})
	return b.(*sync.Pool)
}

// Get returns a slice of length n. Contents are not cleared.
func (p *Pool[T]) Get(n int) []T {
	if n < 0 {
		n = 0
	}
	p.gets.Add(1)
	cls := sizeClass(n)
	if v := p.bucket(cls).Get(); v != nil {
		if buf, ok := v.(*[]T); ok && cap(*buf) >= n {
			return (*buf)[:n]
		}
	}
	p.misses.Add(1)
	return make([]T, n, cls)
}

// Put returns buf to its bucket. Nil and foreign-sized slices are dropped.
func (p *Pool[T]) Put(buf []T) {
	if cap(buf) == 0 || cap(buf)%classStep != 0 {
		return
	}
	p.puts.Add(1)
	buf = buf[:cap(buf)]
	p.bucket(cap(buf)).Put(&buf)
}

// Stats returns a snapshot of the counters.
func (p *Pool[T]) Stats() Stats {
	return Stats{Gets: p.gets.Load(), Puts: p.puts.Load(), Misses: p.misses.Load()}
}

var tensorPool Pool[float32]

// GetFloat32 returns a tensor buffer of length n from the shared pool. The
// caller hands it back with PutFloat32.
func GetFloat32(n int) []float32 { return tensorPool.Get(n) }

// PutFloat32 returns a buffer obtained from GetFloat32.
func PutFloat32(buf []float32) { tensorPool.Put(buf) }

// TensorStats reports traffic on the shared tensor pool.
func TensorStats() Stats { return tensorPool.Stats() }
