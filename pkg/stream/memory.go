package stream

import (
	"sync"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
)

// Memory hands out sample memory the channel can read from.
type Memory interface {
	// Alloc returns a zeroed slice of samples int16 values
	Alloc(samples int) ([]int16, error)

	// Free releases memory returned by Alloc
	Free(buf []int16)
}

// LinearPool is a capacity-bounded allocator standing in for the device's
// DMA-capable linear heap.
type LinearPool struct {
	mu       sync.Mutex
	capacity uint64 // bytes, 0 means unbounded
	used     uint64

	// Test helpers
	Allocs int
	Frees  int
}

// NewLinearPool creates a pool holding at most capacity bytes. A zero
// capacity never runs out.
func NewLinearPool(capacity uint64) *LinearPool {
	return &LinearPool{capacity: capacity}
}

// Alloc reserves samples*2 bytes from the pool.
func (p *LinearPool) Alloc(samples int) ([]int16, error) {
	if samples <= 0 {
		return nil, newStreamError("alloc", ErrOutOfMemory).WithContext("samples", samples)
	}

	size := uint64(samples) * 2

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.capacity > 0 && p.used+size > p.capacity {
		log.Debug("Linear pool exhausted",
			"requested", humanize.IBytes(size),
			"used", humanize.IBytes(p.used),
			"capacity", humanize.IBytes(p.capacity))
		return nil, newStreamError("alloc", ErrOutOfMemory).
			WithContext("requested", humanize.IBytes(size))
	}

	p.used += size
	p.Allocs++
	return make([]int16, samples), nil
}

// Free returns buf to the pool.
func (p *LinearPool) Free(buf []int16) {
	if buf == nil {
		return
	}

	size := uint64(cap(buf)) * 2

	p.mu.Lock()
	defer p.mu.Unlock()

	if size > p.used {
		size = p.used
	}
	p.used -= size
	p.Frees++
}

// Used returns the number of bytes currently allocated.
func (p *LinearPool) Used() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.used
}

// Outstanding returns allocations not yet freed.
func (p *LinearPool) Outstanding() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Allocs - p.Frees
}
