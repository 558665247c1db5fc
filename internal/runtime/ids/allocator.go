package ids

import "sync/atomic"

// Allocator hands out local message identifiers. The first id is 1 and every
// call to Next returns a value strictly greater than the previous one for the
// lifetime of the allocator. Counters are never reset or reused.
type Allocator struct {
	next atomic.Uint64
}

// NewAllocator returns an allocator whose first id is 1.
func NewAllocator() *Allocator {
	a := &Allocator{}
	a.next.Store(1)
	return a
}

// Next returns the current id and advances the counter.
func (a *Allocator) Next() uint64 {
	// A zero-value Allocator still starts at 1.
	a.next.CompareAndSwap(0, 1)
	return a.next.Add(1) - 1
}

// Peek reports the id the next call to Next will return.
func (a *Allocator) Peek() uint64 {
	if v := a.next.Load(); v != 0 {
		return v
	}
	return 1
}
