// Package pool provides a generation-checked slot pool.
//
// Items are stored by pointer so they stay put while the pool grows. A
// handle is the pair (index, generation); freeing a slot bumps its
// generation, so stale handles resolve to nil instead of aliasing a newer item.
package pool

import "fmt"

// Handle identifies an item in a Pool. The zero Handle is never valid.
type Handle struct {
	Index      int32
	Generation uint32
}

// IsNil reports whether h is the zero handle.
func (h Handle) IsNil() bool {
	return h.Generation == 0
}

func (h Handle) String() string {
	return fmt.Sprintf("%d:%d", h.Index, h.Generation)
}

type slot[T any] struct {
	item       *T
	generation uint32
}

// Pool stores items of type T behind handles.
type Pool[T any] struct {
	slots []slot[T]
	free  []int32
	count int
}

// New returns a pool with room for capacity items.
func New[T any](capacity int) *Pool[T] {
	return &Pool[T]{slots: make([]slot[T], 0, capacity)}
}

// Add stores item and returns its handle.
func (p *Pool[T]) Add(item *T) Handle {
	if item == nil {
		panic("pool: nil item")
	}

	var index int32
	if n := len(p.free); n > 0 {
		index = p.free[n-1]
		p.free = p.free[:n-1]
	} else {
		index = int32(len(p.slots))
		p.slots = append(p.slots, slot[T]{})
	}

	s := &p.slots[index]
	s.generation++
	if s.generation == 0 {
		s.generation = 1
	}
	s.item = item
	p.count++

	return Handle{Index: index, Generation: s.generation}
}

// Get returns the item of h, or nil when h is stale or zero.
func (p *Pool[T]) Get(h Handle) *T {
	if h.Generation == 0 || h.Index < 0 || int(h.Index) >= len(p.slots) {
		return nil
	}
	s := &p.slots[h.Index]
	if s.generation != h.Generation {
		return nil
	}
	return s.item
}

// Remove frees the slot of h and returns the removed item, or nil when h is stale.
func (p *Pool[T]) Remove(h Handle) *T {
	item := p.Get(h)
	if item == nil {
		return nil
	}

	s := &p.slots[h.Index]
	s.item = nil
	s.generation++
	if s.generation == 0 {
		s.generation = 1
	}
	p.free = append(p.free, h.Index)
	p.count--

	return item
}

// Len returns the number of live items.
func (p *Pool[T]) Len() int {
	return p.count
}

// All calls fn for every live item in slot order until fn returns false.
func (p *Pool[T]) All(fn func(h Handle, item *T) bool) {
	for i := range p.slots {
		s := &p.slots[i]
		if s.item == nil {
			continue
		}
		if !fn(Handle{Index: int32(i), Generation: s.generation}, s.item) {
			return
		}
	}
}
