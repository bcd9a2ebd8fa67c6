package vmvec

import (
	"fmt"
	"reflect"
	"unsafe"

	"github.com/hashicorp/go-hclog"
)

// Vector is a single-producer append vector over a reserved virtual address
// range. The full capacity is reserved at construction; pages are committed
// one chunk at a time as the vector grows. Elements never move, so a pointer
// obtained from Grow, Append or Index stays valid until Close.
//
// The backing memory lives outside the Go heap, so T must be pointer-free:
// no pointers, strings, slices, maps, interfaces, channels or funcs at any
// depth. Construction rejects other types with ErrPointerElement.
type Vector[T any] struct {
	pager          Pager
	mem            []byte
	data           []T
	elemSize       int
	size           int
	committed      int // elements backed by committed pages
	committedBytes int
	capacity       int
	chunk          int // commit unit in bytes, page-aligned
	reserved       int // reservation length in bytes
	logger         hclog.Logger
}

// New reserves address space for capacity elements of type T and returns an
// empty vector. No pages are committed yet. Fails with ErrAllocationFailure
// if the host rejects the reservation.
func New[T any](capacity int, opts ...Option) (*Vector[T], error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: capacity %d", ErrPreconditionViolated, capacity)
	}
	if err := checkElemType(reflect.TypeOf((*T)(nil)).Elem()); err != nil {
		return nil, err
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.pager == nil {
		o.pager = NewPager()
	}

	var zero T
	elemSize := int(unsafe.Sizeof(zero))
	v := &Vector[T]{
		pager:    o.pager,
		elemSize: elemSize,
		capacity: capacity,
		chunk:    roundUp(o.chunkBytes, pageSize()),
		logger:   o.logger.Named("vmvec"),
	}

	if elemSize == 0 {
		// Nothing to back; the slice alone carries the elements.
		v.data = make([]T, capacity)
		v.committed = capacity
		return v, nil
	}

	v.reserved = roundUp(capacity*elemSize, v.chunk)
	mem, err := v.pager.Reserve(v.reserved)
	if err != nil {
		return nil, err
	}
	v.mem = mem
	v.data = unsafe.Slice((*T)(unsafe.Pointer(&mem[0])), capacity)
	v.logger.Debug("reserved virtual range", "bytes", v.reserved, "capacity", capacity)
	return v, nil
}

// Grow appends a zeroed slot and returns its index and a stable pointer to
// it. Commits one further chunk when the committed range is exhausted.
func (v *Vector[T]) Grow() (int, *T, error) {
	if v.data == nil {
		return 0, nil, ErrClosed
	}
	if v.size == v.capacity {
		return 0, nil, fmt.Errorf("%w: capacity %d", ErrCapacityExhausted, v.capacity)
	}
	if v.size == v.committed {
		if err := v.commitNext(); err != nil {
			return 0, nil, err
		}
	}
	i := v.size
	v.size++
	return i, &v.data[i], nil
}

// Append copies val into a new slot and returns a stable pointer to it.
func (v *Vector[T]) Append(val T) (*T, error) {
	_, p, err := v.Grow()
	if err != nil {
		return nil, err
	}
	*p = val
	return p, nil
}

// commitNext backs the next chunk of the reservation, truncated to its tail.
func (v *Vector[T]) commitNext() error {
	off := v.committedBytes
	n := v.chunk
	if off+n > v.reserved {
		n = v.reserved - off
	}
	if err := v.pager.Commit(off, n); err != nil {
		return err
	}
	v.committedBytes = off + n
	v.committed = v.committedBytes / v.elemSize
	if v.committed > v.capacity {
		v.committed = v.capacity
	}
	v.logger.Debug("committed chunk", "offset", off, "bytes", n)
	return nil
}

// Reserve commits pages ahead of time so that the first n appends need no
// further commit. n past the capacity is clamped.
func (v *Vector[T]) Reserve(n int) error {
	if v.data == nil {
		return ErrClosed
	}
	if n > v.capacity {
		n = v.capacity
	}
	for v.committed < n {
		if err := v.commitNext(); err != nil {
			return err
		}
	}
	return nil
}

// PopBack destroys the tail element. The slot is zeroed so that a later
// Grow hands it out in its unconstructed state. Pages are never returned
// until Close.
func (v *Vector[T]) PopBack() error {
	if v.size == 0 {
		return fmt.Errorf("%w: pop from empty vector", ErrPreconditionViolated)
	}
	var zero T
	v.data[v.size-1] = zero
	v.size--
	return nil
}

// Truncate drops every element at index n and above, zeroing their slots.
func (v *Vector[T]) Truncate(n int) error {
	if n < 0 || n > v.size {
		return fmt.Errorf("%w: truncate to %d of %d", ErrPreconditionViolated, n, v.size)
	}
	var zero T
	for i := n; i < v.size; i++ {
		v.data[i] = zero
	}
	v.size = n
	return nil
}

// At returns a pointer to element i, or ErrOutOfBounds.
func (v *Vector[T]) At(i int) (*T, error) {
	if i < 0 || i >= v.size {
		return nil, fmt.Errorf("%w: index %d of %d", ErrOutOfBounds, i, v.size)
	}
	return &v.data[i], nil
}

// Index returns a pointer to element i without a bounds check beyond the
// slice's own.
func (v *Vector[T]) Index(i int) *T {
	return &v.data[i]
}

// Len returns the number of live elements.
func (v *Vector[T]) Len() int {
	return v.size
}

// Cap returns the logical capacity fixed at construction.
func (v *Vector[T]) Cap() int {
	return v.capacity
}

// Committed returns how many element slots are currently backed by
// committed pages.
func (v *Vector[T]) Committed() int {
	return v.committed
}

// Close releases the whole reservation. Idempotent. Every pointer obtained
// from the vector is invalid afterwards.
func (v *Vector[T]) Close() error {
	if v.data == nil {
		return nil
	}
	v.data = nil
	v.mem = nil
	v.size = 0
	v.committed = 0
	v.committedBytes = 0
	v.logger.Debug("released reservation", "bytes", v.reserved)
	return v.pager.Release()
}
