package vmvec

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/hashicorp/go-hclog"
)

// Concurrent is a many-producer append vector over a reserved virtual
// address range. Producers take slots through bump regions: a region holds a
// short run of consecutive slots reserved for one producer, so producers
// serialize only when refilling a run, not per element. Elements never move.
//
// Slots are handed out zeroed. Len reports the high-water mark of slots
// handed to regions; a slot below Len may still be mid-construction, and the
// element type is expected to carry its own constructed flag, as the tree's
// node hooks do.
//
// As with Vector, the backing memory is outside the Go heap and T must be
// pointer-free; construction rejects other types with ErrPointerElement.
type Concurrent[T any] struct {
	pager    Pager
	mem      []byte
	data     []T
	elemSize int
	capacity int
	chunk    int
	reserved int

	mu             sync.Mutex // serializes refills and page commits
	allocated      int        // slots handed to regions, guarded by mu
	committed      int
	committedBytes int

	hwm     atomic.Int64 // published copy of allocated
	refills atomic.Int64
	closed  atomic.Bool

	regions     sync.Pool // *region
	regionSlots int

	id     uint64
	logger hclog.Logger
}

// region is a run of consecutive slots owned by one producer. Slots in
// [next, end) are reserved but not yet handed out.
type region struct {
	next, end int
}

// NewConcurrent reserves address space for capacity elements and registers
// the vector with the process registry. No pages are committed yet.
func NewConcurrent[T any](capacity int, opts ...Option) (*Concurrent[T], error) {
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
	c := &Concurrent[T]{
		pager:       o.pager,
		elemSize:    elemSize,
		capacity:    capacity,
		chunk:       roundUp(o.chunkBytes, pageSize()),
		regionSlots: o.regionSlots,
		logger:      o.logger.Named("vmvec"),
	}
	c.regions.New = func() any { return &region{} }

	if elemSize == 0 {
		c.data = make([]T, capacity)
		c.committed = capacity
	} else {
		c.reserved = roundUp(capacity*elemSize, c.chunk)
		mem, err := c.pager.Reserve(c.reserved)
		if err != nil {
			return nil, err
		}
		c.mem = mem
		c.data = unsafe.Slice((*T)(unsafe.Pointer(&mem[0])), capacity)
	}

	c.id = register(c)
	c.logger.Debug("reserved virtual range", "vector", c.id, "bytes", c.reserved, "capacity", capacity)
	return c, nil
}

// Grow takes the next slot of a bump region and returns its index and a
// stable pointer to the zeroed element. Safe for any number of concurrent
// callers.
func (c *Concurrent[T]) Grow() (int, *T, error) {
	r := c.regions.Get().(*region)
	i, p, err := c.grow(r)
	c.regions.Put(r)
	return i, p, err
}

func (c *Concurrent[T]) grow(r *region) (int, *T, error) {
	if c.closed.Load() {
		return 0, nil, ErrClosed
	}
	if r.next == r.end {
		if err := c.refill(r); err != nil {
			return 0, nil, err
		}
	}
	i := r.next
	r.next++
	return i, &c.data[i], nil
}

// refill grants r a fresh run of slots, committing further chunks as
// needed. Serialized across producers.
func (c *Concurrent[T]) refill(r *region) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.allocated == c.capacity {
		return fmt.Errorf("%w: capacity %d", ErrCapacityExhausted, c.capacity)
	}
	n := c.regionSlots
	if n > c.capacity-c.allocated {
		n = c.capacity - c.allocated
	}
	end := c.allocated + n
	for c.committed < end {
		if err := c.commitNext(); err != nil {
			return err
		}
	}
	r.next = c.allocated
	r.end = end
	c.allocated = end
	c.hwm.Store(int64(end))
	c.refills.Add(1)
	c.logger.Trace("refilled bump region", "vector", c.id, "first", r.next, "slots", n)
	return nil
}

// commitNext backs the next chunk. Caller holds mu.
func (c *Concurrent[T]) commitNext() error {
	off := c.committedBytes
	n := c.chunk
	if off+n > c.reserved {
		n = c.reserved - off
	}
	if err := c.pager.Commit(off, n); err != nil {
		return err
	}
	c.committedBytes = off + n
	c.committed = c.committedBytes / c.elemSize
	if c.committed > c.capacity {
		c.committed = c.capacity
	}
	c.logger.Debug("committed chunk", "vector", c.id, "offset", off, "bytes", n)
	return nil
}

// Reserve commits pages for the first n slots ahead of time.
func (c *Concurrent[T]) Reserve(n int) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if n > c.capacity {
		n = c.capacity
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.committed < n {
		if err := c.commitNext(); err != nil {
			return err
		}
	}
	return nil
}

// At returns a pointer to slot i, or ErrOutOfBounds if i is at or past the
// current high-water mark.
func (c *Concurrent[T]) At(i int) (*T, error) {
	if i < 0 || i >= c.Len() {
		return nil, fmt.Errorf("%w: index %d of %d", ErrOutOfBounds, i, c.Len())
	}
	return &c.data[i], nil
}

// Index returns a pointer to slot i without a bounds check beyond the
// slice's own. The slot must be below Len.
func (c *Concurrent[T]) Index(i int) *T {
	return &c.data[i]
}

// Len returns the monotonic high-water mark of slots handed to bump
// regions. Slots below it are committed and zero-initialized, but may not
// be constructed yet.
func (c *Concurrent[T]) Len() int {
	return int(c.hwm.Load())
}

// Cap returns the logical capacity fixed at construction.
func (c *Concurrent[T]) Cap() int {
	return c.capacity
}

// Stats reports the vector's registry entry.
func (c *Concurrent[T]) Stats() Stats {
	return Stats{
		ID:             c.id,
		Len:            c.Len(),
		Cap:            c.capacity,
		CommittedBytes: int64(c.committedBytes),
		Refills:        c.refills.Load(),
	}
}

// Close unregisters the vector and releases the whole reservation. Not safe
// to call while producers are appending. Idempotent.
func (c *Concurrent[T]) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	unregister(c.id)
	c.data = nil
	c.mem = nil
	c.logger.Debug("released reservation", "vector", c.id, "bytes", c.reserved)
	return c.pager.Release()
}

// Appender pins a bump region to one producer goroutine, skipping the pool
// round-trip of Grow. Not safe for concurrent use; each producer takes its
// own.
type Appender[T any] struct {
	v *Concurrent[T]
	r *region
}

// Appender returns a pinned-region handle for a single producer.
func (c *Concurrent[T]) Appender() *Appender[T] {
	return &Appender[T]{v: c, r: &region{}}
}

// Grow takes the next slot of the pinned region.
func (a *Appender[T]) Grow() (int, *T, error) {
	return a.v.grow(a.r)
}

// Release returns the region's unused run to the vector's pool so another
// producer can consume the remaining slots. The appender must not be used
// afterwards.
func (a *Appender[T]) Release() {
	if a.r == nil {
		return
	}
	if a.r.next != a.r.end {
		a.v.regions.Put(a.r)
	}
	a.r = nil
}
