package rtree

import (
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/conure-db/rooted-tree/vmvec"
)

// ConcurrentTree is the many-producer rooted tree. Slot allocation is
// lock-free with respect to inserts under other parents; linking a child
// serializes only on the parent's one-word spin lock. Traversals may race
// with producers: every id loaded from a tail or prev link is gated on the
// target's constructed flag, so readers only ever observe fully initialized
// nodes and a sibling list growing monotonically at its head.
//
// As with Tree, the payload type must be pointer-free; construction rejects
// other types with vmvec.ErrPointerElement.
type ConcurrentTree[T any] struct {
	nodes *vmvec.Concurrent[cnode[T]]
	count atomic.Int64 // constructed nodes, sentinel included
	opts  options
}

// NewConcurrentTree returns a concurrent tree containing only the sentinel.
func NewConcurrentTree[T any](opts ...Option) (*ConcurrentTree[T], error) {
	o := defaultTreeOptions()
	for _, opt := range opts {
		opt(&o)
	}
	t := &ConcurrentTree[T]{opts: o}
	nodes, err := t.newStore()
	if err != nil {
		return nil, err
	}
	t.nodes = nodes
	return t, nil
}

func (t *ConcurrentTree[T]) newStore() (*vmvec.Concurrent[cnode[T]], error) {
	nodes, err := vmvec.NewConcurrent[cnode[T]](t.opts.maxNodes, t.opts.vectorOptions()...)
	if err != nil {
		return nil, err
	}
	if err := nodes.Reserve(t.opts.initialCapacity); err != nil {
		nodes.Close()
		return nil, err
	}
	i, sentinel, err := nodes.Grow()
	if err != nil {
		nodes.Close()
		return nil, err
	}
	if i != 0 {
		nodes.Close()
		return nil, fmt.Errorf("%w: sentinel slot %d", ErrCorruptStructure, i)
	}
	sentinel.done.Store(1)
	t.count.Store(1)
	return nodes, nil
}

// NewConcurrentTreeWithRoot returns a concurrent tree whose root carries
// rootValue.
func NewConcurrentTreeWithRoot[T any](rootValue T, opts ...Option) (*ConcurrentTree[T], error) {
	t, err := NewConcurrentTree[T](opts...)
	if err != nil {
		return nil, err
	}
	if _, err := t.Insert(Invalid, rootValue); err != nil {
		t.Close()
		return nil, err
	}
	return t, nil
}

// Insert appends a node under parent. Safe for any number of concurrent
// callers; inserts under the same parent serialize on that parent's spin
// lock, inserts under different parents do not contend.
//
// The new node is constructed on its zeroed slot and its done flag raised
// before it is published into the parent's tail, so a concurrent reader
// that observes the id also observes the initialized payload.
func (t *ConcurrentTree[T]) Insert(parent NodeID, value T) (NodeID, error) {
	if parent != Invalid && (parent < 0 || int(parent) >= t.nodes.Len()) {
		return Invalid, fmt.Errorf("%w: parent %d of %d", ErrOutOfBounds, parent, t.nodes.Len())
	}

	// Allocation phase: construct on the zeroed slot, then publish done.
	i, n, err := t.nodes.Grow()
	if err != nil {
		return Invalid, err
	}
	id := NodeID(i)
	n.value = value
	n.up.Store(int32(parent))
	n.done.Store(1)

	// Publish phase: serialized per parent.
	par := t.nodes.Index(int(parent))
	par.mu.lock()
	if parent == Invalid {
		if par.tail.Load() != int32(Invalid) {
			par.mu.unlock()
			return Invalid, ErrSecondRoot
		}
	} else if par.fan.Load() >= MaxFan {
		par.mu.unlock()
		return Invalid, fmt.Errorf("%w: parent %d at fan %d", ErrFanOverflow, parent, MaxFan)
	}
	n.prev.Store(par.tail.Load())
	par.tail.Store(int32(id))
	par.fan.Add(1)
	par.mu.unlock()

	t.count.Add(1)
	return id, nil
}

// waitReady spin-yields until id's slot is within the store and its done
// flag is raised. ids arriving through tail and prev links are below the
// store's size by construction, so the loop is bounded by the racing
// writer's three remaining stores.
func (t *ConcurrentTree[T]) waitReady(id NodeID) NodeID {
	if !id.Valid() {
		return id
	}
	for int(id) >= t.nodes.Len() || t.nodes.Index(int(id)).done.Load() == 0 {
		runtime.Gosched()
	}
	return id
}

// Len returns the store's slot high-water mark, sentinel included. Slots
// below it that were allocated to a bump region but never constructed stay
// unreachable; Count reports the constructed population.
func (t *ConcurrentTree[T]) Len() int {
	return t.nodes.Len()
}

// Count returns the number of constructed nodes, sentinel included.
func (t *ConcurrentTree[T]) Count() int {
	return int(t.count.Load())
}

// Root returns the root's id, or Invalid if no root has been emplaced.
func (t *ConcurrentTree[T]) Root() NodeID {
	return t.waitReady(NodeID(t.nodes.Index(0).tail.Load()))
}

// Value returns a pointer to id's payload. id must have been observed
// through this tree, which guarantees construction is complete.
func (t *ConcurrentTree[T]) Value(id NodeID) *T {
	return &t.nodes.Index(int(id)).value
}

// At is the checked form of Value.
func (t *ConcurrentTree[T]) At(id NodeID) (*T, error) {
	if id < 0 || int(id) >= t.nodes.Len() {
		return nil, fmt.Errorf("%w: node %d of %d", ErrOutOfBounds, id, t.nodes.Len())
	}
	return t.Value(id), nil
}

// Parent returns id's parent link. A done node's parent was constructed
// before it, so no gating is needed.
func (t *ConcurrentTree[T]) Parent(id NodeID) NodeID {
	return NodeID(t.nodes.Index(int(id)).up.Load())
}

// Tail returns id's most-recently-inserted child, gated on the child's
// constructed flag.
func (t *ConcurrentTree[T]) Tail(id NodeID) NodeID {
	return t.waitReady(NodeID(t.nodes.Index(int(id)).tail.Load()))
}

// Prev returns id's previous sibling, gated on the sibling's constructed
// flag.
func (t *ConcurrentTree[T]) Prev(id NodeID) NodeID {
	return t.waitReady(NodeID(t.nodes.Index(int(id)).prev.Load()))
}

// Fan returns id's direct child count. Racing inserts under id make the
// value a momentary snapshot.
func (t *ConcurrentTree[T]) Fan(id NodeID) int {
	return int(t.nodes.Index(int(id)).fan.Load())
}

// TreeAppender pins a bump region of the node store to one producer
// goroutine.
type TreeAppender[T any] struct {
	t   *ConcurrentTree[T]
	app *vmvec.Appender[cnode[T]]
}

// Appender returns a pinned-region insert handle for a single producer.
// Release it when the producer is done.
func (t *ConcurrentTree[T]) Appender() *TreeAppender[T] {
	return &TreeAppender[T]{t: t, app: t.nodes.Appender()}
}

// Insert is ConcurrentTree.Insert through the pinned region.
func (a *TreeAppender[T]) Insert(parent NodeID, value T) (NodeID, error) {
	t := a.t
	if parent != Invalid && (parent < 0 || int(parent) >= t.nodes.Len()) {
		return Invalid, fmt.Errorf("%w: parent %d of %d", ErrOutOfBounds, parent, t.nodes.Len())
	}
	i, n, err := a.app.Grow()
	if err != nil {
		return Invalid, err
	}
	id := NodeID(i)
	n.value = value
	n.up.Store(int32(parent))
	n.done.Store(1)

	par := t.nodes.Index(int(parent))
	par.mu.lock()
	if parent == Invalid {
		if par.tail.Load() != int32(Invalid) {
			par.mu.unlock()
			return Invalid, ErrSecondRoot
		}
	} else if par.fan.Load() >= MaxFan {
		par.mu.unlock()
		return Invalid, fmt.Errorf("%w: parent %d at fan %d", ErrFanOverflow, parent, MaxFan)
	}
	n.prev.Store(par.tail.Load())
	par.tail.Store(int32(id))
	par.fan.Add(1)
	par.mu.unlock()

	t.count.Add(1)
	return id, nil
}

// Release returns the pinned region's unused slots to the store's pool.
func (a *TreeAppender[T]) Release() {
	a.app.Release()
}

// Clear resets the tree to the sentinel-only state by swapping in a fresh
// store. Not safe while producers are appending.
func (t *ConcurrentTree[T]) Clear() error {
	nodes, err := t.newStore()
	if err != nil {
		return err
	}
	old := t.nodes
	t.nodes = nodes
	return old.Close()
}

// Close releases the node store. Not safe while producers are appending.
func (t *ConcurrentTree[T]) Close() error {
	return t.nodes.Close()
}
