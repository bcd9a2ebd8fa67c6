package rtree

import (
	"fmt"

	"github.com/conure-db/rooted-tree/vmvec"
)

// Tree is the sequential rooted tree: an append-only store of nodes
// addressed by dense NodeIDs, with children threaded through each parent's
// reverse-insertion sibling list. Slot 0 is the sentinel, slot 1 the root.
// Not safe for concurrent use; see ConcurrentTree.
//
// Nodes live in pager-backed storage outside the Go heap, so the payload
// type must be pointer-free; construction rejects other types with
// vmvec.ErrPointerElement.
type Tree[T any] struct {
	nodes *vmvec.Vector[node[T]]
	opts  options
}

// New returns a tree containing only the sentinel.
func New[T any](opts ...Option) (*Tree[T], error) {
	o := defaultTreeOptions()
	for _, opt := range opts {
		opt(&o)
	}
	nodes, err := newNodeStore[T](o)
	if err != nil {
		return nil, err
	}
	return &Tree[T]{nodes: nodes, opts: o}, nil
}

func newNodeStore[T any](o options) (*vmvec.Vector[node[T]], error) {
	nodes, err := vmvec.New[node[T]](o.maxNodes, o.vectorOptions()...)
	if err != nil {
		return nil, err
	}
	if err := nodes.Reserve(o.initialCapacity); err != nil {
		nodes.Close()
		return nil, err
	}
	// Sentinel at slot 0: every id Invalid, fan 0.
	if _, _, err := nodes.Grow(); err != nil {
		nodes.Close()
		return nil, err
	}
	return nodes, nil
}

// NewWithRoot returns a tree whose root carries rootValue. The root's id is
// always RootID.
func NewWithRoot[T any](rootValue T, opts ...Option) (*Tree[T], error) {
	t, err := New[T](opts...)
	if err != nil {
		return nil, err
	}
	if _, err := t.Insert(Invalid, rootValue); err != nil {
		t.Close()
		return nil, err
	}
	return t, nil
}

// Insert appends a node under parent and links it as the new head of the
// parent's child list. Inserting with parent Invalid emplaces the root and
// is permitted exactly once.
func (t *Tree[T]) Insert(parent NodeID, value T) (NodeID, error) {
	if parent == Invalid {
		if t.nodes.Index(0).tail.Valid() {
			return Invalid, ErrSecondRoot
		}
	} else if int(parent) >= t.nodes.Len() || parent < 0 {
		return Invalid, fmt.Errorf("%w: parent %d of %d", ErrOutOfBounds, parent, t.nodes.Len())
	}

	i, n, err := t.nodes.Grow()
	if err != nil {
		return Invalid, err
	}
	id := NodeID(i)

	par := t.nodes.Index(int(parent))
	n.value = value
	n.up = parent
	n.prev = par.tail
	par.tail = id
	par.fan++
	return id, nil
}

// Len returns the number of node slots, sentinel included.
func (t *Tree[T]) Len() int {
	return t.nodes.Len()
}

// Root returns the root's id, or Invalid if no root has been emplaced.
func (t *Tree[T]) Root() NodeID {
	return t.nodes.Index(0).tail
}

// Value returns a pointer to id's payload. The pointer stays valid for the
// lifetime of the store.
func (t *Tree[T]) Value(id NodeID) *T {
	return &t.nodes.Index(int(id)).value
}

// At is the checked form of Value.
func (t *Tree[T]) At(id NodeID) (*T, error) {
	if id < 0 || int(id) >= t.nodes.Len() {
		return nil, fmt.Errorf("%w: node %d of %d", ErrOutOfBounds, id, t.nodes.Len())
	}
	return t.Value(id), nil
}

// Parent returns id's parent link.
func (t *Tree[T]) Parent(id NodeID) NodeID {
	return t.nodes.Index(int(id)).up
}

// Tail returns id's most-recently-inserted child.
func (t *Tree[T]) Tail(id NodeID) NodeID {
	return t.nodes.Index(int(id)).tail
}

// Prev returns id's previous sibling toward the oldest.
func (t *Tree[T]) Prev(id NodeID) NodeID {
	return t.nodes.Index(int(id)).prev
}

// Fan returns id's direct child count.
func (t *Tree[T]) Fan(id NodeID) int {
	return int(t.nodes.Index(int(id)).fan)
}

// Reserve commits pages for the first n node slots ahead of time. Not
// concurrency-safe.
func (t *Tree[T]) Reserve(n int) error {
	return t.nodes.Reserve(n)
}

// Clear resets the tree to the sentinel-only state, reusing the
// reservation. Not concurrency-safe.
func (t *Tree[T]) Clear() error {
	if err := t.nodes.Truncate(0); err != nil {
		return err
	}
	_, _, err := t.nodes.Grow()
	return err
}

// Swap exchanges the node stores of two trees. Not concurrency-safe.
func (t *Tree[T]) Swap(other *Tree[T]) {
	t.nodes, other.nodes = other.nodes, t.nodes
}

// Close releases the node store. Every NodeID and payload pointer is
// invalid afterwards.
func (t *Tree[T]) Close() error {
	return t.nodes.Close()
}
