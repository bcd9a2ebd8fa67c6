package rtree

import "fmt"

// Height returns the number of levels in root's subtree and the width of
// its widest level. A missing or invalid root yields (0, 0).
func Height[T any](v View[T], root NodeID) (levels, width int) {
	if !root.Valid() || int(root) >= v.Len() {
		return 0, 0
	}
	frontier := []NodeID{root}
	for len(frontier) > 0 {
		levels++
		if len(frontier) > width {
			width = len(frontier)
		}
		var next []NodeID
		for _, id := range frontier {
			for d := Down(v, id); d.Valid(); d.Next() {
				next = append(next, d.ID())
			}
		}
		frontier = next
	}
	return levels, width
}

// Apply walks root's subtree in level order, calling pred for each node,
// and returns the id of the first node for which pred is true. Invalid is
// returned when the frontier is exhausted or the depth bound is hit;
// maxDepth 0 means unbounded.
func Apply[T any](v View[T], root NodeID, maxDepth int, pred func(id NodeID, value *T) bool) NodeID {
	for c := Level(v, root, maxDepth); c.Valid(); c.Next() {
		if pred(c.ID(), c.Value()) {
			return c.ID()
		}
	}
	return Invalid
}

// children returns id's direct children oldest-first, so that re-inserting
// them in slice order reproduces the source's sibling-list order.
func children[T any](v View[T], id NodeID) []NodeID {
	var kids []NodeID
	for d := Down(v, id); d.Valid(); d.Next() {
		kids = append(kids, d.ID())
	}
	for i, j := 0, len(kids)-1; i < j; i, j = i+1, j-1 {
		kids[i], kids[j] = kids[j], kids[i]
	}
	return kids
}

// buildSub copies root's subtree up to maxDepth levels (0 = unbounded) into
// a fresh store through insert, assigning new ids in breadth-first order.
// The mapping table is dense over the source store.
func buildSub[T any](v View[T], root NodeID, maxDepth int, insert func(parent NodeID, value T) (NodeID, error)) error {
	if !root.Valid() || int(root) >= v.Len() {
		return fmt.Errorf("%w: subtree root %d of %d", ErrOutOfBounds, root, v.Len())
	}
	mapping := make([]NodeID, v.Len())

	newRoot, err := insert(Invalid, *v.Value(root))
	if err != nil {
		return err
	}
	mapping[root] = newRoot

	type item struct {
		id    NodeID
		depth int
	}
	queue := []item{{id: root, depth: 1}}
	for len(queue) > 0 {
		it := queue[0]
		queue = queue[1:]
		if maxDepth > 0 && it.depth == maxDepth {
			continue
		}
		for _, kid := range children(v, it.id) {
			id, err := insert(mapping[it.id], *v.Value(kid))
			if err != nil {
				return err
			}
			mapping[kid] = id
			queue = append(queue, item{id: kid, depth: it.depth + 1})
		}
	}
	return nil
}

// MakeSub returns a fresh sequential tree holding exactly the descendants
// of root up to maxDepth levels (0 = unbounded), densely renumbered from
// RootID in breadth-first order.
func MakeSub[T any](v View[T], root NodeID, maxDepth int, opts ...Option) (*Tree[T], error) {
	sub, err := New[T](opts...)
	if err != nil {
		return nil, err
	}
	if err := buildSub(v, root, maxDepth, sub.Insert); err != nil {
		sub.Close()
		return nil, err
	}
	return sub, nil
}

// Sub replaces the tree's store with the result of MakeSub over itself.
func (t *Tree[T]) Sub(root NodeID, maxDepth int) error {
	sub, err := MakeSub[T](t, root, maxDepth, withOptions(t.opts))
	if err != nil {
		return err
	}
	old := t.nodes
	t.nodes = sub.nodes
	sub.nodes = old
	return sub.Close()
}

// Reroot makes node the new root, keeping exactly its descendants.
func (t *Tree[T]) Reroot(node NodeID) error {
	return t.Sub(node, 0)
}

// Flatten reduces the tree to its root and the root's direct children.
func (t *Tree[T]) Flatten() error {
	root := t.Root()
	if !root.Valid() {
		return nil
	}
	return t.Sub(root, 2)
}

// Sub replaces the concurrent tree's store with the extracted subtree. Not
// safe while producers are appending.
func (t *ConcurrentTree[T]) Sub(root NodeID, maxDepth int) error {
	fresh := &ConcurrentTree[T]{opts: t.opts}
	nodes, err := fresh.newStore()
	if err != nil {
		return err
	}
	fresh.nodes = nodes
	if err := buildSub[T](t, root, maxDepth, fresh.Insert); err != nil {
		fresh.Close()
		return err
	}
	old := t.nodes
	t.nodes = fresh.nodes
	t.count.Store(fresh.count.Load())
	return old.Close()
}

// Reroot makes node the new root, keeping exactly its descendants. Not safe
// while producers are appending.
func (t *ConcurrentTree[T]) Reroot(node NodeID) error {
	return t.Sub(node, 0)
}

// Flatten reduces the tree to its root and the root's direct children. Not
// safe while producers are appending.
func (t *ConcurrentTree[T]) Flatten() error {
	root := t.Root()
	if !root.Valid() {
		return nil
	}
	return t.Sub(root, 2)
}

// withOptions replays an options value onto a constructor.
func withOptions(o options) Option {
	return func(dst *options) {
		*dst = o
	}
}
