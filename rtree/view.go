package rtree

// View is the read surface shared by the sequential and concurrent trees.
// Cursors and structural operators traverse any View.
//
// Every NodeID returned by Root, Tail or Prev is safe to dereference: the
// concurrent implementation gates those loads on the target's constructed
// flag, so a traversal racing with producers only ever observes fully
// initialized nodes.
type View[T any] interface {
	// Len returns the number of node slots, sentinel included.
	Len() int

	// Root returns the root's id, or Invalid if no root has been emplaced.
	Root() NodeID

	// Value returns the payload of id. id must name a live node.
	Value(id NodeID) *T

	// Parent returns id's parent, Invalid for the sentinel and the root's
	// sentinel link.
	Parent(id NodeID) NodeID

	// Tail returns id's most-recently-inserted child, or Invalid for a
	// leaf.
	Tail(id NodeID) NodeID

	// Prev returns id's previous sibling toward the oldest, or Invalid for
	// the first-inserted child.
	Prev(id NodeID) NodeID

	// Fan returns id's direct child count.
	Fan(id NodeID) int
}
