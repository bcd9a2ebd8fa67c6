package rtree_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conure-db/rooted-tree/rtree"
)

func collectDown[T any](v rtree.View[T], at rtree.NodeID) []int {
	var out []int
	for c := rtree.Down(v, at); c.Valid(); c.Next() {
		out = append(out, int(c.ID()))
	}
	return out
}

func collectDFS[T any](v rtree.View[T], root rtree.NodeID) []int {
	var out []int
	for c := rtree.DepthFirst(v, root); c.Valid(); {
		out = append(out, int(c.ID()))
		if !c.Next() {
			break
		}
	}
	return out
}

func TestDownCursor(t *testing.T) {
	tr := newReplayTree(t)

	assert.Equal(t, []int{9, 4, 3, 2}, collectDown[int](tr, rtree.RootID))
	assert.Equal(t, []int{12, 11, 6, 5}, collectDown[int](tr, rtree.NodeID(2)))
	assert.Empty(t, collectDown[int](tr, rtree.NodeID(7)), "leaf has no children")
	assert.Empty(t, collectDown[int](tr, rtree.NodeID(999)), "out of range")
}

func TestDownCursorAdvancePastEnd(t *testing.T) {
	tr := newStarTree(t)

	c := rtree.Down[int](tr, rtree.RootID)
	for c.Valid() {
		c.Next()
	}
	require.False(t, c.Next(), "advancing an invalid cursor is a no-op")
	require.Nil(t, c.Value())
	require.Equal(t, rtree.Invalid, c.ID())
}

func TestUpCursor(t *testing.T) {
	tr := newReplayTree(t)

	var out []int
	for c := rtree.Up[int](tr, rtree.NodeID(13)); c.Valid(); {
		out = append(out, int(c.ID()))
		if !c.Next() {
			break
		}
	}
	assert.Equal(t, []int{13, 12, 2, 1}, out)
}

func TestDepthFirstCursor(t *testing.T) {
	chain := newChainTree(t)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, collectDFS[int](chain, chain.Root()))

	star := newStarTree(t)
	assert.Equal(t, []int{1, 6, 5, 4, 3, 2}, collectDFS[int](star, star.Root()))

	replay := newReplayTree(t)
	got := collectDFS[int](replay, replay.Root())
	require.Len(t, got, 13)
	// Pre-order with each level in Down order.
	assert.Equal(t, []int{1, 9, 4, 10, 8, 3, 7, 2, 12, 13, 11, 6, 5}, got)
}

func TestDepthFirstVisitsEachNodeOnce(t *testing.T) {
	tr := newReplayTree(t)

	seen := make(map[int]int)
	for _, id := range collectDFS[int](tr, tr.Root()) {
		seen[id]++
	}
	require.Len(t, seen, 13)
	for id, n := range seen {
		require.Equal(t, 1, n, "node %d visited %d times", id, n)
	}
}

func TestLevelCursor(t *testing.T) {
	tr := newReplayTree(t)

	var ids []int
	var depths []int
	for c := rtree.Level[int](tr, tr.Root(), 0); c.Valid(); {
		ids = append(ids, int(c.ID()))
		depths = append(depths, c.Depth())
		if !c.Next() {
			break
		}
	}
	assert.Equal(t, []int{1, 9, 4, 3, 2, 10, 8, 7, 12, 11, 6, 5, 13}, ids)
	assert.Equal(t, []int{1, 2, 2, 2, 2, 3, 3, 3, 3, 3, 3, 3, 4}, depths)
}

func TestLevelCursorDepthBound(t *testing.T) {
	tr := newReplayTree(t)

	var ids []int
	for c := rtree.Level[int](tr, tr.Root(), 2); c.Valid(); {
		ids = append(ids, int(c.ID()))
		if !c.Next() {
			break
		}
	}
	assert.Equal(t, []int{1, 9, 4, 3, 2}, ids)
}

func TestLevelCursorSingleNode(t *testing.T) {
	tr, err := rtree.NewWithRoot(1, smallOptions()...)
	require.NoError(t, err)
	defer tr.Close()

	c := rtree.Level[int](tr, tr.Root(), 0)
	require.True(t, c.Valid())
	require.Equal(t, 1, c.Depth())
	require.False(t, c.Next())
	require.Equal(t, 0, c.Depth())
}

func TestLeafCursor(t *testing.T) {
	chain := newChainTree(t)
	var leaves []int
	for c := rtree.Leaves[int](chain, chain.Root()); c.Valid(); {
		leaves = append(leaves, int(c.ID()))
		if !c.Next() {
			break
		}
	}
	assert.Equal(t, []int{5}, leaves)

	star := newStarTree(t)
	leaves = nil
	for c := rtree.Leaves[int](star, star.Root()); c.Valid(); {
		leaves = append(leaves, int(c.ID()))
		if !c.Next() {
			break
		}
	}
	assert.Equal(t, []int{6, 5, 4, 3, 2}, leaves)
}

func TestInternalCursor(t *testing.T) {
	chain := newChainTree(t)
	var internal []int
	for c := rtree.Internal[int](chain, chain.Root()); c.Valid(); {
		internal = append(internal, int(c.ID()))
		if !c.Next() {
			break
		}
	}
	assert.Equal(t, []int{1, 2, 3, 4}, internal)

	star := newStarTree(t)
	internal = nil
	for c := rtree.Internal[int](star, star.Root()); c.Valid(); {
		internal = append(internal, int(c.ID()))
		if !c.Next() {
			break
		}
	}
	assert.Equal(t, []int{1}, internal)
}

func TestCursorsOnEmptyTree(t *testing.T) {
	tr, err := rtree.New[int](smallOptions()...)
	require.NoError(t, err)
	defer tr.Close()

	root := tr.Root()
	assert.False(t, rtree.Down[int](tr, root).Valid())
	assert.False(t, rtree.Up[int](tr, root).Valid())
	assert.False(t, rtree.DepthFirst[int](tr, root).Valid())
	assert.False(t, rtree.Level[int](tr, root, 0).Valid())
	assert.False(t, rtree.Leaves[int](tr, root).Valid())
	assert.False(t, rtree.Internal[int](tr, root).Valid())
}

func TestWalk(t *testing.T) {
	tr := newReplayTree(t)

	sum := 0
	rtree.Walk[int](tr, tr.Root(), func(_ rtree.NodeID, v *int) bool {
		sum += *v
		return true
	})
	require.Equal(t, 91, sum) // 1 + 2 + ... + 13

	// Early termination.
	visits := 0
	rtree.Walk[int](tr, tr.Root(), func(rtree.NodeID, *int) bool {
		visits++
		return visits < 3
	})
	require.Equal(t, 3, visits)
}
