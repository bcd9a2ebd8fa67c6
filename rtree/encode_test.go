package rtree_test

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conure-db/rooted-tree/rtree"
)

func TestEncodeDecodeStructure(t *testing.T) {
	tr := newReplayTree(t)

	var buf bytes.Buffer
	require.NoError(t, rtree.EncodeStructure[int](tr, &buf))

	got, err := rtree.DecodeStructure[int](&buf, smallOptions()...)
	require.NoError(t, err)
	defer got.Close()

	require.Equal(t, tr.Len(), got.Len())
	for i := 0; i < tr.Len(); i++ {
		id := rtree.NodeID(i)
		assert.Equal(t, tr.Parent(id), got.Parent(id), "up of %d", i)
		assert.Equal(t, tr.Prev(id), got.Prev(id), "prev of %d", i)
		assert.Equal(t, tr.Tail(id), got.Tail(id), "tail of %d", i)
		assert.Equal(t, tr.Fan(id), got.Fan(id), "fan of %d", i)
	}
	checkSiblingLists[int](t, got)
}

func TestEncodeDecodeConcurrentStructure(t *testing.T) {
	tr, _ := newConcurrentReplayTree(t)

	var buf bytes.Buffer
	require.NoError(t, rtree.EncodeStructure[int](tr, &buf))

	got, err := rtree.DecodeStructure[int](&buf, smallOptions()...)
	require.NoError(t, err)
	defer got.Close()

	// Slot numbering carries over verbatim, including any region slack
	// slots, which stay orphaned and unreachable.
	require.Equal(t, tr.Len(), got.Len())
	require.Equal(t, tr.Root(), got.Root())
	assert.Equal(t, collectDown[int](tr, tr.Root()), collectDown[int](got, got.Root()))
	assert.Equal(t, collectDFS[int](tr, tr.Root()), collectDFS[int](got, got.Root()))
	checkSiblingLists[int](t, got)
}

func TestDecodeStructureChecksum(t *testing.T) {
	tr := newReplayTree(t)

	var buf bytes.Buffer
	require.NoError(t, rtree.EncodeStructure[int](tr, &buf))

	data := buf.Bytes()
	data[20] ^= 0xff
	_, err := rtree.DecodeStructure[int](bytes.NewReader(data), smallOptions()...)
	require.ErrorIs(t, err, rtree.ErrChecksum)
}

func TestDecodeStructureBadMagic(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(0xdeadbeef)))
	_, err := rtree.DecodeStructure[int](&buf)
	require.ErrorIs(t, err, rtree.ErrInvalidMagic)
}

func TestDecodeStructureBadVersion(t *testing.T) {
	tr := newReplayTree(t)

	var buf bytes.Buffer
	require.NoError(t, rtree.EncodeStructure[int](tr, &buf))
	data := buf.Bytes()
	binary.LittleEndian.PutUint32(data[4:], 99)
	_, err := rtree.DecodeStructure[int](bytes.NewReader(data))
	require.ErrorIs(t, err, rtree.ErrInvalidVersion)
}

func TestDecodeStructureTruncated(t *testing.T) {
	tr := newReplayTree(t)

	var buf bytes.Buffer
	require.NoError(t, rtree.EncodeStructure[int](tr, &buf))
	_, err := rtree.DecodeStructure[int](bytes.NewReader(buf.Bytes()[:buf.Len()/2]))
	require.Error(t, err)
}

func TestDecodeStructureCorruptLinks(t *testing.T) {
	tr := newReplayTree(t)

	var buf bytes.Buffer
	require.NoError(t, rtree.EncodeStructure[int](tr, &buf))
	data := buf.Bytes()

	// Rewrite node 2's up link to point at a non-parent, then restamp the
	// checksum so only the structural validation can catch it.
	quadOff := 12 + 2*16
	binary.LittleEndian.PutUint32(data[quadOff:], uint32(3))
	restampChecksum(t, data)

	_, err := rtree.DecodeStructure[int](bytes.NewReader(data))
	require.ErrorIs(t, err, rtree.ErrCorruptStructure)
}

func restampChecksum(t *testing.T, data []byte) {
	t.Helper()
	// Trailer is the final 8 bytes; recompute over everything before it.
	binary.LittleEndian.PutUint64(data[len(data)-8:], xxhash.Sum64(data[:len(data)-8]))
}

func TestEncodeDecodeWithPayloads(t *testing.T) {
	tr := newReplayTree(t)

	enc := func(w io.Writer, v *int) error {
		return binary.Write(w, binary.LittleEndian, int64(*v))
	}
	dec := func(r io.Reader, v *int) error {
		var x int64
		if err := binary.Read(r, binary.LittleEndian, &x); err != nil {
			return err
		}
		*v = int(x)
		return nil
	}

	var buf bytes.Buffer
	require.NoError(t, rtree.EncodeWith[int](tr, &buf, enc))

	got, err := rtree.DecodeWith[int](&buf, dec, smallOptions()...)
	require.NoError(t, err)
	defer got.Close()

	for i := 1; i < tr.Len(); i++ {
		id := rtree.NodeID(i)
		require.Equal(t, *tr.Value(id), *got.Value(id), "payload of %d", i)
	}
	checkSiblingLists[int](t, got)
}
