package rtree

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"
)

const (
	// structureMagic identifies a structure stream ("RTRE" in ASCII).
	structureMagic uint32 = 0x52545245

	// structureVersion is the current stream version.
	structureVersion uint32 = 1
)

// EncodeStructure writes v's structural fields to w: a fixed header, then
// one up/prev/tail/fan quad per slot in insertion order, sentinel included,
// then an xxhash64 trailer over everything preceding it. Payloads are not
// written; see EncodeWith.
func EncodeStructure[T any](v View[T], w io.Writer) error {
	h := xxhash.New()
	mw := io.MultiWriter(w, h)

	for _, field := range []uint32{structureMagic, structureVersion, uint32(v.Len())} {
		if err := binary.Write(mw, binary.LittleEndian, field); err != nil {
			return err
		}
	}

	for i := 0; i < v.Len(); i++ {
		id := NodeID(i)
		quad := [4]int32{
			int32(v.Parent(id)),
			int32(v.Prev(id)),
			int32(v.Tail(id)),
			int32(v.Fan(id)),
		}
		if err := binary.Write(mw, binary.LittleEndian, quad); err != nil {
			return err
		}
	}

	return binary.Write(w, binary.LittleEndian, h.Sum64())
}

// DecodeStructure reads a structure stream, verifies its checksum and the
// sibling-list invariants, and rebuilds a sequential tree with zero
// payloads. Payloads can be filled afterwards through Value or DecodeWith.
func DecodeStructure[T any](r io.Reader, opts ...Option) (*Tree[T], error) {
	h := xxhash.New()
	tr := io.TeeReader(r, h)

	var magic, version, count uint32
	if err := binary.Read(tr, binary.LittleEndian, &magic); err != nil {
		return nil, err
	}
	if magic != structureMagic {
		return nil, ErrInvalidMagic
	}
	if err := binary.Read(tr, binary.LittleEndian, &version); err != nil {
		return nil, err
	}
	if version != structureVersion {
		return nil, fmt.Errorf("%w: %d", ErrInvalidVersion, version)
	}
	if err := binary.Read(tr, binary.LittleEndian, &count); err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: empty store", ErrCorruptStructure)
	}

	hooks := make([]hook, count)
	for i := range hooks {
		var quad [4]int32
		if err := binary.Read(tr, binary.LittleEndian, &quad); err != nil {
			return nil, err
		}
		hooks[i] = hook{
			up:   NodeID(quad[0]),
			prev: NodeID(quad[1]),
			tail: NodeID(quad[2]),
			fan:  quad[3],
		}
	}

	sum := h.Sum64()
	var trailer uint64
	if err := binary.Read(r, binary.LittleEndian, &trailer); err != nil {
		return nil, err
	}
	if trailer != sum {
		return nil, ErrChecksum
	}

	if err := validateHooks(hooks); err != nil {
		return nil, err
	}

	o := append([]Option{WithMaxNodes(int(count))}, opts...)
	t, err := New[T](o...)
	if err != nil {
		return nil, err
	}
	// Slot 0 was pushed by New; write the remaining slots and copy every
	// hook verbatim.
	t.nodes.Index(0).hook = hooks[0]
	for i := 1; i < int(count); i++ {
		_, n, err := t.nodes.Grow()
		if err != nil {
			t.Close()
			return nil, err
		}
		n.hook = hooks[i]
	}
	return t, nil
}

// validateHooks checks the decoded structure: in-range links, a sentinel
// with no parent, and for every node a sibling walk from its tail that
// takes exactly fan steps, each visited child pointing back up at it.
func validateHooks(hooks []hook) error {
	count := NodeID(len(hooks))
	inRange := func(id NodeID) bool { return id >= 0 && id < count }

	if hooks[0].up.Valid() || hooks[0].prev.Valid() {
		return fmt.Errorf("%w: sentinel has links", ErrCorruptStructure)
	}
	for i, hk := range hooks {
		if !inRange(hk.up) || !inRange(hk.prev) || !inRange(hk.tail) || hk.fan < 0 || hk.fan >= int32(count) {
			return fmt.Errorf("%w: node %d links out of range", ErrCorruptStructure, i)
		}
		steps := int32(0)
		for kid := hk.tail; kid.Valid(); kid = hooks[kid].prev {
			if hooks[kid].up != NodeID(i) {
				return fmt.Errorf("%w: node %d not a child of %d", ErrCorruptStructure, kid, i)
			}
			steps++
			if steps > hk.fan {
				break
			}
		}
		if steps != hk.fan {
			return fmt.Errorf("%w: node %d fan %d, sibling walk %d", ErrCorruptStructure, i, hk.fan, steps)
		}
	}
	return nil
}

// EncodeWith writes the structure stream followed by every payload in slot
// order, root first (the sentinel carries none), using enc.
func EncodeWith[T any](v View[T], w io.Writer, enc func(io.Writer, *T) error) error {
	bw := bufio.NewWriter(w)
	if err := EncodeStructure(v, bw); err != nil {
		return err
	}
	for i := 1; i < v.Len(); i++ {
		if err := enc(bw, v.Value(NodeID(i))); err != nil {
			return fmt.Errorf("encode payload %d: %w", i, err)
		}
	}
	return bw.Flush()
}

// DecodeWith reads a stream produced by EncodeWith, rebuilding structure
// and payloads.
func DecodeWith[T any](r io.Reader, dec func(io.Reader, *T) error, opts ...Option) (*Tree[T], error) {
	t, err := DecodeStructure[T](r, opts...)
	if err != nil {
		return nil, err
	}
	for i := 1; i < t.Len(); i++ {
		if err := dec(r, t.Value(NodeID(i))); err != nil {
			t.Close()
			return nil, fmt.Errorf("decode payload %d: %w", i, err)
		}
	}
	return t, nil
}
