package rtree

import "errors"

var (
	// ErrSecondRoot is returned when inserting with an invalid parent while
	// the tree already has a root.
	ErrSecondRoot = errors.New("tree already has a root")

	// ErrFanOverflow is returned when a concurrent insert would push a
	// parent's fan-out past MaxFan.
	ErrFanOverflow = errors.New("fan-out limit exceeded")

	// ErrOutOfBounds is returned for node ids outside the store.
	ErrOutOfBounds = errors.New("node id out of bounds")

	// ErrInvalidMagic is returned when a structure stream does not start
	// with the expected magic number.
	ErrInvalidMagic = errors.New("invalid magic number")

	// ErrInvalidVersion is returned for an unsupported structure stream
	// version.
	ErrInvalidVersion = errors.New("invalid version")

	// ErrChecksum is returned when a structure stream fails checksum
	// verification.
	ErrChecksum = errors.New("structure checksum mismatch")

	// ErrCorruptStructure is returned when a decoded structure violates the
	// sibling-list invariants.
	ErrCorruptStructure = errors.New("corrupt tree structure")
)
