//go:build linux || darwin

package vmvec

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// sysPager reserves address space with an anonymous PROT_NONE mapping and
// commits subranges by flipping their protection to read-write. Freshly
// committed pages read as zero, which the tree layer relies on for its
// constructed flags.
type sysPager struct {
	mem []byte
}

func newPlatformPager() Pager {
	return &sysPager{}
}

func (p *sysPager) Reserve(n int) ([]byte, error) {
	if p.mem != nil {
		return nil, ErrPreconditionViolated
	}
	mem, err := unix.Mmap(-1, 0, n, unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("%w: reserve %d bytes: %v", ErrAllocationFailure, n, err)
	}
	p.mem = mem
	return mem, nil
}

func (p *sysPager) Commit(off, n int) error {
	if err := unix.Mprotect(p.mem[off:off+n], unix.PROT_READ|unix.PROT_WRITE); err != nil {
		return fmt.Errorf("%w: commit %d bytes at offset %d: %v", ErrAllocationFailure, n, off, err)
	}
	return nil
}

func (p *sysPager) Decommit(off, n int) error {
	if err := unix.Madvise(p.mem[off:off+n], unix.MADV_DONTNEED); err != nil {
		return fmt.Errorf("decommit %d bytes at offset %d: %v", n, off, err)
	}
	return nil
}

func (p *sysPager) Release() error {
	if p.mem == nil {
		return nil
	}
	err := unix.Munmap(p.mem)
	p.mem = nil
	return err
}
