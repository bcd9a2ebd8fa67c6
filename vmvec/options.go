package vmvec

import "github.com/hashicorp/go-hclog"

const (
	// DefaultChunkBytes is the commit unit: reserved address space is backed
	// in blocks of this many bytes, rounded up to the page size.
	DefaultChunkBytes = 64 << 20

	// DefaultRegionSlots is the length of the bump region a producer takes
	// from a concurrent vector in one refill.
	DefaultRegionSlots = 32
)

// Option configures a vector at construction time.
type Option func(*options)

type options struct {
	chunkBytes  int
	regionSlots int
	pager       Pager
	logger      hclog.Logger
}

func defaultOptions() options {
	return options{
		chunkBytes:  DefaultChunkBytes,
		regionSlots: DefaultRegionSlots,
		logger:      hclog.NewNullLogger(),
	}
}

// WithChunkBytes sets the commit unit. Values are rounded up to the page
// size.
func WithChunkBytes(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.chunkBytes = n
		}
	}
}

// WithRegionSlots sets the bump-region length for concurrent vectors.
func WithRegionSlots(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.regionSlots = n
		}
	}
}

// WithPager overrides the platform pager.
func WithPager(p Pager) Option {
	return func(o *options) {
		if p != nil {
			o.pager = p
		}
	}
}

// WithLogger attaches a logger for reservation, commit and refill events.
func WithLogger(l hclog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
