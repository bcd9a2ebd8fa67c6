package rtree

import (
	"github.com/hashicorp/go-hclog"

	"github.com/conure-db/rooted-tree/pkg/config"
	"github.com/conure-db/rooted-tree/vmvec"
)

const (
	// DefaultMaxNodes is the default node-store capacity, sentinel
	// included.
	DefaultMaxNodes = 1 << 22

	// DefaultInitialCapacity is how many node slots are committed eagerly
	// at construction.
	DefaultInitialCapacity = 1024
)

// Option configures a tree at construction time.
type Option func(*options)

type options struct {
	maxNodes        int
	initialCapacity int
	chunkBytes      int
	regionSlots     int
	logger          hclog.Logger
}

func defaultTreeOptions() options {
	return options{
		maxNodes:        DefaultMaxNodes,
		initialCapacity: DefaultInitialCapacity,
		chunkBytes:      vmvec.DefaultChunkBytes,
		regionSlots:     vmvec.DefaultRegionSlots,
		logger:          hclog.NewNullLogger(),
	}
}

func (o options) vectorOptions() []vmvec.Option {
	return []vmvec.Option{
		vmvec.WithChunkBytes(o.chunkBytes),
		vmvec.WithRegionSlots(o.regionSlots),
		vmvec.WithLogger(o.logger),
	}
}

// WithMaxNodes caps the node store at n slots, sentinel included.
func WithMaxNodes(n int) Option {
	return func(o *options) {
		if n > 1 {
			o.maxNodes = n
		}
	}
}

// WithInitialCapacity commits pages for the first n node slots eagerly.
func WithInitialCapacity(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.initialCapacity = n
		}
	}
}

// WithChunkBytes sets the commit unit of the backing vector.
func WithChunkBytes(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.chunkBytes = n
		}
	}
}

// WithRegionSlots sets the bump-region length of the concurrent backing
// vector.
func WithRegionSlots(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.regionSlots = n
		}
	}
}

// WithLogger attaches a logger to the backing vector.
func WithLogger(l hclog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithConfig applies loaded configuration. Zero fields keep their defaults.
func WithConfig(cfg config.Options) Option {
	return func(o *options) {
		if cfg.MaxNodes > 1 {
			o.maxNodes = cfg.MaxNodes
		}
		if cfg.InitialCapacity > 0 {
			o.initialCapacity = cfg.InitialCapacity
		}
		if cfg.ChunkBytes > 0 {
			o.chunkBytes = cfg.ChunkBytes
		}
		if cfg.RegionSlots > 0 {
			o.regionSlots = cfg.RegionSlots
		}
	}
}
