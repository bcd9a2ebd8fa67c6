package vmvec

import (
	"sort"
	"sync"

	"github.com/hashicorp/go-hclog"
)

// Stats describes one live concurrent vector in the process registry.
type Stats struct {
	ID             uint64
	Len            int
	Cap            int
	CommittedBytes int64
	Refills        int64
}

type statser interface {
	Stats() Stats
}

// registry is the process-wide table of live concurrent vectors. Vectors
// register on construction and unregister on Close; instance ids are never
// reused within a process.
type registry struct {
	mu      sync.Mutex
	nextID  uint64
	vectors map[uint64]statser
	logger  hclog.Logger
}

var processRegistry = &registry{
	vectors: make(map[uint64]statser),
	logger:  hclog.NewNullLogger(),
}

func register(v statser) uint64 {
	r := processRegistry
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := r.nextID
	r.vectors[id] = v
	r.logger.Debug("registered vector", "vector", id, "live", len(r.vectors))
	return id
}

func unregister(id uint64) {
	r := processRegistry
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.vectors, id)
	r.logger.Debug("unregistered vector", "vector", id, "live", len(r.vectors))
}

// Vectors snapshots the registry, ordered by instance id.
func Vectors() []Stats {
	r := processRegistry
	r.mu.Lock()
	out := make([]Stats, 0, len(r.vectors))
	for _, v := range r.vectors {
		out = append(out, v.Stats())
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SetRegistryLogger attaches a logger to the process registry.
func SetRegistryLogger(l hclog.Logger) {
	if l == nil {
		return
	}
	r := processRegistry
	r.mu.Lock()
	r.logger = l.Named("vmvec.registry")
	r.mu.Unlock()
}
