package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// Options defines tuning knobs loaded from YAML and/or set in code.
type Options struct {
	// MaxNodes caps the node store, sentinel included.
	MaxNodes int `yaml:"max_nodes"`

	// InitialCapacity is how many node slots are committed eagerly at
	// construction.
	InitialCapacity int `yaml:"initial_capacity"`

	// ChunkBytes is the page-commit unit of the backing vectors.
	ChunkBytes int `yaml:"chunk_bytes"`

	// RegionSlots is the bump-region length handed to one producer of a
	// concurrent vector.
	RegionSlots int `yaml:"region_slots"`
}

// Default returns the built-in tuning values.
func Default() Options {
	return Options{
		MaxNodes:        1 << 22,
		InitialCapacity: 1024,
		ChunkBytes:      64 << 20,
		RegionSlots:     32,
	}
}

// Load overlays the YAML file at path onto Default(): fields present in
// the file win, absent ones keep their defaults. An empty path or a
// missing file yields the defaults unchanged.
func Load(path string) (Options, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return cfg, nil
	case err != nil:
		return cfg, fmt.Errorf("read options %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse options %s: %w", path, err)
	}
	return cfg, nil
}
