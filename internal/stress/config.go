// File: internal/stress/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package stress

// Config describes a contention workload.
type Config struct {
	// Pool selects the pool flavour: managed or native.
	Pool string `yaml:"pool" toml:"pool" validate:"oneof=managed native"`
	// Workers is the number of concurrent renters.
	Workers int `yaml:"workers" toml:"workers" validate:"min=1,max=4096"`
	// Ops is the number of rents each worker performs.
	Ops int `yaml:"ops" toml:"ops" validate:"min=1"`
	// MinSize and MaxSize bound the requested sizes, inclusive.
	MinSize int `yaml:"min_size" toml:"min_size" validate:"min=1"`
	MaxSize int `yaml:"max_size" toml:"max_size" validate:"gtefield=MinSize,max=67108864"`
	// HoldDepth is how many buffers a worker keeps rented before returning
	// the oldest one.
	HoldDepth int `yaml:"hold_depth" toml:"hold_depth" validate:"min=0,max=1024"`
	// EnlargeEvery enlarges every n-th rented buffer; 0 disables.
	EnlargeEvery int `yaml:"enlarge_every" toml:"enlarge_every" validate:"min=0"`
	// Seed makes request sizes and fill patterns reproducible.
	Seed int64 `yaml:"seed" toml:"seed"`
}

// DefaultConfig returns a short managed-pool run.
func DefaultConfig() Config {
	return Config{
		Pool:         "managed",
		Workers:      8,
		Ops:          10000,
		MinSize:      1,
		MaxSize:      64 * 1024,
		HoldDepth:    4,
		EnlargeEvery: 16,
		Seed:         1,
	}
}
