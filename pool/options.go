// File: pool/options.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Functional options shared by managed and native pools.

package pool

import (
	"fmt"
	"math"

	"github.com/momentics/segpool/api"
	"github.com/momentics/segpool/internal/logutil"
	"go.uber.org/zap"
)

// Strategy selects the synchronization scheme of managed buckets.
type Strategy int

const (
	// StrategyWaitFree uses atomic slot exchange and never blocks.
	StrategyWaitFree Strategy = iota
	// StrategyGuarded uses a short spinlock-protected critical section.
	StrategyGuarded
)

// String returns the config spelling of the strategy.
func (s Strategy) String() string {
	switch s {
	case StrategyWaitFree:
		return "waitfree"
	case StrategyGuarded:
		return "guarded"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// ParseStrategy converts a config string to a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "", "waitfree", "wait-free":
		return StrategyWaitFree, nil
	case "guarded":
		return StrategyGuarded, nil
	default:
		return 0, fmt.Errorf("strategy %q: %w", s, api.ErrInvalidArgument)
	}
}

const (
	// DefaultMaxPoolableSize is the ceiling of the shared default pool.
	DefaultMaxPoolableSize = 1 << 20
	// DefaultBucketCapacity is the number of idle buffers kept per managed class.
	DefaultBucketCapacity = 50
	// DefaultNativeBucketCapacity is the slab window count per native class.
	DefaultNativeBucketCapacity = 8
)

// SlabInfo describes an unmanaged slab for allocation/free hooks.
type SlabInfo struct {
	BufferSize int
	Capacity   int
	Bytes      int
}

type config struct {
	maxPoolableSize int
	bucketCapacity  int
	strategy        Strategy
	logger          *zap.Logger
	onSlabAlloc     func(SlabInfo)
	onSlabFree      func(SlabInfo)
}

// Option customizes pool construction.
type Option func(*config)

// WithMaxPoolableSize sets the largest request served from buckets. Larger
// requests bypass the pool. A ceiling between two class capacities is
// rounded up to the next one, so every size the bucket table can hold is
// served from it and nothing above it ever enters it.
func WithMaxPoolableSize(n int) Option {
	return func(c *config) {
		c.maxPoolableSize = n
	}
}

// WithBucketCapacity sets how many idle buffers each class retains.
func WithBucketCapacity(n int) Option {
	return func(c *config) {
		c.bucketCapacity = n
	}
}

// WithStrategy selects the managed bucket variant. Native pools always use
// guarded buckets.
func WithStrategy(s Strategy) Option {
	return func(c *config) {
		c.strategy = s
	}
}

// WithLogger sets the logger; nil keeps the process logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithSlabHooks registers callbacks run after a native slab is mapped and
// after it is freed. Ignored by managed pools.
func WithSlabHooks(onAlloc, onFree func(SlabInfo)) Option {
	return func(c *config) {
		c.onSlabAlloc = onAlloc
		c.onSlabFree = onFree
	}
}

func newConfig(bucketCapacity int, opts []Option) (config, error) {
	c := config{
		maxPoolableSize: DefaultMaxPoolableSize,
		bucketCapacity:  bucketCapacity,
		strategy:        StrategyWaitFree,
		logger:          logutil.GetGlobalLogger(),
	}
	for _, opt := range opts {
		opt(&c)
	}
	if c.maxPoolableSize <= 0 || c.maxPoolableSize > MaxPoolableLimit {
		return c, api.ErrInvalidArgument.WithContext("maxPoolableSize", c.maxPoolableSize)
	}
	c.maxPoolableSize = ClassCapacity(NumClasses(c.maxPoolableSize) - 1)
	if c.bucketCapacity <= 0 || c.bucketCapacity > math.MaxInt32 {
		return c, api.ErrInvalidArgument.WithContext("bucketCapacity", c.bucketCapacity)
	}
	if c.strategy != StrategyWaitFree && c.strategy != StrategyGuarded {
		return c, api.ErrInvalidArgument.WithContext("strategy", int(c.strategy))
	}
	return c, nil
}
