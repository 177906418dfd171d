// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Prometheus export of pool statistics. Counters are read from Stats at
// scrape time, so pools carry no metric state of their own.

package control

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/momentics/segpool/api"
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "segpool"

// StatsSource is anything that can snapshot pool statistics.
type StatsSource interface {
	Stats() api.PoolStats
}

var (
	_ StatsSource = api.Pool[[]byte](nil)

	poolLabels  = []string{"pool"}
	classLabels = []string{"pool", "buffer_size"}
)

func desc(name, help string, labels []string) *prometheus.Desc {
	return prometheus.NewDesc(prometheus.BuildFQName(metricsNamespace, "", name), help, labels, nil)
}

// PoolCollector exposes the statistics of named pools.
type PoolCollector struct {
	mu    sync.RWMutex
	pools map[string]StatsSource

	rents            *prometheus.Desc
	returns          *prometheus.Desc
	allocations      *prometheus.Desc
	largeAllocations *prometheus.Desc
	dropped          *prometheus.Desc
	sizeMismatches   *prometheus.Desc
	lostRaces        *prometheus.Desc
	patchedHoles     *prometheus.Desc
	discardedBuckets *prometheus.Desc
	lateReturns      *prometheus.Desc
	outstandingBytes *prometheus.Desc
	disposed         *prometheus.Desc
	classIdle        *prometheus.Desc
	classCapacity    *prometheus.Desc
	classAllocations *prometheus.Desc
}

var _ prometheus.Collector = (*PoolCollector)(nil)

// NewPoolCollector creates an empty collector.
func NewPoolCollector() *PoolCollector {
	return &PoolCollector{
		pools:            make(map[string]StatsSource),
		rents:            desc("rents_total", "Rent calls that returned a buffer or reached a bucket.", poolLabels),
		returns:          desc("returns_total", "Return calls with a non-nil buffer.", poolLabels),
		allocations:      desc("allocations_total", "Fresh buffer allocations, including oversized requests.", poolLabels),
		largeAllocations: desc("large_allocations_total", "Requests above the poolable ceiling.", poolLabels),
		dropped:          desc("dropped_total", "Returned buffers discarded because their bucket was full or they were oversized.", poolLabels),
		sizeMismatches:   desc("size_mismatches_total", "Returned buffers whose size matched no class.", poolLabels),
		lostRaces:        desc("lost_races_total", "Cursor compare-and-swap races lost in wait-free buckets.", poolLabels),
		patchedHoles:     desc("patched_holes_total", "Slots refilled after a renter lost the cursor race.", poolLabels),
		discardedBuckets: desc("discarded_buckets_total", "Buckets built concurrently and thrown away.", poolLabels),
		lateReturns:      desc("late_returns_total", "Buffers returned after the pool was disposed.", poolLabels),
		outstandingBytes: desc("outstanding_bytes", "Platform memory currently held outside the Go heap.", poolLabels),
		disposed:         desc("disposed", "1 once the pool has been disposed.", poolLabels),
		classIdle:        desc("class_idle_buffers", "Idle buffers held by a size class.", classLabels),
		classCapacity:    desc("class_capacity_buffers", "Maximum idle buffers a size class retains.", classLabels),
		classAllocations: desc("class_allocations_total", "Fresh allocations made by a size class.", classLabels),
	}
}

// Add starts exporting src under name. Re-adding a name replaces its source.
func (c *PoolCollector) Add(name string, src StatsSource) {
	c.mu.Lock()
	c.pools[name] = src
	c.mu.Unlock()
}

// Remove stops exporting name.
func (c *PoolCollector) Remove(name string) {
	c.mu.Lock()
	delete(c.pools, name)
	c.mu.Unlock()
}

// Describe implements prometheus.Collector.
func (c *PoolCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.rents, c.returns, c.allocations, c.largeAllocations, c.dropped,
		c.sizeMismatches, c.lostRaces, c.patchedHoles, c.discardedBuckets,
		c.lateReturns, c.outstandingBytes, c.disposed,
		c.classIdle, c.classCapacity, c.classAllocations,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *PoolCollector) Collect(ch chan<- prometheus.Metric) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for name, src := range c.pools {
		c.collectPool(ch, name, src.Stats())
	}
}

func (c *PoolCollector) collectPool(ch chan<- prometheus.Metric, name string, s api.PoolStats) {
	counter := func(d *prometheus.Desc, v uint64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), name)
	}
	counter(c.rents, s.Rents)
	counter(c.returns, s.Returns)
	counter(c.allocations, s.Allocations)
	counter(c.largeAllocations, s.LargeAllocations)
	counter(c.dropped, s.Dropped)
	counter(c.sizeMismatches, s.SizeMismatches)
	counter(c.lostRaces, s.LostRaces)
	counter(c.patchedHoles, s.PatchedHoles)
	counter(c.discardedBuckets, s.DiscardedBuckets)
	counter(c.lateReturns, s.LateReturns)

	ch <- prometheus.MustNewConstMetric(c.outstandingBytes, prometheus.GaugeValue, float64(s.OutstandingBytes), name)
	disposed := 0.0
	if s.Disposed {
		disposed = 1
	}
	ch <- prometheus.MustNewConstMetric(c.disposed, prometheus.GaugeValue, disposed, name)

	for _, cls := range s.Classes {
		size := strconv.Itoa(cls.BufferSize)
		ch <- prometheus.MustNewConstMetric(c.classIdle, prometheus.GaugeValue, float64(cls.Idle), name, size)
		ch <- prometheus.MustNewConstMetric(c.classCapacity, prometheus.GaugeValue, float64(cls.Capacity), name, size)
		ch <- prometheus.MustNewConstMetric(c.classAllocations, prometheus.CounterValue, float64(cls.Allocations), name, size)
	}
}

// MetricsRegistry bundles a Prometheus registry with the pool collector.
type MetricsRegistry struct {
	registry  *prometheus.Registry
	collector *PoolCollector
}

// NewMetricsRegistry creates a registry with the pool collector installed.
func NewMetricsRegistry() *MetricsRegistry {
	r := &MetricsRegistry{
		registry:  prometheus.NewRegistry(),
		collector: NewPoolCollector(),
	}
	r.registry.MustRegister(r.collector)
	return r
}

// RegisterPool exports src under name.
func (r *MetricsRegistry) RegisterPool(name string, src StatsSource) error {
	if name == "" || src == nil {
		return fmt.Errorf("register pool %q: %w", name, api.ErrInvalidArgument)
	}
	r.collector.Add(name, src)
	return nil
}

// GetSnapshot returns the current statistics of every registered pool.
func (r *MetricsRegistry) GetSnapshot() map[string]api.PoolStats {
	r.collector.mu.RLock()
	defer r.collector.mu.RUnlock()
	out := make(map[string]api.PoolStats, len(r.collector.pools))
	for name, src := range r.collector.pools {
		out[name] = src.Stats()
	}
	return out
}

// Registry returns the underlying Prometheus registry, e.g. for promhttp.
func (r *MetricsRegistry) Registry() *prometheus.Registry {
	return r.registry
}
