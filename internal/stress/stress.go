// File: internal/stress/stress.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Contention workload over any pool. Every rented buffer is filled with a
// worker-private pattern and checksummed; the checksum is verified just before
// the buffer is returned, so a buffer handed to two renters at once shows up
// as a corruption.

package stress

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/eapache/queue"
	"github.com/google/uuid"
	"github.com/momentics/segpool/api"
	"github.com/momentics/segpool/pool"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

// Target is the pool under test together with access to a buffer's bytes.
type Target[B any] struct {
	Name  string
	Pool  api.Pool[B]
	Bytes func(B) []byte
}

// ManagedTarget wraps a byte pool.
func ManagedTarget(name string, p api.Pool[[]byte]) Target[[]byte] {
	return Target[[]byte]{Name: name, Pool: p, Bytes: func(b []byte) []byte { return b }}
}

// NativeTarget wraps a native pool.
func NativeTarget(name string, p api.Pool[*pool.NativeBuffer]) Target[*pool.NativeBuffer] {
	return Target[*pool.NativeBuffer]{Name: name, Pool: p, Bytes: (*pool.NativeBuffer).Bytes}
}

type held[B any] struct {
	buf  B
	n    int
	sum  uint64
	from int
}

type counters struct {
	ops         atomic.Uint64
	corruptions atomic.Uint64
	errors      atomic.Uint64
}

// runner holds the state shared by the workers of one run.
type runner[B any] struct {
	cfg    Config
	target Target[B]
	logger *zap.Logger
	queues *pool.SyncPool[*queue.Queue]
	counters
}

// Run drives cfg.Workers goroutines against target until each has performed
// cfg.Ops rents or ctx is done.
func Run[B any](ctx context.Context, cfg Config, target Target[B], logger *zap.Logger) (*Report, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers <= 0 || cfg.Ops <= 0 || cfg.MinSize <= 0 || cfg.MaxSize < cfg.MinSize {
		return nil, api.ErrInvalidArgument.
			WithContext("workers", cfg.Workers).
			WithContext("ops", cfg.Ops).
			WithContext("size", fmt.Sprintf("%d..%d", cfg.MinSize, cfg.MaxSize))
	}
	r := &runner[B]{
		cfg:    cfg,
		target: target,
		logger: logger,
		queues: pool.NewSyncPool(queue.New, func(q *queue.Queue) {
			for q.Length() > 0 {
				q.Remove()
			}
		}),
	}

	workers, err := ants.NewPool(cfg.Workers, ants.WithPanicHandler(func(v interface{}) {
		r.errors.Add(1)
		logger.Error("stress worker panicked", zap.Any("panic", v))
	}))
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	defer workers.Release()

	report := &Report{
		RunID:   uuid.NewString(),
		Pool:    target.Name,
		Workers: cfg.Workers,
		Ops:     cfg.Ops,
		Seed:    cfg.Seed,
	}
	logger.Info("stress run started",
		zap.String("run_id", report.RunID),
		zap.String("pool", target.Name),
		zap.Int("workers", cfg.Workers),
		zap.Int("ops", cfg.Ops))

	start := time.Now()
	var wg sync.WaitGroup
	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		id := w
		if err := workers.Submit(func() {
			defer wg.Done()
			r.work(ctx, id)
		}); err != nil {
			wg.Done()
			r.errors.Add(1)
			logger.Error("submit stress worker", zap.Int("worker", id), zap.Error(err))
		}
	}
	wg.Wait()

	report.Duration = time.Since(start)
	report.Operations = r.ops.Load()
	report.Corruptions = r.corruptions.Load()
	report.Errors = r.errors.Load()
	if secs := report.Duration.Seconds(); secs > 0 {
		report.OpsPerSecond = float64(report.Operations) / secs
	}
	report.Stats = target.Pool.Stats()

	logger.Info("stress run finished",
		zap.String("run_id", report.RunID),
		zap.Duration("duration", report.Duration),
		zap.Uint64("operations", report.Operations),
		zap.Uint64("corruptions", report.Corruptions),
		zap.Uint64("errors", report.Errors))
	if report.Corruptions > 0 {
		return report, fmt.Errorf("%d buffers changed while rented: %w", report.Corruptions, ErrAliasing)
	}
	return report, ctx.Err()
}

func (r *runner[B]) work(ctx context.Context, id int) {
	rng := rand.New(rand.NewSource(r.cfg.Seed + int64(id)))
	q := r.queues.Get()
	defer func() {
		for q.Length() > 0 {
			r.release(q.Remove().(held[B]))
		}
		r.queues.Put(q)
	}()

	span := r.cfg.MaxSize - r.cfg.MinSize + 1
	for i := 0; i < r.cfg.Ops; i++ {
		if ctx.Err() != nil {
			return
		}
		n := r.cfg.MinSize + rng.Intn(span)
		buf, err := r.target.Pool.Rent(n)
		if err != nil {
			r.errors.Add(1)
			r.logger.Debug("rent failed", zap.Int("size", n), zap.Error(err))
			continue
		}
		r.ops.Add(1)
		data := r.target.Bytes(buf)[:n]
		rng.Read(data)
		h := held[B]{buf: buf, n: n, sum: xxhash.Sum64(data), from: id}

		if r.cfg.EnlargeEvery > 0 && i%r.cfg.EnlargeEvery == 0 {
			h = r.enlarge(h, rng)
		}
		q.Add(h)
		for q.Length() > r.cfg.HoldDepth {
			r.release(q.Remove().(held[B]))
		}
	}
}

// enlarge grows h and checks the content survived the copy.
func (r *runner[B]) enlarge(h held[B], rng *rand.Rand) held[B] {
	next, err := r.target.Pool.Enlarge(h.buf, h.n+1+rng.Intn(h.n))
	if err != nil {
		r.errors.Add(1)
		return h
	}
	h.buf = next
	if xxhash.Sum64(r.target.Bytes(next)[:h.n]) != h.sum {
		r.corruptions.Add(1)
		r.logger.Warn("content lost on enlarge", zap.Int("worker", h.from), zap.Int("size", h.n))
	}
	return h
}

func (r *runner[B]) release(h held[B]) {
	if xxhash.Sum64(r.target.Bytes(h.buf)[:h.n]) != h.sum {
		r.corruptions.Add(1)
		r.logger.Warn("buffer changed while rented", zap.Int("worker", h.from), zap.Int("size", h.n))
	}
	r.target.Pool.Return(h.buf)
}
