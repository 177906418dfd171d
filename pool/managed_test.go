package pool

import (
	"fmt"
	"math/rand"
	"runtime"
	"sync"
	"testing"

	"github.com/lni/goutils/leaktest"
	"github.com/momentics/segpool/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var strategies = []Strategy{StrategyWaitFree, StrategyGuarded}

func newTestManaged(t *testing.T, opts ...Option) *ManagedPool[byte] {
	t.Helper()
	p, err := NewManagedPool[byte](append([]Option{WithLogger(zap.NewNop())}, opts...)...)
	require.NoError(t, err)
	return p
}

func forEachStrategy(t *testing.T, fn func(t *testing.T, s Strategy)) {
	for _, s := range strategies {
		t.Run(s.String(), func(t *testing.T) { fn(t, s) })
	}
}

func TestManagedPool_RentRoundsUpToClass(t *testing.T) {
	forEachStrategy(t, func(t *testing.T, s Strategy) {
		p := newTestManaged(t, WithStrategy(s))
		for _, tt := range []struct{ req, want int }{{1, 16}, {16, 16}, {17, 32}, {100, 128}, {4097, 8192}} {
			buf, err := p.Rent(tt.req)
			require.NoError(t, err)
			assert.Len(t, buf, tt.want, "rent(%d)", tt.req)
			assert.Equal(t, tt.want, cap(buf))
		}
	})
}

func TestManagedPool_RejectsNonPositive(t *testing.T) {
	p := newTestManaged(t)
	for _, n := range []int{0, -1} {
		_, err := p.Rent(n)
		assert.ErrorIs(t, err, api.ErrInvalidArgument)
		assert.Equal(t, api.ErrCodeInvalidArgument, api.CodeOf(err))
	}
	assert.Zero(t, p.Stats().Rents)
}

func TestManagedPool_ReuseOnQuiescence(t *testing.T) {
	forEachStrategy(t, func(t *testing.T, s Strategy) {
		p := newTestManaged(t, WithStrategy(s))
		a, err := p.Rent(100)
		require.NoError(t, err)
		before := p.AllocationCount()
		p.Return(a)

		b, err := p.Rent(100)
		require.NoError(t, err)
		assert.True(t, sameBacking(a, b))
		assert.Equal(t, before, p.AllocationCount(), "reuse is not an allocation")
		assert.EqualValues(t, 1, p.AllocationCount())
	})
}

func TestManagedPool_ReturnResliced(t *testing.T) {
	forEachStrategy(t, func(t *testing.T, s Strategy) {
		p := newTestManaged(t, WithStrategy(s))
		a, _ := p.Rent(64)
		p.Return(a[:10])

		b, _ := p.Rent(50)
		assert.True(t, sameBacking(a, b))
		assert.Len(t, b, 64, "buffer comes back at full class length")
	})
}

func TestManagedPool_OversizedBypass(t *testing.T) {
	forEachStrategy(t, func(t *testing.T, s Strategy) {
		p := newTestManaged(t, WithStrategy(s), WithMaxPoolableSize(1024))
		for i := 1; i <= 3; i++ {
			buf, err := p.Rent(2000)
			require.NoError(t, err)
			assert.Len(t, buf, 2000)
			p.Return(buf)
			assert.EqualValues(t, i, p.AllocationCount())
		}
		st := p.Stats()
		assert.EqualValues(t, 3, st.LargeAllocations)
		assert.EqualValues(t, 3, st.Dropped)
		assert.Zero(t, st.SizeMismatches)
		assert.Empty(t, st.Classes, "oversized requests never touch a bucket")
	})
}

func TestManagedPool_CeilingBetweenClasses(t *testing.T) {
	forEachStrategy(t, func(t *testing.T, s Strategy) {
		p := newTestManaged(t, WithStrategy(s), WithMaxPoolableSize(127))
		assert.Equal(t, 128, p.MaxPoolableSize(), "ceiling rounds up to a class capacity")

		over, err := p.Rent(p.MaxPoolableSize() + 1)
		require.NoError(t, err)
		assert.Len(t, over, 129)
		p.Return(over)
		st := p.Stats()
		assert.EqualValues(t, 1, st.LargeAllocations)
		assert.EqualValues(t, 1, st.Dropped)
		assert.Empty(t, st.Classes, "bypass buffer never enters the table")

		pooled, err := p.Rent(128)
		require.NoError(t, err)
		assert.Len(t, pooled, 128)
		assert.EqualValues(t, 1, p.LargeAllocationCount(), "a class-sized request is served by its bucket")
		p.Return(pooled)

		again, err := p.Rent(100)
		require.NoError(t, err)
		assert.True(t, sameBacking(pooled, again))
		assert.False(t, sameBacking(over, again))
	})
}

func TestManagedPool_CapacityCeiling(t *testing.T) {
	forEachStrategy(t, func(t *testing.T, s Strategy) {
		p := newTestManaged(t, WithStrategy(s), WithBucketCapacity(2))
		bufs := make([][]byte, 3)
		for i := range bufs {
			bufs[i], _ = p.Rent(32)
		}
		for _, b := range bufs {
			p.Return(b)
		}
		st := p.Stats()
		assert.EqualValues(t, 1, st.Dropped)
		require.Len(t, st.Classes, 1)
		assert.Equal(t, 2, st.Classes[0].Idle)

		for range bufs {
			_, _ = p.Rent(32)
		}
		assert.EqualValues(t, 4, p.AllocationCount(), "only two of three were kept")
	})
}

func TestManagedPool_ReturnWithoutClass(t *testing.T) {
	p := newTestManaged(t, WithMaxPoolableSize(1024))
	p.Return(make([]byte, 100))
	p.Return(make([]byte, 8))
	p.Return(make([]byte, 4096)) // class capacity, but above this pool's table
	p.Return(nil)

	st := p.Stats()
	assert.EqualValues(t, 3, st.Returns)
	assert.EqualValues(t, 2, st.SizeMismatches)
	assert.EqualValues(t, 1, st.Dropped)
	assert.Empty(t, st.Classes)
}

func TestManagedPool_ForeignClassBufferIsKept(t *testing.T) {
	p := newTestManaged(t)
	foreign := make([]byte, 256)
	p.Return(foreign)
	got, _ := p.Rent(200)
	assert.True(t, sameBacking(foreign, got))
	assert.Zero(t, p.AllocationCount())
}

func TestManagedPool_Enlarge(t *testing.T) {
	forEachStrategy(t, func(t *testing.T, s Strategy) {
		p := newTestManaged(t, WithStrategy(s))
		small, _ := p.Rent(16)
		copy(small, "segmented buffer")

		big, err := p.Enlarge(small, 100)
		require.NoError(t, err)
		assert.Len(t, big, 128)
		assert.Equal(t, "segmented buffer", string(big[:16]))

		again, _ := p.Rent(16)
		assert.True(t, sameBacking(small, again), "old buffer went back to its class")
	})
}

func TestManagedPool_EnlargeInvalid(t *testing.T) {
	p := newTestManaged(t)
	buf, _ := p.Rent(16)
	got, err := p.Enlarge(buf, 0)
	assert.ErrorIs(t, err, api.ErrInvalidArgument)
	assert.True(t, sameBacking(buf, got), "caller keeps the original on failure")
}

func TestManagedPool_EnlargeBelowContentTruncates(t *testing.T) {
	p := newTestManaged(t)
	buf, _ := p.Rent(100)
	for i := range buf {
		buf[i] = byte(i)
	}
	want := append([]byte(nil), buf[:32]...)

	got, err := p.Enlarge(buf, 20)
	require.NoError(t, err)
	assert.Len(t, got, 32)
	assert.Equal(t, want, got)
}

func TestManagedPool_GenericElement(t *testing.T) {
	p, err := NewManagedPool[uint64](WithLogger(zap.NewNop()), WithMaxPoolableSize(256))
	require.NoError(t, err)
	buf, err := p.Rent(20)
	require.NoError(t, err)
	assert.Len(t, buf, 32)
	p.Return(buf)
	again, _ := p.Rent(32)
	assert.True(t, sameBacking(buf, again))
}

func TestManagedPool_InvalidOptions(t *testing.T) {
	for name, opt := range map[string]Option{
		"zero ceiling":     WithMaxPoolableSize(0),
		"ceiling too big":  WithMaxPoolableSize(MaxPoolableLimit + 1),
		"zero capacity":    WithBucketCapacity(0),
		"unknown strategy": WithStrategy(Strategy(7)),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := NewManagedPool[byte](opt)
			assert.ErrorIs(t, err, api.ErrInvalidArgument)
		})
	}
}

func TestManagedPool_LogsCreation(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	p, err := NewManagedPool[byte](WithLogger(zap.New(core)), WithStrategy(StrategyGuarded))
	require.NoError(t, err)
	_, _ = p.Rent(10)

	created := logs.FilterMessage("managed pool created").All()
	require.Len(t, created, 1)
	assert.Equal(t, "guarded", created[0].ContextMap()["strategy"])
	assert.Equal(t, 1, logs.FilterMessage("bucket materialized").Len())
}

func TestManagedPool_Stats(t *testing.T) {
	p := newTestManaged(t, WithBucketCapacity(4))
	a, _ := p.Rent(16)
	b, _ := p.Rent(1000)
	p.Return(a)
	p.Return(b)

	st := p.Stats()
	assert.Equal(t, DefaultMaxPoolableSize, st.MaxPoolableSize)
	assert.EqualValues(t, 2, st.Rents)
	assert.EqualValues(t, 2, st.Returns)
	assert.EqualValues(t, 2, st.Allocations)
	require.Len(t, st.Classes, 2)
	assert.Equal(t, api.ClassStats{Index: 0, BufferSize: 16, Capacity: 4, Idle: 1, Allocations: 1}, st.Classes[0])
	assert.Equal(t, 1024, st.Classes[1].BufferSize)
	assert.False(t, st.Disposed)
}

// Every rented buffer is stamped with its owner's id and checked before
// return; two goroutines sharing a buffer would overwrite each other's stamp.
func TestManagedPool_NoAliasingUnderContention(t *testing.T) {
	defer leaktest.AfterTest(t)()
	forEachStrategy(t, func(t *testing.T, s Strategy) {
		p := newTestManaged(t, WithStrategy(s), WithBucketCapacity(4), WithMaxPoolableSize(4096))
		const workers, rounds = 8, 2000

		var wg sync.WaitGroup
		errs := make(chan error, workers)
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func(id byte) {
				defer wg.Done()
				rng := rand.New(rand.NewSource(int64(id)))
				for i := 0; i < rounds; i++ {
					buf, err := p.Rent(1 + rng.Intn(512))
					if err != nil {
						errs <- err
						return
					}
					for j := range buf {
						buf[j] = id
					}
					runtime.Gosched()
					for j := range buf {
						if buf[j] != id {
							errs <- fmt.Errorf("worker %d saw byte %d at %d of %d", id, buf[j], j, len(buf))
							return
						}
					}
					p.Return(buf)
				}
			}(byte(w + 1))
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Error(err)
		}

		st := p.Stats()
		assert.EqualValues(t, workers*rounds, st.Rents)
		assert.EqualValues(t, workers*rounds, st.Returns)
		assert.Zero(t, st.SizeMismatches)
	})
}
