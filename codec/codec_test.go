package codec

import (
	"bytes"
	"math/rand"
	"sync"
	"testing"

	"github.com/lni/goutils/leaktest"
	"github.com/momentics/segpool/api"
	"github.com/momentics/segpool/pool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type blockCodec interface {
	Encode(src []byte) ([]byte, error)
	Decode(src []byte) ([]byte, error)
	Release(buf []byte)
}

func newBytePool(t *testing.T) *pool.ManagedPool[byte] {
	t.Helper()
	p, err := pool.NewManagedPool[byte](pool.WithLogger(zap.NewNop()))
	require.NoError(t, err)
	return p
}

func codecs(t *testing.T, p api.Pool[[]byte]) map[string]blockCodec {
	t.Helper()
	lz, err := NewLZ4(p, zap.NewNop())
	require.NoError(t, err)
	return map[string]blockCodec{"snappy": NewSnappy(p), "lz4": lz}
}

func samples() map[string][]byte {
	rng := rand.New(rand.NewSource(7))
	random := make([]byte, 10000)
	rng.Read(random)
	return map[string][]byte{
		"empty":      {},
		"tiny":       []byte("abc"),
		"repetitive": bytes.Repeat([]byte("segmented buffer pool "), 500),
		"random":     random,
	}
}

func TestCodecs_RoundTrip(t *testing.T) {
	p := newBytePool(t)
	for name, c := range codecs(t, p) {
		for sample, src := range samples() {
			t.Run(name+"/"+sample, func(t *testing.T) {
				enc, err := c.Encode(src)
				require.NoError(t, err)
				dec, err := c.Decode(enc)
				require.NoError(t, err)
				assert.Equal(t, len(src), len(dec))
				assert.True(t, bytes.Equal(src, dec))
				c.Release(enc)
				c.Release(dec)
			})
		}
	}
	st := p.Stats()
	assert.Equal(t, st.Rents, st.Returns, "every rented buffer went back")
}

func TestCodecs_Compress(t *testing.T) {
	p := newBytePool(t)
	src := samples()["repetitive"]
	for name, c := range codecs(t, p) {
		enc, err := c.Encode(src)
		require.NoError(t, err)
		assert.Less(t, len(enc), len(src)/4, name)
		c.Release(enc)
	}
}

func TestLZ4_IncompressibleStoredRaw(t *testing.T) {
	p := newBytePool(t)
	lz, err := NewLZ4(p, zap.NewNop())
	require.NoError(t, err)
	src := samples()["random"]
	enc, err := lz.Encode(src)
	require.NoError(t, err)
	assert.Equal(t, methodRaw, enc[0])
	assert.LessOrEqual(t, len(enc), len(src)+maxHeaderLen)
	lz.Release(enc)
}

func TestCodecs_SteadyStateReuses(t *testing.T) {
	p := newBytePool(t)
	src := samples()["repetitive"]
	for name, c := range codecs(t, p) {
		for i := 0; i < 3; i++ {
			enc, _ := c.Encode(src)
			dec, _ := c.Decode(enc)
			c.Release(enc)
			c.Release(dec)
		}
		warm := p.AllocationCount()
		for i := 0; i < 20; i++ {
			enc, _ := c.Encode(src)
			dec, _ := c.Decode(enc)
			c.Release(enc)
			c.Release(dec)
		}
		assert.Equal(t, warm, p.AllocationCount(), "%s allocates after warm-up", name)
	}
}

func TestLZ4_HashTablesPooled(t *testing.T) {
	p := newBytePool(t)
	lz, err := NewLZ4(p, zap.NewNop())
	require.NoError(t, err)
	src := samples()["repetitive"]
	for i := 0; i < 10; i++ {
		enc, err := lz.Encode(src)
		require.NoError(t, err)
		lz.Release(enc)
	}
	st := lz.HashTableStats()
	assert.EqualValues(t, 10, st.Rents)
	assert.EqualValues(t, 1, st.Allocations)
}

func TestCodecs_Corrupt(t *testing.T) {
	p := newBytePool(t)
	for name, c := range codecs(t, p) {
		for _, bad := range [][]byte{nil, {0xff}, {methodLZ4, 0x80}, {methodLZ4, 10, 0xf0, 0x01}, {9, 1, 0}} {
			_, err := c.Decode(bad)
			assert.ErrorIs(t, err, ErrCorrupt, "%s decode %v", name, bad)
		}
	}
	st := p.Stats()
	assert.Equal(t, st.Rents, st.Returns, "failed decodes give their buffer back")
}

func TestLZ4_RejectsHugeHeader(t *testing.T) {
	p := newBytePool(t)
	lz, err := NewLZ4(p, zap.NewNop())
	require.NoError(t, err)
	hdr := make([]byte, maxHeaderLen)
	n := putHeader(hdr, methodRaw, MaxBlockSize+1)
	_, err = lz.Decode(hdr[:n])
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.Zero(t, p.Stats().Rents)
}

func TestCodecs_Concurrent(t *testing.T) {
	defer leaktest.AfterTest(t)()
	p := newBytePool(t)
	src := samples()["repetitive"]
	for name, c := range codecs(t, p) {
		var wg sync.WaitGroup
		for w := 0; w < 8; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 200; i++ {
					enc, err := c.Encode(src)
					if err != nil {
						t.Error(err)
						return
					}
					dec, err := c.Decode(enc)
					if err != nil || !bytes.Equal(dec, src) {
						t.Errorf("%s: round trip mismatch: %v", name, err)
						return
					}
					c.Release(enc)
					c.Release(dec)
				}
			}()
		}
		wg.Wait()
	}
}
