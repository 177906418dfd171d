package control

import (
	"testing"

	"github.com/momentics/segpool/api"
	"github.com/momentics/segpool/pool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDebugProbes_PoolProbe(t *testing.T) {
	p, err := pool.NewManagedPool[byte](pool.WithLogger(zap.NewNop()))
	require.NoError(t, err)
	dp := NewDebugProbes()
	dp.RegisterPoolProbe("bytes", p)

	buf, _ := p.Rent(16)
	p.Return(buf)

	state := dp.DumpState()
	st, ok := state["pool.bytes"].(api.PoolStats)
	require.True(t, ok)
	assert.EqualValues(t, 1, st.Rents)
	assert.EqualValues(t, 1, st.Returns)
}

func TestDebugProbes_PlatformAndNames(t *testing.T) {
	dp := NewDebugProbes()
	RegisterPlatformProbes(dp)
	dp.RegisterProbe("custom", func() any { return "ok" })
	assert.Equal(t, []string{"custom", "platform.cpus", "platform.page_size"}, dp.Names())

	state := dp.DumpState()
	assert.Positive(t, state["platform.page_size"])
	assert.Positive(t, state["platform.cpus"])

	dp.UnregisterProbe("custom")
	dp.UnregisterProbe("missing")
	assert.NotContains(t, dp.DumpState(), "custom")
}
