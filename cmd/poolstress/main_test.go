// File: cmd/poolstress/main_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/momentics/segpool/internal/stress"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const yamlConfig = `
max_poolable_size: 4096
bucket_capacity: 8
strategy: guarded
log:
  level: error
stress:
  pool: managed
  workers: 4
  ops: 200
  min_size: 1
  max_size: 8192
  hold_depth: 3
  enlarge_every: 5
  seed: 7
`

func TestRun_ManagedFromYAML(t *testing.T) {
	var out, errOut bytes.Buffer
	path := writeConfig(t, "stress.yaml", yamlConfig)

	err := run(context.Background(), []string{"-config", path, "-format", "json"}, &out, &errOut)
	require.NoError(t, err, errOut.String())

	rep, err := stress.DecodeReport(out.Bytes(), stress.FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, "managed", rep.Pool)
	assert.Equal(t, 4, rep.Workers)
	assert.EqualValues(t, 800, rep.Operations)
	assert.Zero(t, rep.Corruptions)
	assert.Equal(t, rep.Stats.Rents, rep.Stats.Returns)
	assert.Equal(t, 4096, rep.Stats.MaxPoolableSize)
}

func TestRun_FlagsOverrideFile(t *testing.T) {
	var out, errOut bytes.Buffer
	path := writeConfig(t, "stress.yaml", yamlConfig)

	err := run(context.Background(), []string{
		"-config", path, "-pool", "native", "-workers", "2", "-ops", "50", "-format", "yaml",
	}, &out, &errOut)
	require.NoError(t, err, errOut.String())

	rep, err := stress.DecodeReport(out.Bytes(), stress.FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, "native", rep.Pool)
	assert.EqualValues(t, 100, rep.Operations)
	assert.False(t, rep.Stats.Disposed, "report is taken before dispose")
}

func TestRun_TOMLWithMetricsAndProbes(t *testing.T) {
	var out, errOut bytes.Buffer
	path := writeConfig(t, "stress.toml", `
strategy = "waitfree"

[log]
level = "error"

[stress]
pool = "managed"
workers = 2
ops = 20
min_size = 16
max_size = 512
`)

	err := run(context.Background(), []string{"-config", path, "-metrics", "-probes"}, &out, &errOut)
	require.NoError(t, err, errOut.String())
	text := out.String()
	assert.Contains(t, text, "# probe pool.managed:")
	assert.Contains(t, text, "# probe platform.page_size:")
	assert.Contains(t, text, `segpool_rents_total{pool="managed"}`)
	assert.Contains(t, text, "segpool_class_idle_buffers")
}

func TestRun_RejectsBadInput(t *testing.T) {
	cases := map[string][]string{
		"unknown flag":   {"-bogus"},
		"bad pool":       {"-pool", "remote"},
		"inverted sizes": {"-min", "100", "-max", "10"},
		"missing file":   {"-config", filepath.Join(t.TempDir(), "none.yaml")},
		"bad strategy":   {"-strategy", "fifo"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			var out, errOut bytes.Buffer
			assert.Error(t, run(context.Background(), args, &out, &errOut))
			assert.Empty(t, out.String())
		})
	}
}

func TestRun_UnknownKeyInFile(t *testing.T) {
	var out, errOut bytes.Buffer
	path := writeConfig(t, "stress.yaml", "stress:\n  pool: managed\n  threads: 3\n")
	assert.Error(t, run(context.Background(), []string{"-config", path}, &out, &errOut))
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var out, errOut bytes.Buffer
	err := run(ctx, []string{"-ops", "1000", "-format", "cbor"}, &out, &errOut)
	require.ErrorIs(t, err, context.Canceled)

	rep, derr := stress.DecodeReport(out.Bytes(), stress.FormatCBOR)
	require.NoError(t, derr)
	assert.Zero(t, rep.Operations)
}
