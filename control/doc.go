// Package control
// Author: momentics <momentics@gmail.com>
//
// Configuration, metrics export and debug introspection for segpool.
//
// Provides:
//   - Config loading from YAML or TOML with struct-tag validation, and its
//     translation into pool options
//   - PoolCollector, a Prometheus collector reading pool Stats at scrape time
//   - DebugProbes, named on-demand snapshots of pool and platform state
//
// Platform probes are build-tag-partitioned.
package control
