// File: cmd/poolstress/main.go
// Package main
// Contention stress tool for segpool: many goroutines rent, fill, verify and
// return buffers while the pool is checked for aliasing and leaks.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/momentics/segpool/api"
	"github.com/momentics/segpool/control"
	"github.com/momentics/segpool/internal/logutil"
	"github.com/momentics/segpool/internal/stress"
	"github.com/momentics/segpool/pool"
	"github.com/prometheus/common/expfmt"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// fileConfig is the layout of the -config file: pool settings at the top
// level and the workload under "stress".
type fileConfig struct {
	control.Config `yaml:",inline"`
	Stress         stress.Config `yaml:"stress" toml:"stress"`
}

func defaultFileConfig() fileConfig {
	return fileConfig{Config: control.DefaultConfig(), Stress: stress.DefaultConfig()}
}

type options struct {
	configPath   string
	format       string
	dumpMetrics  bool
	dumpProbes   bool
	pool         string
	strategy     string
	workers      int
	ops          int
	minSize      int
	maxSize      int
	holdDepth    int
	enlargeEvery int
	seed         int64
}

func parseFlags(args []string, stderr io.Writer) (*options, *flag.FlagSet, error) {
	fs := flag.NewFlagSet("poolstress", flag.ContinueOnError)
	fs.SetOutput(stderr)
	o := &options{}
	fs.StringVar(&o.configPath, "config", "", "YAML or TOML config file")
	fs.StringVar(&o.format, "format", stress.FormatYAML, "report format: yaml, json or cbor")
	fs.BoolVar(&o.dumpMetrics, "metrics", false, "print Prometheus metrics after the run")
	fs.BoolVar(&o.dumpProbes, "probes", false, "print debug probes after the run")
	fs.StringVar(&o.pool, "pool", "", "pool flavour: managed or native")
	fs.StringVar(&o.strategy, "strategy", "", "managed bucket strategy: waitfree or guarded")
	fs.IntVar(&o.workers, "workers", 0, "concurrent workers")
	fs.IntVar(&o.ops, "ops", 0, "rents per worker")
	fs.IntVar(&o.minSize, "min", 0, "smallest request size")
	fs.IntVar(&o.maxSize, "max", 0, "largest request size")
	fs.IntVar(&o.holdDepth, "hold", 0, "buffers each worker keeps rented")
	fs.IntVar(&o.enlargeEvery, "enlarge-every", 0, "enlarge every n-th buffer, 0 disables")
	fs.Int64Var(&o.seed, "seed", 0, "random seed")
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	return o, fs, nil
}

// loadConfig reads the config file, if any, and applies flags the user set.
func loadConfig(o *options, fs *flag.FlagSet) (*fileConfig, error) {
	cfg := defaultFileConfig()
	if o.configPath != "" {
		if err := control.LoadFile(o.configPath, &cfg); err != nil {
			return nil, err
		}
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "pool":
			cfg.Stress.Pool = o.pool
		case "strategy":
			cfg.Strategy = o.strategy
		case "workers":
			cfg.Stress.Workers = o.workers
		case "ops":
			cfg.Stress.Ops = o.ops
		case "min":
			cfg.Stress.MinSize = o.minSize
		case "max":
			cfg.Stress.MaxSize = o.maxSize
		case "hold":
			cfg.Stress.HoldDepth = o.holdDepth
		case "enlarge-every":
			cfg.Stress.EnlargeEvery = o.enlargeEvery
		case "seed":
			cfg.Stress.Seed = o.seed
		}
	})
	if err := control.Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) (err error) {
	o, fs, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(o, fs)
	if err != nil {
		return err
	}
	logger, err := logutil.SetupLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	metrics := control.NewMetricsRegistry()
	probes := control.NewDebugProbes()
	control.RegisterPlatformProbes(probes)

	var (
		report *stress.Report
		runErr error
	)
	switch cfg.Stress.Pool {
	case "native":
		p, perr := pool.NewNativePool(cfg.NativeOptions(logger)...)
		if perr != nil {
			return perr
		}
		defer func() {
			err = multierr.Append(err, p.Dispose())
			if n := p.OutstandingBytes(); n != 0 {
				err = multierr.Append(err, fmt.Errorf("%d native bytes leaked: %w", n, api.ErrInternal))
			}
		}()
		if err := register(metrics, probes, "native", p); err != nil {
			return err
		}
		report, runErr = stress.Run(ctx, cfg.Stress, stress.NativeTarget("native", p), logger)
	default:
		opts, oerr := cfg.ManagedOptions(logger)
		if oerr != nil {
			return oerr
		}
		p, perr := pool.NewManagedPool[byte](opts...)
		if perr != nil {
			return perr
		}
		if err := register(metrics, probes, "managed", p); err != nil {
			return err
		}
		report, runErr = stress.Run(ctx, cfg.Stress, stress.ManagedTarget("managed", p), logger)
	}
	return multierr.Append(runErr, emit(stdout, o, report, metrics, probes))
}

func register(metrics *control.MetricsRegistry, probes *control.DebugProbes, name string, src control.StatsSource) error {
	probes.RegisterPoolProbe(name, src)
	return metrics.RegisterPool(name, src)
}

func emit(w io.Writer, o *options, report *stress.Report, metrics *control.MetricsRegistry, probes *control.DebugProbes) error {
	if report == nil {
		return nil
	}
	if err := report.Encode(w, o.format); err != nil {
		return err
	}
	if o.dumpProbes {
		state := probes.DumpState()
		for _, name := range probes.Names() {
			if _, err := fmt.Fprintf(w, "# probe %s: %+v\n", name, state[name]); err != nil {
				return err
			}
		}
	}
	if o.dumpMetrics {
		families, err := metrics.Registry().Gather()
		if err != nil {
			return err
		}
		sort.Slice(families, func(i, j int) bool { return families[i].GetName() < families[j].GetName() })
		for _, mf := range families {
			if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
				return err
			}
		}
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	switch {
	case err == nil:
	case errors.Is(err, flag.ErrHelp):
		os.Exit(2)
	default:
		logutil.GetGlobalLogger().Error("poolstress failed", zap.Error(err))
		fmt.Fprintln(os.Stderr, "poolstress:", err)
		stop()
		os.Exit(1)
	}
}
