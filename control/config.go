// control/config.go
// Author: momentics <momentics@gmail.com>
//
// File-based pool configuration: YAML or TOML, validated on load.

package control

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/momentics/segpool/api"
	"github.com/momentics/segpool/internal/logutil"
	"github.com/momentics/segpool/pool"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// Config holds pool construction settings. Zero fields keep the pool defaults.
type Config struct {
	MaxPoolableSize      int               `yaml:"max_poolable_size" toml:"max_poolable_size" validate:"omitempty,min=1,max=1073741824"`
	BucketCapacity       int               `yaml:"bucket_capacity" toml:"bucket_capacity" validate:"omitempty,min=1,max=2147483647"`
	NativeBucketCapacity int               `yaml:"native_bucket_capacity" toml:"native_bucket_capacity" validate:"omitempty,min=1,max=2147483647"`
	Strategy             string            `yaml:"strategy" toml:"strategy" validate:"omitempty,oneof=waitfree wait-free guarded"`
	Log                  logutil.LogConfig `yaml:"log" toml:"log"`
}

// DefaultConfig returns a config with every default spelled out.
func DefaultConfig() Config {
	return Config{
		MaxPoolableSize:      pool.DefaultMaxPoolableSize,
		BucketCapacity:       pool.DefaultBucketCapacity,
		NativeBucketCapacity: pool.DefaultNativeBucketCapacity,
		Strategy:             pool.StrategyWaitFree.String(),
		Log:                  logutil.LogConfig{Level: "info", Format: "console"},
	}
}

// Load reads and validates a Config from path.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if err := LoadFile(path, &cfg); err != nil {
		return nil, err
	}
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

// LoadFile decodes path into out, choosing the format from the extension
// (.yaml, .yml or .toml). Unknown keys are rejected.
func LoadFile(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	return Decode(data, filepath.Ext(path), out)
}

// Decode parses data in the given format into out.
func Decode(data []byte, format string, out any) error {
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "yaml", "yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("decode yaml config: %w", err)
		}
	case "toml":
		md, err := toml.Decode(string(data), out)
		if err != nil {
			return fmt.Errorf("decode toml config: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return fmt.Errorf("decode toml config: unknown key %q: %w", undecoded[0].String(), api.ErrInvalidArgument)
		}
	default:
		return fmt.Errorf("config format %q: %w", format, api.ErrInvalidArgument)
	}
	return nil
}

// Validate checks v against its validate struct tags.
func Validate(v any) error {
	if err := validate.Struct(v); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// formatValidationError reports the first failed field as an invalid argument.
func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	e := verrs[0]
	msg := fmt.Sprintf("%s: failed %q", e.Namespace(), e.Tag())
	if e.Param() != "" {
		msg += " (" + e.Param() + ")"
	}
	return api.ErrInvalidArgument.
		WithContext("field", e.Namespace()).
		WithContext("value", e.Value()).
		WithContext("rule", msg)
}

func (c *Config) common(logger *zap.Logger) []pool.Option {
	opts := []pool.Option{pool.WithLogger(logger)}
	if c.MaxPoolableSize > 0 {
		opts = append(opts, pool.WithMaxPoolableSize(c.MaxPoolableSize))
	}
	return opts
}

// ManagedOptions turns the config into options for pool.NewManagedPool.
func (c *Config) ManagedOptions(logger *zap.Logger) ([]pool.Option, error) {
	strategy, err := pool.ParseStrategy(c.Strategy)
	if err != nil {
		return nil, err
	}
	opts := append(c.common(logger), pool.WithStrategy(strategy))
	if c.BucketCapacity > 0 {
		opts = append(opts, pool.WithBucketCapacity(c.BucketCapacity))
	}
	return opts, nil
}

// NativeOptions turns the config into options for pool.NewNativePool.
func (c *Config) NativeOptions(logger *zap.Logger) []pool.Option {
	opts := c.common(logger)
	if c.NativeBucketCapacity > 0 {
		opts = append(opts, pool.WithBucketCapacity(c.NativeBucketCapacity))
	}
	return opts
}
