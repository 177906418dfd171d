// File: internal/stress/report.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package stress

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/momentics/segpool/api"
	"gopkg.in/yaml.v3"
)

// ErrAliasing reports buffers whose content changed while their renter held
// them exclusively.
var ErrAliasing = api.NewError(api.ErrCodeInternal, "pooled buffer aliased between renters")

// Report summarizes one run.
type Report struct {
	RunID        string        `json:"run_id" yaml:"run_id" cbor:"run_id"`
	Pool         string        `json:"pool" yaml:"pool" cbor:"pool"`
	Workers      int           `json:"workers" yaml:"workers" cbor:"workers"`
	Ops          int           `json:"ops" yaml:"ops" cbor:"ops"`
	Seed         int64         `json:"seed" yaml:"seed" cbor:"seed"`
	Duration     time.Duration `json:"duration" yaml:"duration" cbor:"duration"`
	Operations   uint64        `json:"operations" yaml:"operations" cbor:"operations"`
	Corruptions  uint64        `json:"corruptions" yaml:"corruptions" cbor:"corruptions"`
	Errors       uint64        `json:"errors" yaml:"errors" cbor:"errors"`
	OpsPerSecond float64       `json:"ops_per_second" yaml:"ops_per_second" cbor:"ops_per_second"`
	Stats        api.PoolStats `json:"stats" yaml:"stats" cbor:"stats"`
}

// Formats accepted by Encode.
const (
	FormatYAML = "yaml"
	FormatJSON = "json"
	FormatCBOR = "cbor"
)

// Encode writes the report to w in the given format.
func (r *Report) Encode(w io.Writer, format string) error {
	switch format {
	case FormatYAML, "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encode yaml report: %w", err)
		}
		return enc.Close()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case FormatCBOR:
		data, err := cbor.Marshal(r)
		if err != nil {
			return fmt.Errorf("encode cbor report: %w", err)
		}
		_, err = w.Write(data)
		return err
	default:
		return fmt.Errorf("report format %q: %w", format, api.ErrInvalidArgument)
	}
}

// DecodeReport reads a report written by Encode.
func DecodeReport(data []byte, format string) (*Report, error) {
	var r Report
	var err error
	switch format {
	case FormatYAML, "":
		err = yaml.Unmarshal(data, &r)
	case FormatJSON:
		err = json.Unmarshal(data, &r)
	case FormatCBOR:
		err = cbor.Unmarshal(data, &r)
	default:
		return nil, fmt.Errorf("report format %q: %w", format, api.ErrInvalidArgument)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s report: %w", format, err)
	}
	return &r, nil
}
