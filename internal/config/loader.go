// SPDX-License-Identifier: EPL-2.0

package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the mix file at path and returns a validated [Config].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML mix file from r, fills in defaults and
// validates the result.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	cfg.applyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg describes a mix that can be built. It returns a
// joined error listing every failure.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: trace, debug, info, warn, error", cfg.LogLevel))
	}
	if cfg.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("sample_rate %d must not be negative", cfg.SampleRate))
	} else if cfg.SampleRate > 0 && (cfg.SampleRate < 8000 || cfg.SampleRate > 192000) {
		slog.Warn("unusual sample_rate", "sample_rate", cfg.SampleRate)
	}

	// Output
	if !cfg.Output.Device && cfg.Output.File == "" {
		errs = append(errs, errors.New("output: set device, file or both"))
	}
	if f := cfg.Output.Format; f != "" && f != "int16" && f != "float32" {
		errs = append(errs, fmt.Errorf("output.format %q is invalid; valid values: int16, float32", f))
	}
	if cfg.Output.BufferFrames < 0 {
		errs = append(errs, fmt.Errorf("output.buffer_frames %d must not be negative", cfg.Output.BufferFrames))
	}

	// Merge
	if cfg.Merge.Tolerance() < 0 {
		errs = append(errs, fmt.Errorf("merge.tolerance_frames %d must not be negative", cfg.Merge.Tolerance()))
	}
	if cfg.Merge.PrefetchChunks < 0 {
		errs = append(errs, fmt.Errorf("merge.prefetch_chunks %d must not be negative", cfg.Merge.PrefetchChunks))
	}

	// Tracks
	if len(cfg.Tracks) == 0 {
		errs = append(errs, errors.New("tracks: at least one track is required"))
	}
	for i, tr := range cfg.Tracks {
		prefix := fmt.Sprintf("tracks[%d]", i)
		if tr.Path == "" {
			errs = append(errs, fmt.Errorf("%s.path is required", prefix))
		}
		if tr.Gain() < 0 {
			errs = append(errs, fmt.Errorf("%s.volume %.2f must not be negative", prefix, tr.Gain()))
		} else if tr.Gain() > 4 {
			slog.Warn("track volume above 4 will clip", "track", tr.Path, "volume", tr.Gain())
		}
		if tr.Pan < -1 || tr.Pan > 1 {
			errs = append(errs, fmt.Errorf("%s.pan %.2f is out of range [-1, 1]", prefix, tr.Pan))
		}
		if tr.Speed() <= 0 {
			errs = append(errs, fmt.Errorf("%s.rate %.2f must be positive", prefix, tr.Speed()))
		}
		if tr.StartMS < 0 {
			errs = append(errs, fmt.Errorf("%s.start_ms %d must not be negative", prefix, tr.StartMS))
		}
	}

	if cfg.MetricsAddr != "" && len(cfg.Tracks) > 0 && !cfg.Output.Device {
		slog.Warn("metrics_addr is set but the mix is only rendered; the server stops with the render")
	}

	return errors.Join(errs...)
}
