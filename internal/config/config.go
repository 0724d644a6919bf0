// SPDX-License-Identifier: EPL-2.0

// Package config holds the mix file the audmix command is driven by.
package config

import (
	"log/slog"

	"github.com/ik5/audmix/merge"
)

// Defaults for values left out of the file.
const (
	DefaultSampleRate     = 44100
	DefaultBufferFrames   = 1024
	DefaultPrefetchChunks = 8
)

// LogLevel is a slog level by name.
type LogLevel string

const (
	LogLevelTrace LogLevel = "trace"
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// IsValid reports whether l is a known level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelTrace, LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true
	}
	return false
}

// Level maps l to a slog level. Unknown and empty names are info.
func (l LogLevel) Level() slog.Level {
	switch l {
	case LogLevelTrace:
		return merge.LevelTrace
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Config is the root of a mix file.
type Config struct {
	LogLevel    LogLevel `yaml:"log_level"`
	SampleRate  int      `yaml:"sample_rate"`
	Output      Output   `yaml:"output"`
	Merge       Merge    `yaml:"merge"`
	MetricsAddr string   `yaml:"metrics_addr"`
	Tracks      []Track  `yaml:"tracks"`
}

// Output selects where the mix goes. Device and File may both be set.
type Output struct {
	Device       bool   `yaml:"device"`
	File         string `yaml:"file"`
	Format       string `yaml:"format"`
	BufferFrames int    `yaml:"buffer_frames"`
}

// Merge tunes the engine.
type Merge struct {
	ToleranceFrames *int `yaml:"tolerance_frames"`
	Parallel        bool `yaml:"parallel"`
	PrefetchChunks  int  `yaml:"prefetch_chunks"`
}

// Tolerance is the configured drift tolerance or the engine default.
func (m Merge) Tolerance() int {
	if m.ToleranceFrames == nil {
		return merge.DefaultTolerance
	}
	return *m.ToleranceFrames
}

// Track is one input of the mix.
type Track struct {
	Path    string   `yaml:"path"`
	Volume  *float32 `yaml:"volume"`
	Pan     float32  `yaml:"pan"`
	Rate    *float32 `yaml:"rate"`
	StartMS int      `yaml:"start_ms"`
}

// Gain is the track volume, 1 when unset.
func (t Track) Gain() float32 {
	if t.Volume == nil {
		return 1
	}
	return *t.Volume
}

// Speed is the playback rate, 1 when unset.
func (t Track) Speed() float32 {
	if t.Rate == nil {
		return 1
	}
	return *t.Rate
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = LogLevelInfo
	}
	if c.SampleRate == 0 {
		c.SampleRate = DefaultSampleRate
	}
	if c.Output.Format == "" {
		c.Output.Format = "int16"
	}
	if c.Output.BufferFrames == 0 {
		c.Output.BufferFrames = DefaultBufferFrames
	}
	if c.Merge.PrefetchChunks == 0 {
		c.Merge.PrefetchChunks = DefaultPrefetchChunks
	}
}
