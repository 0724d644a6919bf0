// SPDX-License-Identifier: EPL-2.0

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ik5/audmix/merge"
)

const fullConfig = `
log_level: debug
sample_rate: 48000
output:
  device: true
  file: mix.wav
  format: float32
  buffer_frames: 512
merge:
  tolerance_frames: 0
  parallel: true
  prefetch_chunks: 4
metrics_addr: ":9464"
tracks:
  - path: music.ogg
    volume: 0.5
    pan: -0.25
    rate: 1.5
    start_ms: 1000
  - path: voice.wav
`

func TestLoadFromReader_Full(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFromReader(strings.NewReader(fullConfig))
	if err != nil {
		t.Fatalf("LoadFromReader() error = %v", err)
	}

	if cfg.LogLevel != LogLevelDebug || cfg.SampleRate != 48000 || cfg.MetricsAddr != ":9464" {
		t.Errorf("top level = %+v", cfg)
	}
	if o := cfg.Output; !o.Device || o.File != "mix.wav" || o.Format != "float32" || o.BufferFrames != 512 {
		t.Errorf("output = %+v", o)
	}
	if m := cfg.Merge; m.Tolerance() != 0 || !m.Parallel || m.PrefetchChunks != 4 {
		t.Errorf("merge = %+v, tolerance %d", m, m.Tolerance())
	}
	if len(cfg.Tracks) != 2 {
		t.Fatalf("got %d tracks, want 2", len(cfg.Tracks))
	}

	music := cfg.Tracks[0]
	if music.Path != "music.ogg" || music.Gain() != 0.5 || music.Pan != -0.25 || music.Speed() != 1.5 || music.StartMS != 1000 {
		t.Errorf("tracks[0] = %+v", music)
	}
	voice := cfg.Tracks[1]
	if voice.Gain() != 1 || voice.Speed() != 1 || voice.Pan != 0 {
		t.Errorf("tracks[1] defaults = gain %v speed %v pan %v", voice.Gain(), voice.Speed(), voice.Pan)
	}
}

func TestLoadFromReader_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFromReader(strings.NewReader("output: {file: out.wav}\ntracks: [{path: a.wav}]\n"))
	if err != nil {
		t.Fatalf("LoadFromReader() error = %v", err)
	}

	if cfg.LogLevel != LogLevelInfo || cfg.SampleRate != DefaultSampleRate {
		t.Errorf("log level %q, sample rate %d", cfg.LogLevel, cfg.SampleRate)
	}
	if cfg.Output.Format != "int16" || cfg.Output.BufferFrames != DefaultBufferFrames {
		t.Errorf("output = %+v", cfg.Output)
	}
	if cfg.Merge.Tolerance() != merge.DefaultTolerance || cfg.Merge.PrefetchChunks != DefaultPrefetchChunks {
		t.Errorf("merge = %+v", cfg.Merge)
	}
}

func TestLoadFromReader_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		yaml    string
		wantErr []string
	}{
		{
			name:    "unknown field",
			yaml:    "output: {file: a.wav}\ntracks: [{path: a.wav}]\nvolum: 2\n",
			wantErr: []string{"decode yaml", "volum"},
		},
		{
			name:    "no output",
			yaml:    "tracks: [{path: a.wav}]\n",
			wantErr: []string{"output: set device, file or both"},
		},
		{
			name:    "no tracks",
			yaml:    "output: {file: a.wav}\n",
			wantErr: []string{"at least one track"},
		},
		{
			name: "bad values",
			yaml: `
log_level: verbose
sample_rate: -1
output: {file: a.wav, format: s24, buffer_frames: -5}
merge: {tolerance_frames: -1, prefetch_chunks: -2}
tracks:
  - {volume: -1, pan: 2, rate: 0, start_ms: -3}
`,
			wantErr: []string{
				`log_level "verbose"`,
				"sample_rate -1",
				`output.format "s24"`,
				"output.buffer_frames -5",
				"merge.tolerance_frames -1",
				"merge.prefetch_chunks -2",
				"tracks[0].path is required",
				"tracks[0].volume",
				"tracks[0].pan",
				"tracks[0].rate",
				"tracks[0].start_ms -3",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := LoadFromReader(strings.NewReader(tt.yaml))
			if err == nil {
				t.Fatal("LoadFromReader() error = nil")
			}
			for _, want := range tt.wantErr {
				if !strings.Contains(err.Error(), want) {
					t.Errorf("error %q does not mention %q", err, want)
				}
			}
		})
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "mix.yaml")
	if err := os.WriteFile(path, []byte(fullConfig), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.Tracks) != 2 {
		t.Errorf("got %d tracks, want 2", len(cfg.Tracks))
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil || !strings.Contains(err.Error(), "config: open") {
		t.Errorf("Load(missing) error = %v", err)
	}
}

func TestLogLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		level LogLevel
		valid bool
		want  slog.Level
	}{
		{LogLevelTrace, true, merge.LevelTrace},
		{LogLevelDebug, true, slog.LevelDebug},
		{LogLevelInfo, true, slog.LevelInfo},
		{LogLevelWarn, true, slog.LevelWarn},
		{LogLevelError, true, slog.LevelError},
		{"loud", false, slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := tt.level.IsValid(); got != tt.valid {
			t.Errorf("%q.IsValid() = %v, want %v", tt.level, got, tt.valid)
		}
		if got := tt.level.Level(); got != tt.want {
			t.Errorf("%q.Level() = %v, want %v", tt.level, got, tt.want)
		}
	}
}
