// SPDX-License-Identifier: EPL-2.0

package playback

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/ebitengine/oto/v3"
)

// pollInterval is how often Play checks whether the player drained.
const pollInterval = 10 * time.Millisecond

// player is the part of *oto.Player that Play drives.
type player interface {
	Play()
	IsPlaying() bool
	Close() error
}

// DeviceConfig describes the output the sound card is opened with.
type DeviceConfig struct {
	SampleRate   int
	Channels     int
	Format       Format
	BufferFrames int // 0 lets oto choose
	Logger       *slog.Logger
}

// Device is an opened sound card. oto allows one context per process, so
// open a Device once and play every Stream through it.
type Device struct {
	cfg       DeviceConfig
	logger    *slog.Logger
	newPlayer func(io.Reader) player
}

// OpenDevice creates the oto context and waits until the device is ready.
func OpenDevice(cfg DeviceConfig) (*Device, error) {
	if cfg.SampleRate <= 0 || cfg.Channels <= 0 {
		return nil, fmt.Errorf("%w: %d Hz x %d", ErrInvalidDevice, cfg.SampleRate, cfg.Channels)
	}

	op := &oto.NewContextOptions{
		SampleRate:   cfg.SampleRate,
		ChannelCount: cfg.Channels,
		Format:       oto.FormatSignedInt16LE,
	}
	if cfg.Format == FormatFloat32 {
		op.Format = oto.FormatFloat32LE
	}
	if cfg.BufferFrames > 0 {
		op.BufferSize = time.Duration(cfg.BufferFrames) * time.Second / time.Duration(cfg.SampleRate)
	}

	otoCtx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-ready

	d := newDevice(cfg, func(r io.Reader) player { return otoCtx.NewPlayer(r) })
	d.logger.Info("audio output initialized",
		"sample_rate", cfg.SampleRate, "channels", cfg.Channels, "format", cfg.Format)
	return d, nil
}

func newDevice(cfg DeviceConfig, newPlayer func(io.Reader) player) *Device {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Device{cfg: cfg, logger: logger, newPlayer: newPlayer}
}

// Play plays s and returns once it drained, or when ctx is done. The
// returned error is the stream's source error, or ctx.Err on cancellation.
func (d *Device) Play(ctx context.Context, s *Stream) error {
	if s.Channels() != d.cfg.Channels || s.Format() != d.cfg.Format {
		return fmt.Errorf("%w: stream %d ch %v, device %d ch %v", ErrFormatMismatch,
			s.Channels(), s.Format(), d.cfg.Channels, d.cfg.Format)
	}

	p := d.newPlayer(s)
	defer func() {
		if err := p.Close(); err != nil {
			d.logger.Warn("closing player", "err", err)
		}
	}()

	p.Play()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for p.IsPlaying() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}

	if silent := s.SilentFrames(); silent > 0 {
		d.logger.Debug("playback finished with underruns", "silent_frames", silent)
	}
	return s.Err()
}
