// SPDX-License-Identifier: EPL-2.0

// Command audmix mixes the tracks of a YAML mix file into a WAV file or
// plays them on the sound card.
//
//	audmix -config mix.yaml [-out file.wav] [-play]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ik5/audmix"
	"github.com/ik5/audmix/audio"
	"github.com/ik5/audmix/formats/aiff"
	"github.com/ik5/audmix/formats/mp3"
	"github.com/ik5/audmix/formats/vorbis"
	"github.com/ik5/audmix/formats/wav"
	"github.com/ik5/audmix/internal/config"
	"github.com/ik5/audmix/internal/observe"
	"github.com/ik5/audmix/merge"
	"github.com/ik5/audmix/playback"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("audmix", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "mix.yaml", "path to the YAML mix file")
	outPath := fs.String("out", "", "render to this WAV file (overrides output.file)")
	play := fs.Bool("play", false, "play on the sound card (overrides output.device)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "audmix: %v\n", err)
		return 1
	}
	if *outPath != "" {
		cfg.Output.File = *outPath
	}
	if *play {
		cfg.Output.Device = true
	}

	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: cfg.LogLevel.Level()}))
	slog.SetDefault(logger)

	logger.Info("audmix starting",
		"config", *configPath,
		"tracks", len(cfg.Tracks),
		"sample_rate", cfg.SampleRate,
		"version", version,
	)

	if cfg.MetricsAddr != "" {
		stopMetrics, err := serveMetrics(ctx, cfg.MetricsAddr, logger)
		if err != nil {
			logger.Error("failed to start metrics", "err", err)
			return 1
		}
		defer stopMetrics()
	}

	m := newMixer(cfg, logger)

	if cfg.Output.File != "" {
		if err := m.render(ctx, cfg.Output.File); err != nil {
			if errors.Is(err, context.Canceled) {
				logger.Info("render interrupted", "file", cfg.Output.File)
				return 130
			}
			logger.Error("render failed", "err", err)
			return 1
		}
	}

	if cfg.Output.Device {
		if err := m.play(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				logger.Info("playback interrupted")
				return 0
			}
			logger.Error("playback failed", "err", err)
			return 1
		}
	}

	return 0
}

// serveMetrics installs the Prometheus backed meter provider and serves it
// on addr. The returned function stops the server and the provider.
func serveMetrics(ctx context.Context, addr string, logger *slog.Logger) (func(), error) {
	shutdownProvider, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "audmix",
		ServiceVersion: version,
	})
	if err != nil {
		return nil, fmt.Errorf("metrics provider: %w", err)
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		_ = shutdownProvider(ctx)
		return nil, fmt.Errorf("metrics listener: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "err", err)
		}
	}()
	logger.Info("serving metrics", "addr", ln.Addr().String())

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown", "err", err)
		}
		if err := shutdownProvider(shutdownCtx); err != nil {
			logger.Warn("metrics provider shutdown", "err", err)
		}
	}, nil
}

func newRegistry() *audio.Registry {
	reg := audio.NewRegistry()
	reg.Register("wav", wav.Decoder{})
	reg.Register("mp3", mp3.Decoder{})
	reg.Register("ogg", vorbis.Decoder{})
	reg.Register("oga", vorbis.Decoder{})
	reg.Register("aif", aiff.Decoder{})
	reg.Register("aiff", aiff.Decoder{})
	return reg
}

// mixer builds engines from a mix file. Every output gets its own engine
// so a file render and playback can both run from one configuration.
type mixer struct {
	cfg     *config.Config
	reg     *audio.Registry
	logger  *slog.Logger
	metrics *observe.Metrics
}

func newMixer(cfg *config.Config, logger *slog.Logger) *mixer {
	return &mixer{
		cfg:     cfg,
		reg:     newRegistry(),
		logger:  logger,
		metrics: observe.DefaultMetrics(),
	}
}

// engine opens every track and merges them. blocking selects prefetchers
// that wait for the decoder, which rendering wants and a device callback
// must not do.
func (m *mixer) engine(ctx context.Context, blocking bool) (*merge.Engine, error) {
	readers := make([]audio.StreamReader, 0, len(m.cfg.Tracks))
	for i, tr := range m.cfg.Tracks {
		r, err := m.openTrack(ctx, tr, blocking)
		if err != nil {
			for _, opened := range readers {
				_ = opened.Close()
			}
			return nil, fmt.Errorf("tracks[%d] %q: %w", i, tr.Path, err)
		}
		readers = append(readers, r)
	}

	return audmix.Mix(m.cfg.SampleRate, []merge.Option{
		merge.WithTolerance(m.cfg.Merge.Tolerance()),
		merge.WithParallel(m.cfg.Merge.Parallel),
		merge.WithLogger(m.logger),
		merge.WithMetrics(m.metrics),
	}, readers...)
}

// openTrack decodes a track and wraps it in a prefetcher, a pan and, when
// the track has a playback rate, a resampler. The chain ends in a timeline
// so the engine aligns tracks by play time and start_ms becomes leading
// silence.
func (m *mixer) openTrack(ctx context.Context, tr config.Track, blocking bool) (audio.StreamReader, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(tr.Path), "."))
	dec, ok := m.reg.Get(ext)
	if !ok {
		return nil, fmt.Errorf("unsupported format %q; known: %s", ext, strings.Join(m.reg.Formats(), ", "))
	}

	f, err := os.Open(tr.Path)
	if err != nil {
		return nil, err
	}
	src, err := dec.Decode(f)
	_ = f.Close()
	if err != nil {
		return nil, err
	}

	pre := audio.NewPrefetcher(ctx, src,
		audio.WithDepth(m.cfg.Merge.PrefetchChunks),
		audio.WithBlocking(blocking),
		audio.WithPrefetchMetrics(m.metrics),
	)

	channels := pre.Channels()
	if channels == 1 {
		channels = 2
	}
	pan, err := audio.NewPan(pre, channels)
	if err != nil {
		_ = pre.Close()
		return nil, err
	}
	pan.SetProperty(audio.PropertyVolume, tr.Gain())
	if tr.Pan != 0 && !pan.SetProperty(audio.PropertyPan, tr.Pan) {
		m.logger.Warn("pan ignored", "track", tr.Path, "channels", pre.Channels())
	}

	var out audio.StreamReader = pan
	if tr.Speed() != 1 {
		rs := audio.NewResampler(pan, pan.SampleRate())
		rs.SetProperty(audio.PropertyRate, tr.Speed())
		out = rs
	}

	delay := int(int64(tr.StartMS) * int64(out.SampleRate()) / 1000)

	m.logger.Debug("track opened",
		"path", tr.Path,
		"sample_rate", src.SampleRate(),
		"channels", src.Channels(),
		"length_ms", src.LengthFast(),
		"delay_frames", delay,
	)
	return audio.NewTimeline(out, delay), nil
}

func (m *mixer) render(ctx context.Context, path string) error {
	mix, err := m.engine(ctx, true)
	if err != nil {
		return err
	}
	defer func() {
		if err := mix.Close(); err != nil {
			m.logger.Warn("closing mix", "err", err)
		}
	}()

	f, err := os.Create(path)
	if err != nil {
		return err
	}

	start := time.Now()
	frames, err := audmix.RenderWAV(ctx, f, mix, m.cfg.Output.BufferFrames)
	if cerr := f.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	m.logger.Info("mix rendered",
		"file", path,
		"frames", frames,
		"sample_rate", mix.SampleRate(),
		"channels", mix.Channels(),
		"took", time.Since(start),
	)
	return nil
}

func (m *mixer) play(ctx context.Context) error {
	format, err := playback.ParseFormat(m.cfg.Output.Format)
	if err != nil {
		return err
	}

	mix, err := m.engine(ctx, false)
	if err != nil {
		return err
	}
	defer func() {
		if err := mix.Close(); err != nil {
			m.logger.Warn("closing mix", "err", err)
		}
	}()

	dev, err := playback.OpenDevice(playback.DeviceConfig{
		SampleRate:   mix.SampleRate(),
		Channels:     mix.Channels(),
		Format:       format,
		BufferFrames: m.cfg.Output.BufferFrames,
		Logger:       m.logger,
	})
	if err != nil {
		return err
	}

	stream := playback.NewStream(mix, format,
		playback.WithBlockFrames(m.cfg.Output.BufferFrames),
		playback.WithLogger(m.logger),
	)
	return dev.Play(ctx, stream)
}
