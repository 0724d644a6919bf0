// SPDX-License-Identifier: EPL-2.0

package merge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ik5/audmix/audio"
	"github.com/ik5/audmix/internal/observe"
	"github.com/ik5/audmix/utils"
)

// Compile-time interface assertion.
var _ audio.StreamReader = (*Engine)(nil)

// Engine merges any number of streams into one time-aligned interleaved
// stream. It owns every reader added to it.
//
// All methods are safe for concurrent use. Read is meant for the audio
// callback and never blocks on a stream beyond that stream's own Read.
type Engine struct {
	mu sync.Mutex

	readers  []audio.StreamReader
	finished bool
	closed   bool

	channels int
	rate     int

	// Position of the merged stream, in source frames of the earliest
	// stream, and the ratio it advances by.
	nextFrame int
	ratio     float32

	// Per stream bookkeeping. Index i is written only by whoever mixes
	// stream i.
	positions []int
	ratios    []float32
	done      []bool // ended, or failed outside the primary stream
	ahead     []bool
	got       []int
	scratches [][]float32

	mix   audio.MixBuffer
	mixMu sync.Mutex

	tolerance      int
	parallel       bool
	scratchSamples int
	logger         *slog.Logger
	metrics        *observe.Metrics
}

// New creates an empty Engine. Add streams, then call Finish before the
// first Read.
func New(opts ...Option) *Engine {
	e := &Engine{
		ratio:          1,
		tolerance:      DefaultTolerance,
		scratchSamples: DefaultScratchSamples,
		logger:         slog.Default(),
		metrics:        observe.DefaultMetrics(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Add hands r over to the engine. On error the caller keeps ownership.
func (e *Engine) Add(r audio.StreamReader) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.finished {
		return ErrFinished
	}
	e.readers = append(e.readers, r)
	return nil
}

// Finish resolves the output format. Streams of different rates are all
// resampled to preferredRate; mono streams are spread to stereo when the
// group is stereo. In groups of more than two channels, streams with a
// different channel count are closed and dropped.
func (e *Engine) Finish(preferredRate int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.finished {
		return ErrFinished
	}

	e.channels = 1
	for _, r := range e.readers {
		e.channels = max(e.channels, r.Channels())
	}

	e.rate = e.uniformRate()
	if e.rate == -1 {
		if preferredRate <= 0 {
			return fmt.Errorf("merge: mixed sample rates need a preferred rate: %w", audio.ErrInvalidRate)
		}
		for i, r := range e.readers {
			e.readers[i] = audio.NewResampler(r, preferredRate)
		}
		e.rate = preferredRate
	}
	if e.rate == 0 {
		e.rate = preferredRate
	}

	kept := e.readers[:0]
	for i, r := range e.readers {
		if r.Channels() == e.channels {
			kept = append(kept, r)
			continue
		}

		if e.channels <= 2 {
			p, err := audio.NewPan(r, e.channels)
			if err != nil {
				return fmt.Errorf("merge: stream %d: %w", i, err)
			}
			kept = append(kept, p)
			continue
		}

		e.logger.Warn("discarded stream with incompatible channel count",
			"stream", i,
			"channels", r.Channels(),
			"want", e.channels,
		)
		e.metrics.DiscardedStreams.Add(context.Background(), 1)
		if err := r.Close(); err != nil {
			e.logger.Warn("closing discarded stream", "stream", i, "err", err)
		}
	}
	clear(e.readers[len(kept):])
	e.readers = kept

	n := len(e.readers)
	e.positions = make([]int, n)
	e.ratios = make([]float32, n)
	e.done = make([]bool, n)
	e.ahead = make([]bool, n)
	e.got = make([]int, n)

	samples := max(e.scratchSamples, e.channels)
	samples -= samples % e.channels
	workers := 1
	if e.parallel {
		workers = max(1, n)
	}
	e.scratches = make([][]float32, workers)
	for i := range e.scratches {
		e.scratches[i] = make([]float32, samples)
	}
	e.mix.Reinitialize(samples)

	if n > 0 {
		pos, ratio, _ := e.earliest()
		e.nextFrame, e.ratio = pos, ratio
	}

	e.finished = true
	return nil
}

// uniformRate returns the rate shared by every reader, 0 without readers,
// or -1 when the rates differ.
func (e *Engine) uniformRate() int {
	rate := 0
	for _, r := range e.readers {
		switch {
		case rate == 0:
			rate = r.SampleRate()
		case rate != r.SampleRate():
			return -1
		}
	}
	return rate
}

// earliest refreshes positions and ratios of the streams still playing
// and returns the minimum position with its ratio. ok is false when every
// stream is done.
func (e *Engine) earliest() (pos int, ratio float32, ok bool) {
	for i, r := range e.readers {
		if e.done[i] {
			continue
		}
		e.positions[i] = r.NextSourceFrame()
		e.ratios[i] = r.StreamToSourceRatio()
		if !ok || e.positions[i] < pos {
			pos, ratio, ok = e.positions[i], e.ratios[i], true
		}
	}
	return pos, ratio, ok
}

func (e *Engine) SampleRate() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rate
}

func (e *Engine) Channels() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.channels
}

// Len is the number of streams owned by the engine.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.readers)
}

// Read fills dst with up to len(dst)/Channels() merged frames.
//
// A (0, nil) result means the engine moved its position to the earliest
// stream (after a seek, a rate change or a stalled stream) or that no stream
// had audio ready; call again. A read error of the first stream added is
// returned as is and nothing is mixed. Errors of other streams only cut
// their contribution short.
func (e *Engine) Read(dst []float32) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.readers) == 0 {
		return 0, io.EOF
	}
	if !e.finished {
		return 0, ErrNotFinished
	}
	if len(dst)%e.channels != 0 {
		return 0, audio.ErrInvalidDstSize
	}

	ctx := context.Background()
	start := time.Now()
	e.metrics.MergeReads.Add(ctx, 1)
	defer func() {
		e.metrics.ReadDuration.Record(ctx, time.Since(start).Seconds())
	}()

	frames := len(dst) / e.channels
	if frames == 0 {
		return 0, nil
	}

	first, ratio, ok := e.earliest()
	if !ok {
		return 0, io.EOF
	}

	if e.nextFrame != first || e.ratio != ratio {
		e.logger.Log(ctx, LevelTrace, "merge position resync",
			"from", e.nextFrame, "to", first, "ratio", ratio)
		e.nextFrame, e.ratio = first, ratio
		e.metrics.Resyncs.Add(ctx, 1)
		return 0, nil
	}

	frames = e.clampDrift(ctx, first, frames)

	if len(e.readers) == 1 {
		return e.readSingle(ctx, dst[:frames*e.channels])
	}

	frames = min(frames, len(e.scratches[0])/e.channels)

	var err error
	if e.parallel {
		err = e.mixParallel(ctx, first, frames)
	} else {
		err = e.mixSequential(ctx, first, frames)
	}
	if err != nil {
		e.mix.Reset()
		return 0, err
	}

	n := e.mix.Size() / e.channels
	e.mix.Read(dst)
	e.mix.Reset()

	if n == 0 && e.allDone() {
		return 0, io.EOF
	}

	e.advance(ctx, n)
	return n, nil
}

// clampDrift marks streams further ahead of first than the tolerance and
// shortens the call so the earliest stream catches up with the nearest of
// them.
func (e *Engine) clampDrift(ctx context.Context, first, frames int) int {
	ratio := float64(e.ratio)
	if ratio <= 0 {
		ratio = 1
	}

	for i := range e.readers {
		e.ahead[i] = false
		if e.done[i] {
			continue
		}
		drift := e.positions[i] - first
		if drift <= e.tolerance {
			continue
		}

		e.ahead[i] = true
		limit := max(1, int(math.Ceil(float64(drift)/ratio)))
		if limit < frames {
			frames = limit
		}
		e.metrics.DriftClamps.Add(ctx, 1)
	}
	return frames
}

func (e *Engine) readSingle(ctx context.Context, dst []float32) (int, error) {
	n, err := e.readers[0].Read(dst)
	if err != nil {
		if errors.Is(err, io.EOF) {
			e.done[0] = true
		} else {
			e.streamError(ctx, 0, err)
		}
	}
	e.advance(ctx, n)
	return n, err
}

func (e *Engine) advance(ctx context.Context, frames int) {
	if frames <= 0 {
		return
	}
	e.nextFrame += utils.RoundHalfUp(float64(frames) * float64(e.ratio))
	e.metrics.MergeFrames.Add(ctx, int64(frames))
}

func (e *Engine) allDone() bool {
	for _, done := range e.done {
		if !done {
			return false
		}
	}
	return true
}

func (e *Engine) streamError(ctx context.Context, i int, err error) {
	e.logger.Log(ctx, LevelTrace, "stream read failed",
		"stream", i,
		"primary", i == 0,
		"err", err,
	)
	e.metrics.RecordStreamError(ctx, i, i == 0)
}

func (e *Engine) mixSequential(ctx context.Context, first, frames int) error {
	scratch := e.scratches[0]
	write := func(offset int, samples []float32) {
		e.mix.SetWriteOffset(offset)
		e.mix.Write(samples)
	}

	for i := range e.readers {
		e.got[i] = 0
		if e.done[i] || e.ahead[i] {
			continue
		}

		if err := e.mixStream(ctx, i, first, frames, scratch, write); err != nil {
			return err
		}
	}
	return nil
}

// mixStream reads stream i into the accumulator until frames are mixed,
// the stream ends, stalls, fails, or drifts away from the group. It returns
// the error only for the primary stream; errors of other streams are
// logged and recorded.
func (e *Engine) mixStream(ctx context.Context, i, first, frames int, scratch []float32, write func(int, []float32)) error {
	r := e.readers[i]

	for e.got[i] < frames {
		if ctx.Err() != nil {
			return nil
		}

		want := (frames - e.got[i]) * e.channels
		n, err := r.Read(scratch[:want])
		if n > 0 {
			write(e.got[i]*e.channels, scratch[:n*e.channels])
			e.got[i] += n
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				e.done[i] = true
				return nil
			}
			e.streamError(ctx, i, err)
			if i == 0 {
				return err
			}
			// A failed stream stops counting towards the group position until
			// the next seek.
			e.done[i] = true
			return nil
		}
		if n == 0 {
			return nil
		}

		e.positions[i] = r.NextSourceFrame()
		expected := first + utils.RoundHalfUp(float64(e.got[i])*float64(e.ratio))
		if drift := e.positions[i] - expected; drift > e.tolerance || drift < -e.tolerance {
			e.logger.Log(ctx, LevelTrace, "stream drifted during mix",
				"stream", i, "position", e.positions[i], "expected", expected)
			e.metrics.DriftClamps.Add(ctx, 1, metric.WithAttributes(attribute.Bool("midread", true)))
			return nil
		}
	}
	return nil
}

// SetPosition moves the engine and every stream to frame. The engine
// position changes immediately. The result is SeekResync if any stream
// moved; the error joins every stream failure.
func (e *Engine) SetPosition(frame int) (audio.SeekResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextFrame = frame

	res := audio.SeekTrivial
	var errs []error
	for i, r := range e.readers {
		rres, err := r.SetPosition(frame)
		if err != nil {
			errs = append(errs, fmt.Errorf("merge: stream %d: %w", i, err))
			continue
		}
		if rres == audio.SeekResync {
			res = audio.SeekResync
		}
	}
	clear(e.done)

	return res, errors.Join(errs...)
}

func (e *Engine) NextSourceFrame() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.nextFrame
}

func (e *Engine) StreamToSourceRatio() float32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ratio
}

// Length is the longest stream length, or audio.LengthUnknown when no
// stream knows its length.
func (e *Engine) Length() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	length := audio.LengthUnknown
	for _, r := range e.readers {
		length = max(length, r.Length())
	}
	return length
}

func (e *Engine) LengthFast() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	length := audio.LengthUnknown
	for _, r := range e.readers {
		length = max(length, r.LengthFast())
	}
	return length
}

// SetProperty forwards to every stream and reports whether any applied it.
func (e *Engine) SetProperty(name string, value float32) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	applied := false
	for _, r := range e.readers {
		if r.SetProperty(name, value) {
			applied = true
		}
	}
	return applied
}

// Clone deep copies every stream. The clone keeps the engine's format,
// position and options; its streams start from the beginning, so its first
// Read resynchronizes.
func (e *Engine) Clone() (audio.StreamReader, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c := &Engine{
		readers:        make([]audio.StreamReader, 0, len(e.readers)),
		finished:       e.finished,
		channels:       e.channels,
		rate:           e.rate,
		nextFrame:      e.nextFrame,
		ratio:          e.ratio,
		tolerance:      e.tolerance,
		parallel:       e.parallel,
		scratchSamples: e.scratchSamples,
		logger:         e.logger,
		metrics:        e.metrics,
	}

	for i, r := range e.readers {
		cr, err := r.Clone()
		if err != nil {
			for _, cloned := range c.readers {
				_ = cloned.Close()
			}
			return nil, fmt.Errorf("merge: clone stream %d: %w", i, err)
		}
		c.readers = append(c.readers, cr)
	}

	if e.finished {
		n := len(c.readers)
		c.positions = make([]int, n)
		c.ratios = make([]float32, n)
		c.done = make([]bool, n)
		c.ahead = make([]bool, n)
		c.got = make([]int, n)
		c.scratches = make([][]float32, len(e.scratches))
		for i := range c.scratches {
			c.scratches[i] = make([]float32, len(e.scratches[i]))
		}
		c.mix.Reinitialize(len(e.scratches[0]))
	}

	return c, nil
}

// Close closes every stream. Streams that run decode goroutines join them
// before returning.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	var errs []error
	for i, r := range e.readers {
		if err := r.Close(); err != nil {
			errs = append(errs, fmt.Errorf("merge: close stream %d: %w", i, err))
		}
	}
	e.readers = nil
	return errors.Join(errs...)
}
