// SPDX-License-Identifier: EPL-2.0

// Package audiotest provides a scripted audio.StreamReader for tests.
package audiotest

import (
	"io"
	"math"
	"sync"

	"github.com/ik5/audmix/audio"
	"github.com/ik5/audmix/utils"
)

// Waveform generates the sample for a source frame and channel.
type Waveform func(frame int, channel int) float32

// Reader is a scripted audio.StreamReader. It produces frames from a
// Waveform and can be told to stall, fail, jump, or refuse seeks at given
// source positions. All methods are safe for concurrent use.
type Reader struct {
	mu sync.Mutex

	rate     int
	channels int
	frames   int // total source frames
	wave     Waveform

	base  int // source frame at the last seek
	idx   int // frames produced since the last seek
	ratio float32

	maxFrames int
	stalls    map[int]int
	jumps     map[int]int
	failAt    int
	failErr   error
	seekErr   error
	cloneErr  error
	closeErr  error
	accepted  map[string]bool
	props     map[string]float32

	reads          int
	closed         bool
	readAfterClose bool
}

// New creates a Reader over frames source frames.
func New(rate, channels, frames int, wave Waveform) *Reader {
	return &Reader{
		rate:     rate,
		channels: channels,
		frames:   frames,
		wave:     wave,
		ratio:    1,
		failAt:   -1,
		stalls:   make(map[int]int),
		jumps:    make(map[int]int),
		accepted: make(map[string]bool),
		props:    make(map[string]float32),
	}
}

// Constant yields value on every sample.
func Constant(rate, channels, frames int, value float32) *Reader {
	return New(rate, channels, frames, func(int, int) float32 { return value })
}

// Silent yields zeros.
func Silent(rate, channels, frames int) *Reader {
	return Constant(rate, channels, frames, 0)
}

// Sine yields a full scale sine at frequency Hz on every channel.
func Sine(rate, channels, frames int, frequency float64) *Reader {
	return New(rate, channels, frames, func(frame int, _ int) float32 {
		t := float64(frame) / float64(rate)
		return float32(math.Sin(2 * math.Pi * frequency * t))
	})
}

// Ramp yields frame*step on every channel, so a sample tells which source
// frame it came from.
func Ramp(rate, channels, frames int, step float32) *Reader {
	return New(rate, channels, frames, func(frame int, _ int) float32 {
		return float32(frame) * step
	})
}

// WithMaxFrames limits every Read to n frames.
func (r *Reader) WithMaxFrames(n int) *Reader {
	r.maxFrames = n
	return r
}

// WithRatio sets the reported source frames per output frame.
func (r *Reader) WithRatio(ratio float32) *Reader {
	r.ratio = ratio
	return r
}

// WithStart positions the reader at frame without counting as a seek.
func (r *Reader) WithStart(frame int) *Reader {
	r.base, r.idx = frame, 0
	return r
}

// StallAt makes times reads return (0, nil) once the reader reaches frame.
func (r *Reader) StallAt(frame, times int) *Reader {
	r.stalls[frame] = times
	return r
}

// JumpAt moves the reader to to, once, when it reaches frame.
func (r *Reader) JumpAt(frame, to int) *Reader {
	r.jumps[frame] = to
	return r
}

// FailAt makes reads return err once the reader reaches frame. Frames
// before it are still delivered.
func (r *Reader) FailAt(frame int, err error) *Reader {
	r.failAt, r.failErr = frame, err
	return r
}

// WithSeekError makes SetPosition fail with err.
func (r *Reader) WithSeekError(err error) *Reader {
	r.seekErr = err
	return r
}

// WithCloneError makes Clone fail with err.
func (r *Reader) WithCloneError(err error) *Reader {
	r.cloneErr = err
	return r
}

// WithCloseError makes Close return err.
func (r *Reader) WithCloseError(err error) *Reader {
	r.closeErr = err
	return r
}

// Accept makes SetProperty succeed for name.
func (r *Reader) Accept(name string) *Reader {
	r.accepted[name] = true
	return r
}

func (r *Reader) SampleRate() int { return r.rate }
func (r *Reader) Channels() int   { return r.channels }

// position must be called with mu held.
func (r *Reader) position() int {
	return r.base + utils.RoundHalfUp(float64(r.idx)*float64(r.ratio))
}

// remaining must be called with mu held.
func (r *Reader) remaining() int {
	left := float64(r.frames-r.base) / float64(r.ratio)
	return max(0, int(math.Ceil(left))-r.idx)
}

func (r *Reader) Read(dst []float32) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.reads++
	if r.closed {
		r.readAfterClose = true
	}
	if len(dst)%r.channels != 0 {
		return 0, audio.ErrInvalidDstSize
	}

	pos := r.position()
	if to, ok := r.jumps[pos]; ok {
		delete(r.jumps, pos)
		r.base, r.idx = to, 0
		pos = to
	}
	if n := r.stalls[pos]; n > 0 {
		r.stalls[pos] = n - 1
		return 0, nil
	}
	if r.failAt >= 0 && pos >= r.failAt {
		return 0, r.failErr
	}

	left := r.remaining()
	if left == 0 {
		return 0, io.EOF
	}

	n := min(len(dst)/r.channels, left)
	if r.maxFrames > 0 {
		n = min(n, r.maxFrames)
	}
	// Stop short of the next scripted event so it fires on its own call.
	for i := 1; i < n; i++ {
		p := r.base + utils.RoundHalfUp(float64(r.idx+i)*float64(r.ratio))
		_, jump := r.jumps[p]
		if jump || r.stalls[p] > 0 || (r.failAt >= 0 && p >= r.failAt) {
			n = i
			break
		}
	}

	for f := range n {
		frame := r.base + utils.RoundHalfUp(float64(r.idx+f)*float64(r.ratio))
		for ch := range r.channels {
			dst[f*r.channels+ch] = r.wave(frame, ch)
		}
	}
	r.idx += n

	if r.remaining() == 0 {
		return n, io.EOF
	}
	return n, nil
}

func (r *Reader) SetPosition(frame int) (audio.SeekResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.seekErr != nil {
		return audio.SeekTrivial, r.seekErr
	}
	if frame >= r.frames {
		r.base, r.idx = r.frames, 0
		return audio.SeekTrivial, nil
	}
	if frame == r.position() {
		return audio.SeekTrivial, nil
	}
	r.base, r.idx = max(0, frame), 0
	return audio.SeekResync, nil
}

func (r *Reader) Length() int {
	return int(int64(r.frames) * 1000 / int64(r.rate))
}

func (r *Reader) LengthFast() int { return r.Length() }

func (r *Reader) NextSourceFrame() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.position()
}

func (r *Reader) StreamToSourceRatio() float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ratio
}

func (r *Reader) SetProperty(name string, value float32) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.accepted[name] {
		return false
	}
	r.props[name] = value
	return true
}

// Property returns the last value set for name.
func (r *Reader) Property(name string) (float32, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.props[name]
	return v, ok
}

// Clone copies the configuration and starts at frame 0. Scripted stalls,
// jumps and failures are not carried over.
func (r *Reader) Clone() (audio.StreamReader, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cloneErr != nil {
		return nil, r.cloneErr
	}

	c := New(r.rate, r.channels, r.frames, r.wave)
	c.ratio = r.ratio
	c.maxFrames = r.maxFrames
	for k := range r.accepted {
		c.accepted[k] = true
	}
	return c, nil
}

func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return r.closeErr
}

// Closed reports whether Close was called.
func (r *Reader) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// ReadAfterClose reports whether Read ran after Close.
func (r *Reader) ReadAfterClose() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.readAfterClose
}

// Reads is the number of Read calls so far.
func (r *Reader) Reads() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reads
}
