// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"errors"
	"fmt"
	"io"

	"github.com/ik5/audmix/utils"
)

// resamplerChunkFrames is how many frames the Resampler pulls from its source
// per read.
const resamplerChunkFrames = 256

// Resampler streams from src to a target sample rate using cubic
// interpolation. Works on interleaved samples; preserves channel count.
// Includes basic anti-aliasing filtering when downsampling.
//
// Positions are reported in frames of the target rate, so streams of
// different native rates resampled to one rate share a time base.
type Resampler struct {
	src      StreamReader
	srcRate  float64
	dstRate  float64
	rate     float64 // playback speed, PropertyRate
	step     float64 // source frames per output frame
	channels int

	// Window of 4 frames for cubic interpolation
	// frames[0] = t-1, frames[1] = t0, frames[2] = t+1, frames[3] = t+2
	frames   [4][]float32
	hasFrame [4]bool
	filled   int // frames loaded while priming
	primed   bool

	// pos is the fractional position between frames[1] and frames[2]
	pos float64
	// base is the source frame held in frames[1]
	base int

	// Frames pulled from src but not yet shifted into the window
	chunk    []float32
	chunkLen int
	chunkPos int
	eof      bool
	err      error

	// Simple low-pass filter state for anti-aliasing (when downsampling)
	filterState []float32
	filterAlpha float32
}

func NewResampler(src StreamReader, dstRate int) *Resampler {
	channels := src.Channels()

	r := &Resampler{
		src:         src,
		srcRate:     float64(src.SampleRate()),
		dstRate:     float64(dstRate),
		rate:        1,
		channels:    channels,
		chunk:       make([]float32, resamplerChunkFrames*channels),
		filterState: make([]float32, channels),
		// One-pole low-pass, a simplified stand-in for a proper FIR
		filterAlpha: 0.5,
	}

	for i := range r.frames {
		r.frames[i] = make([]float32, channels)
	}

	r.updateStep()
	r.resetWindow(src.NextSourceFrame())

	return r
}

func (r *Resampler) SampleRate() int { return int(r.dstRate) }
func (r *Resampler) Channels() int   { return r.channels }

// Rate is the current playback speed.
func (r *Resampler) Rate() float64 { return r.rate }

func (r *Resampler) Close() error {
	err := r.src.Close()
	if err != nil {
		return fmt.Errorf("%w", err)
	}
	return nil
}

func (r *Resampler) updateStep() {
	r.step = r.srcRate / r.dstRate * r.rate
}

func (r *Resampler) useFilter() bool { return r.step > 1.0 }

// resetWindow forgets interpolation history; start is the source frame the
// next output frame begins at.
func (r *Resampler) resetWindow(start int) {
	for i := range r.hasFrame {
		r.hasFrame[i] = false
	}
	r.filled = 0
	r.primed = false
	r.pos = 0
	r.base = start
	r.chunkLen, r.chunkPos = 0, 0
	r.eof = false
	r.err = nil
}

// nextFrame returns the next source frame. A nil frame with a nil error
// means the source has nothing right now.
func (r *Resampler) nextFrame() ([]float32, error) {
	if r.chunkPos >= r.chunkLen {
		if r.err != nil {
			err := r.err
			r.err = nil
			return nil, err
		}
		if r.eof {
			return nil, io.EOF
		}

		n, err := r.src.Read(r.chunk)
		r.chunkLen, r.chunkPos = n, 0
		if err != nil {
			if errors.Is(err, io.EOF) {
				r.eof = true
			} else {
				r.err = fmt.Errorf("resampler: %w", err)
			}
		}
		if n == 0 {
			if err == nil {
				return nil, nil
			}
			return r.nextFrame()
		}
	}

	off := r.chunkPos * r.channels
	r.chunkPos++
	return r.chunk[off : off+r.channels], nil
}

func (r *Resampler) lowPass(frame []float32) {
	if !r.useFilter() {
		return
	}
	for c := range r.channels {
		// One-pole low-pass: y[n] = alpha * x[n] + (1-alpha) * y[n-1]
		frame[c] = r.filterAlpha*frame[c] + (1-r.filterAlpha)*r.filterState[c]
		r.filterState[c] = frame[c]
	}
}

// prime loads frames[1..3]; frames[0] duplicates the first frame. It reports
// false while the source cannot deliver yet.
func (r *Resampler) prime() (bool, error) {
	for r.filled < 3 {
		frame, err := r.nextFrame()
		if frame == nil {
			if err == nil {
				return false, nil
			}
			if !errors.Is(err, io.EOF) {
				return false, err
			}
			if r.filled == 0 {
				return false, io.EOF
			}
			break
		}

		slot := r.filled + 1
		copy(r.frames[slot], frame)
		if r.filled == 0 {
			// Initialize filter state with first sample to avoid warm-up transients
			copy(r.filterState, frame)
			copy(r.frames[0], frame)
			r.hasFrame[0] = true
		} else {
			r.lowPass(r.frames[slot])
		}
		r.hasFrame[slot] = true
		r.filled++
	}

	r.primed = true
	return true, nil
}

// advance shifts the window one source frame forward. It reports false when
// the source stalled and nothing moved.
func (r *Resampler) advance() (bool, error) {
	frame, err := r.nextFrame()
	if frame == nil && err == nil {
		return false, nil
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}

	// Shift frames: [0,1,2,3] -> [1,2,3,?]
	copy(r.frames[0], r.frames[1])
	copy(r.frames[1], r.frames[2])
	copy(r.frames[2], r.frames[3])
	r.hasFrame[0] = r.hasFrame[1]
	r.hasFrame[1] = r.hasFrame[2]
	r.hasFrame[2] = r.hasFrame[3]

	if frame != nil {
		copy(r.frames[3], frame)
		r.lowPass(r.frames[3])
		r.hasFrame[3] = true
	} else {
		r.hasFrame[3] = false
	}

	r.base++
	return true, nil
}

// Read produces frames at the target rate.
// dst length should be a multiple of r.channels.
func (r *Resampler) Read(dst []float32) (int, error) {
	if len(dst)%r.channels != 0 {
		return 0, ErrInvalidDstSize
	}

	if !r.primed {
		ok, err := r.prime()
		if err != nil || !ok {
			return 0, err
		}
	}

	written := 0
	framesNeeded := len(dst) / r.channels

	for written < framesNeeded {
		// Keep pos in [0, 1) between frames[1] and frames[2]
		for r.pos >= 1.0 {
			ok, err := r.advance()
			if err != nil {
				return written, err
			}
			if !ok {
				return written, nil
			}
			r.pos -= 1.0
		}

		if !r.hasFrame[1] {
			return written, io.EOF
		}

		out := dst[written*r.channels : (written+1)*r.channels]

		if !r.hasFrame[2] {
			// Last source frame: only an exact hit plays it.
			if r.pos != 0 {
				return written, io.EOF
			}
			copy(out, r.frames[1])
			written++
			r.pos += r.step
			continue
		}

		alpha := float32(r.pos)

		for c := range r.channels {
			y0 := r.frames[0][c]
			if !r.hasFrame[0] {
				y0 = r.frames[1][c]
			}

			y1 := r.frames[1][c]
			y2 := r.frames[2][c]

			y3 := r.frames[3][c]
			if !r.hasFrame[3] {
				y3 = y2
			}

			out[c] = utils.CubicInterpolate(y0, y1, y2, y3, alpha)
		}

		written++
		r.pos += r.step
	}

	return written, nil
}

// SetPosition seeks to frame, given in frames of the target rate.
func (r *Resampler) SetPosition(frame int) (SeekResult, error) {
	srcFrame := utils.RoundHalfUp(float64(frame) * r.srcRate / r.dstRate)

	res, err := r.src.SetPosition(srcFrame)
	if err != nil {
		return res, fmt.Errorf("resampler: %w", err)
	}

	r.resetWindow(r.src.NextSourceFrame())
	return res, nil
}

func (r *Resampler) NextSourceFrame() int {
	pos := float64(r.base)
	if r.primed {
		pos += r.pos
	}
	return utils.RoundHalfUp(pos * r.dstRate / r.srcRate)
}

func (r *Resampler) StreamToSourceRatio() float32 {
	return float32(r.rate) * r.src.StreamToSourceRatio()
}

func (r *Resampler) scaleLength(ms int) int {
	if ms == LengthUnknown || r.rate == 1 {
		return ms
	}
	return int(float64(ms) / r.rate)
}

func (r *Resampler) Length() int     { return r.scaleLength(r.src.Length()) }
func (r *Resampler) LengthFast() int { return r.scaleLength(r.src.LengthFast()) }

// SetProperty handles PropertyRate and forwards everything else.
func (r *Resampler) SetProperty(name string, value float32) bool {
	if name == PropertyRate {
		if value <= 0 {
			return false
		}
		r.rate = float64(value)
		r.updateStep()
		return true
	}
	return r.src.SetProperty(name, value)
}

func (r *Resampler) Clone() (StreamReader, error) {
	src, err := r.src.Clone()
	if err != nil {
		return nil, fmt.Errorf("resampler: %w", err)
	}

	c := NewResampler(src, int(r.dstRate))
	c.rate = r.rate
	c.updateStep()
	return c, nil
}
