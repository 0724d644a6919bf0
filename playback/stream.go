// SPDX-License-Identifier: EPL-2.0

package playback

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"

	"github.com/ik5/audmix/audio"
)

// Format is the sample encoding a Stream produces.
type Format int

const (
	// FormatInt16 is signed 16-bit little-endian PCM.
	FormatInt16 Format = iota
	// FormatFloat32 is IEEE 754 float32 little-endian PCM.
	FormatFloat32
)

func (f Format) String() string {
	switch f {
	case FormatInt16:
		return "int16"
	case FormatFloat32:
		return "float32"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// ParseFormat maps "int16" and "float32" to a Format.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "int16", "":
		return FormatInt16, nil
	case "float32":
		return FormatFloat32, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// BytesPerSample of the encoding.
func (f Format) BytesPerSample() int {
	if f == FormatFloat32 {
		return 4
	}
	return 2
}

const (
	// DefaultBlockFrames bounds how many frames one source Read asks for.
	DefaultBlockFrames = 1024
	// DefaultPolls is how many (0, nil) reads in a row a Stream accepts
	// before it pads the callback with silence.
	DefaultPolls = 4
)

// StreamOption configures a Stream.
type StreamOption func(*Stream)

// WithBlockFrames sets the largest source read in frames.
func WithBlockFrames(n int) StreamOption {
	return func(s *Stream) {
		if n > 0 {
			s.blockFrames = n
		}
	}
}

// WithPolls sets how often a stalled source is re-read before silence is
// emitted. Zero emits silence on the first stall.
func WithPolls(n int) StreamOption {
	return func(s *Stream) {
		if n >= 0 {
			s.polls = n
		}
	}
}

// WithLogger sets the logger for stalls and source errors.
func WithLogger(l *slog.Logger) StreamOption {
	return func(s *Stream) {
		if l != nil {
			s.logger = l
		}
	}
}

// Stream adapts a StreamReader to the io.Reader an audio device pulls PCM
// bytes from. It never blocks on the source: when the source has nothing
// after a few polls the rest of the request is filled with silence.
//
// Read returns io.EOF once the source ended and every produced byte was
// handed out. A source error ends the stream the same way and is kept for
// Err.
type Stream struct {
	mu sync.Mutex

	src      audio.StreamReader
	format   Format
	channels int

	blockFrames int
	polls       int
	logger      *slog.Logger

	samples []float32
	mix     audio.MixBuffer
	pcm16   []int16
	encoded []byte
	pending []byte

	silentFrames int64
	ended        bool
	err          error
}

// NewStream wraps src. The Stream does not own src; close it separately.
func NewStream(src audio.StreamReader, format Format, opts ...StreamOption) *Stream {
	s := &Stream{
		src:         src,
		format:      format,
		channels:    src.Channels(),
		blockFrames: DefaultBlockFrames,
		polls:       DefaultPolls,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	samples := s.blockFrames * s.channels
	s.samples = make([]float32, samples)
	s.pcm16 = make([]int16, samples)
	s.encoded = make([]byte, samples*format.BytesPerSample())
	s.mix.Reinitialize(samples)

	return s
}

// Format of the produced bytes.
func (s *Stream) Format() Format { return s.format }

// Channels of the produced frames.
func (s *Stream) Channels() int { return s.channels }

// SilentFrames is the number of frames padded with silence so far.
func (s *Stream) SilentFrames() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.silentFrames
}

// Err is the source error that ended the stream, nil while it runs or after
// a clean end.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Stream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := copy(p, s.pending)
	s.pending = s.pending[n:]

	frameBytes := s.channels * s.format.BytesPerSample()
	stalls := 0

	for n < len(p) && !s.ended {
		frames := min(max(1, (len(p)-n)/frameBytes), s.blockFrames)

		got, err := s.src.Read(s.samples[:frames*s.channels])
		if got > 0 {
			n += s.emit(p[n:], s.encode(s.samples[:got*s.channels]))
			stalls = 0
		}

		if err != nil {
			s.ended = true
			if !errors.Is(err, io.EOF) {
				s.err = err
				s.logger.Warn("playback source failed", "err", err)
			}
			break
		}

		if got == 0 {
			stalls++
			if stalls > s.polls {
				silent := min(max(1, (len(p)-n)/frameBytes), s.blockFrames)
				s.silentFrames += int64(silent)
				s.logger.Debug("playback underrun", "frames", silent)
				n += s.emit(p[n:], s.silence(silent*frameBytes))
				stalls = 0
			}
		}
	}

	if n == 0 && s.ended && len(p) > 0 {
		return 0, io.EOF
	}
	return n, nil
}

// emit copies b into p and keeps what does not fit for the next Read.
func (s *Stream) emit(p, b []byte) int {
	n := copy(p, b)
	if n < len(b) {
		s.pending = append(s.pending[:0], b[n:]...)
	}
	return n
}

func (s *Stream) encode(samples []float32) []byte {
	out := s.encoded[:len(samples)*s.format.BytesPerSample()]

	switch s.format {
	case FormatFloat32:
		for i, v := range samples {
			binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(v))
		}
	default:
		s.mix.Reset()
		s.mix.Write(samples)
		s.mix.ReadInt16(s.pcm16)
		for i, v := range s.pcm16[:len(samples)] {
			binary.LittleEndian.PutUint16(out[2*i:], uint16(v))
		}
	}

	return out
}

func (s *Stream) silence(size int) []byte {
	out := s.encoded[:size]
	clear(out)
	return out
}
