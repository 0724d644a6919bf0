// SPDX-License-Identifier: EPL-2.0

package mp3

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	gomp3 "github.com/hajimehoshi/go-mp3"

	"github.com/ik5/audmix/audio"
	"github.com/ik5/audmix/utils"
)

// go-mp3 always produces 16-bit little-endian stereo.
const (
	channels      = 2
	bytesPerFrame = 4
)

// mp3Reader is the part of gomp3.Decoder the source uses, split out so
// tests can substitute it.
type mp3Reader interface {
	io.ReadSeeker
	SampleRate() int
	Length() int64
}

type opener func(r io.ReadSeeker) (mp3Reader, error)

func openGoMP3(r io.ReadSeeker) (mp3Reader, error) {
	dec, err := gomp3.NewDecoder(r)
	if err != nil {
		return nil, err
	}
	return dec, nil
}

type source struct {
	data []byte
	open opener

	dec        mp3Reader
	sampleRate int
	frames     int // -1 when unknown
	pos        int
	atEnd      bool
	buf        []byte
}

func newSource(data []byte, open opener) (*source, error) {
	dec, err := open(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w", err)
	}

	frames := -1
	if l := dec.Length(); l >= 0 {
		frames = int(l / bytesPerFrame)
	}

	return &source{
		data:       data,
		open:       open,
		dec:        dec,
		sampleRate: dec.SampleRate(),
		frames:     frames,
		buf:        make([]byte, 8192),
	}, nil
}

func (s *source) SampleRate() int { return s.sampleRate }
func (s *source) Channels() int   { return channels }
func (s *source) Close() error    { return nil }

func (s *source) Read(dst []float32) (int, error) {
	if len(dst)%channels != 0 {
		return 0, audio.ErrInvalidDstSize
	}
	if s.atEnd {
		return 0, io.EOF
	}

	bytesNeeded := len(dst) / channels * bytesPerFrame
	if bytesNeeded == 0 {
		return 0, nil
	}
	if cap(s.buf) < bytesNeeded {
		s.buf = make([]byte, bytesNeeded)
	}
	s.buf = s.buf[:bytesNeeded]

	n, err := io.ReadFull(s.dec, s.buf)
	frames := n / bytesPerFrame
	for i := range frames * channels {
		v := int16(uint16(s.buf[2*i]) | uint16(s.buf[2*i+1])<<8)
		dst[i] = utils.Int16ToFloat32(v)
	}
	s.pos += frames

	switch {
	case err == nil:
		return frames, nil
	case errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF):
		s.atEnd = true
		if frames == 0 {
			return 0, io.EOF
		}
		return frames, nil
	default:
		return frames, fmt.Errorf("mp3: %w", err)
	}
}

func (s *source) SetPosition(frame int) (audio.SeekResult, error) {
	frame = max(frame, 0)
	if s.frames >= 0 && frame >= s.frames {
		s.pos = s.frames
		s.atEnd = true
		return audio.SeekTrivial, nil
	}
	if frame == s.pos && !s.atEnd {
		return audio.SeekTrivial, nil
	}

	if _, err := s.dec.Seek(int64(frame)*bytesPerFrame, io.SeekStart); err != nil {
		return audio.SeekTrivial, fmt.Errorf("mp3: seek to frame %d: %w", frame, err)
	}
	s.pos = frame
	s.atEnd = false
	return audio.SeekResync, nil
}

func (s *source) Length() int {
	if s.frames < 0 {
		return audio.LengthUnknown
	}
	return utils.FramesToMillis(int64(s.frames), s.sampleRate)
}

func (s *source) LengthFast() int { return s.Length() }

func (s *source) NextSourceFrame() int         { return s.pos }
func (s *source) StreamToSourceRatio() float32 { return 1 }

func (s *source) SetProperty(string, float32) bool { return false }

// Clone opens a second decoder over the same encoded bytes.
func (s *source) Clone() (audio.StreamReader, error) {
	c, err := newSource(s.data, s.open)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Decoder reads MP3 files through github.com/hajimehoshi/go-mp3. The input
// is buffered so the decoder can build its frame index, which seeking and
// Length rely on.
type Decoder struct{}

func (Decoder) Decode(r io.Reader) (audio.StreamReader, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading mp3 data: %w", err)
	}

	src, err := newSource(data, openGoMP3)
	if err != nil {
		return nil, err
	}
	return src, nil
}
