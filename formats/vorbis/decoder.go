// SPDX-License-Identifier: EPL-2.0

package vorbis

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/jfreymuth/oggvorbis"

	"github.com/ik5/audmix/audio"
	"github.com/ik5/audmix/utils"
)

// oggReader is the part of oggvorbis.Reader the source uses, split out so
// tests can substitute it.
type oggReader interface {
	SampleRate() int
	Channels() int
	// Read returns interleaved values, a multiple of Channels.
	Read([]float32) (int, error)
	// Length and SetPosition count frames.
	Length() int64
	SetPosition(int64) error
}

type opener func(r io.Reader) (oggReader, error)

func openOggVorbis(r io.Reader) (oggReader, error) {
	dec, err := oggvorbis.NewReader(r)
	if err != nil {
		return nil, err
	}
	return dec, nil
}

type source struct {
	data []byte
	open opener

	dec        oggReader
	sampleRate int
	channels   int
	frames     int // 0 when unknown
	pos        int
}

func newSource(data []byte, open opener) (*source, error) {
	dec, err := open(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w", err)
	}
	if dec.Channels() < 1 {
		return nil, ErrNoChannels
	}

	return &source{
		data:       data,
		open:       open,
		dec:        dec,
		sampleRate: dec.SampleRate(),
		channels:   dec.Channels(),
		frames:     int(dec.Length()),
	}, nil
}

func (s *source) SampleRate() int { return s.sampleRate }
func (s *source) Channels() int   { return s.channels }
func (s *source) Close() error    { return nil }

func (s *source) Read(dst []float32) (int, error) {
	if len(dst)%s.channels != 0 {
		return 0, audio.ErrInvalidDstSize
	}
	if len(dst) == 0 {
		return 0, nil
	}

	n, err := s.dec.Read(dst)
	frames := n / s.channels
	s.pos += frames

	switch {
	case err == nil:
		return frames, nil
	case errors.Is(err, io.EOF):
		if frames > 0 {
			return frames, nil
		}
		return 0, io.EOF
	default:
		return frames, fmt.Errorf("vorbis: %w", err)
	}
}

func (s *source) SetPosition(frame int) (audio.SeekResult, error) {
	frame = max(frame, 0)
	if s.frames > 0 && frame >= s.frames {
		frame = s.frames
		if s.pos == frame {
			return audio.SeekTrivial, nil
		}
		// the reader marks itself finished on a seek past the end
		if err := s.dec.SetPosition(int64(frame)); err != nil {
			return audio.SeekTrivial, fmt.Errorf("vorbis: seek to frame %d: %w", frame, err)
		}
		s.pos = frame
		return audio.SeekTrivial, nil
	}
	if frame == s.pos {
		return audio.SeekTrivial, nil
	}

	if err := s.dec.SetPosition(int64(frame)); err != nil {
		return audio.SeekTrivial, fmt.Errorf("vorbis: seek to frame %d: %w", frame, err)
	}
	s.pos = frame
	return audio.SeekResync, nil
}

func (s *source) Length() int {
	if s.frames <= 0 {
		return audio.LengthUnknown
	}
	return utils.FramesToMillis(int64(s.frames), s.sampleRate)
}

func (s *source) LengthFast() int { return s.Length() }

func (s *source) NextSourceFrame() int         { return s.pos }
func (s *source) StreamToSourceRatio() float32 { return 1 }

func (s *source) SetProperty(string, float32) bool { return false }

// Clone opens a second reader over the same encoded bytes.
func (s *source) Clone() (audio.StreamReader, error) {
	c, err := newSource(s.data, s.open)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Decoder reads Ogg Vorbis files through github.com/jfreymuth/oggvorbis.
// The input is buffered so the reader can seek and report its length.
type Decoder struct{}

func (Decoder) Decode(r io.Reader) (audio.StreamReader, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading vorbis data: %w", err)
	}

	src, err := newSource(data, openOggVorbis)
	if err != nil {
		return nil, err
	}
	return src, nil
}
