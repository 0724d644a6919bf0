// SPDX-License-Identifier: EPL-2.0

package aiff

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/aiff"
	goaudio "github.com/go-audio/audio"

	"github.com/ik5/audmix/audio"
	"github.com/ik5/audmix/utils"
)

// aiffReader is an interface for aiff.Decoder to allow testing
type aiffReader interface {
	Format() *goaudio.Format
	PCMBuffer(buf *goaudio.IntBuffer) (int, error)
}

// info is what the COMM chunk says about the sound data.
type info struct {
	sampleRate int
	channels   int
	frames     int
}

type opener func(r io.ReadSeeker) (aiffReader, info, error)

func openGoAIFF(r io.ReadSeeker) (aiffReader, info, error) {
	dec := aiff.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, info{}, ErrNotAiffFile
	}

	dec.ReadInfo()

	if dec.BitDepth != 16 {
		return nil, info{}, ErrOnlyPCM16bitSupported
	}

	format := dec.Format()
	if format == nil || format.NumChannels < 1 || format.SampleRate < 1 {
		return nil, info{}, ErrUnsupportedAiffLayout
	}

	return dec, info{
		sampleRate: format.SampleRate,
		channels:   format.NumChannels,
		frames:     int(dec.NumSampleFrames),
	}, nil
}

// source wraps go-audio aiff.Decoder to implement audio.StreamReader. The
// decoder only reads forward, so seeks restart it over the buffered file
// and skip ahead.
type source struct {
	info

	data []byte
	open opener

	dec    aiffReader
	intBuf *goaudio.IntBuffer
	pos    int
	atEnd  bool
}

func newSource(data []byte, open opener) (*source, error) {
	s := &source{data: data, open: open}
	if err := s.restart(); err != nil {
		return nil, err
	}
	return s, nil
}

// restart opens a fresh decoder positioned at frame 0.
func (s *source) restart() error {
	dec, inf, err := s.open(bytes.NewReader(s.data))
	if err != nil {
		return err
	}

	s.dec = dec
	s.info = inf
	s.pos = 0
	s.atEnd = false
	return nil
}

func (s *source) SampleRate() int { return s.sampleRate }
func (s *source) Channels() int   { return s.channels }
func (s *source) Close() error    { return nil }

func (s *source) Read(dst []float32) (int, error) {
	if len(dst)%s.channels != 0 {
		return 0, audio.ErrInvalidDstSize
	}
	if s.atEnd {
		return 0, io.EOF
	}
	if len(dst) == 0 {
		return 0, nil
	}

	if s.intBuf == nil || cap(s.intBuf.Data) < len(dst) {
		s.intBuf = &goaudio.IntBuffer{
			Data:           make([]int, len(dst)),
			Format:         s.dec.Format(),
			SourceBitDepth: 16,
		}
	}
	s.intBuf.Data = s.intBuf.Data[:len(dst)]

	n, err := s.dec.PCMBuffer(s.intBuf)
	frames := n / s.channels
	for i := range frames * s.channels {
		dst[i] = utils.Int16ToFloat32(int16(s.intBuf.Data[i]))
	}
	s.pos += frames

	switch {
	case err != nil && !errors.Is(err, io.EOF):
		return frames, fmt.Errorf("aiff: %w", err)
	case frames == 0:
		s.atEnd = true
		return 0, io.EOF
	case err != nil:
		s.atEnd = true
	}
	return frames, nil
}

func (s *source) SetPosition(frame int) (audio.SeekResult, error) {
	frame = max(frame, 0)
	if frame >= s.frames {
		s.pos = s.frames
		s.atEnd = true
		return audio.SeekTrivial, nil
	}
	if frame == s.pos && !s.atEnd {
		return audio.SeekTrivial, nil
	}

	if frame < s.pos || s.atEnd {
		if err := s.restart(); err != nil {
			return audio.SeekTrivial, fmt.Errorf("aiff: restart for seek: %w", err)
		}
	}
	if err := s.skip(frame - s.pos); err != nil {
		return audio.SeekResync, fmt.Errorf("aiff: seek to frame %d: %w", frame, err)
	}
	return audio.SeekResync, nil
}

// skip decodes and drops frames.
func (s *source) skip(frames int) error {
	scratch := make([]float32, min(frames, 4096)*s.channels)
	for frames > 0 {
		n, err := s.Read(scratch[:min(frames, 4096)*s.channels])
		frames -= n
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *source) Length() int     { return utils.FramesToMillis(int64(s.frames), s.sampleRate) }
func (s *source) LengthFast() int { return s.Length() }

func (s *source) NextSourceFrame() int         { return s.pos }
func (s *source) StreamToSourceRatio() float32 { return 1 }

func (s *source) SetProperty(string, float32) bool { return false }

func (s *source) Clone() (audio.StreamReader, error) {
	c, err := newSource(s.data, s.open)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Decoder reads 16-bit PCM AIFF files through github.com/go-audio/aiff.
type Decoder struct{}

func (Decoder) Decode(r io.Reader) (audio.StreamReader, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading aiff data: %w", err)
	}

	src, err := newSource(data, openGoAIFF)
	if err != nil {
		return nil, err
	}
	return src, nil
}
