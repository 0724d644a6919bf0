// SPDX-License-Identifier: EPL-2.0

package wav

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/ik5/audmix/audio"
	"github.com/ik5/audmix/utils"
)

const (
	formatPCM        = 1
	formatExtensible = 0xFFFE
)

// header is the part of the fmt chunk the decoder needs.
type header struct {
	sampleRate int
	channels   int
}

// source serves 16-bit PCM from the data chunk of a buffered WAV file. The
// pcm slice is shared between clones and never written.
type source struct {
	header

	pcm    []byte
	frames int
	pos    int
}

func (s *source) SampleRate() int { return s.sampleRate }
func (s *source) Channels() int   { return s.channels }
func (s *source) Close() error    { return nil }

func (s *source) Read(dst []float32) (int, error) {
	if len(dst)%s.channels != 0 {
		return 0, audio.ErrInvalidDstSize
	}
	if s.pos >= s.frames {
		return 0, io.EOF
	}

	frames := min(len(dst)/s.channels, s.frames-s.pos)
	off := s.pos * s.channels * 2
	for i := range frames * s.channels {
		v := int16(binary.LittleEndian.Uint16(s.pcm[off+2*i:]))
		dst[i] = utils.Int16ToFloat32(v)
	}
	s.pos += frames

	return frames, nil
}

func (s *source) SetPosition(frame int) (audio.SeekResult, error) {
	frame = max(frame, 0)
	if frame >= s.frames {
		s.pos = s.frames
		return audio.SeekTrivial, nil
	}
	if frame == s.pos {
		return audio.SeekTrivial, nil
	}

	s.pos = frame
	return audio.SeekResync, nil
}

func (s *source) Length() int     { return utils.FramesToMillis(int64(s.frames), s.sampleRate) }
func (s *source) LengthFast() int { return s.Length() }

func (s *source) NextSourceFrame() int         { return s.pos }
func (s *source) StreamToSourceRatio() float32 { return 1 }

func (s *source) SetProperty(string, float32) bool { return false }

func (s *source) Clone() (audio.StreamReader, error) {
	return &source{
		header: s.header,
		pcm:    s.pcm,
		frames: s.frames,
	}, nil
}

// Decoder reads 16-bit PCM WAV files. The whole input is buffered so the
// resulting stream can seek and be cloned.
type Decoder struct{}

func (Decoder) Decode(r io.Reader) (audio.StreamReader, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading wav data: %w", err)
	}

	hdr, pcm, err := parse(data)
	if err != nil {
		return nil, err
	}

	frameSize := hdr.channels * 2
	return &source{
		header: hdr,
		pcm:    pcm,
		frames: len(pcm) / frameSize,
	}, nil
}

// parse walks the RIFF chunks of data and returns the format and the
// payload of the data chunk. Chunks other than fmt and data are skipped; a
// data chunk running past the end of the file is cut to what is present.
func parse(data []byte) (header, []byte, error) {
	var hdr header

	if len(data) < 12 || !bytes.Equal(data[:4], []byte("RIFF")) || !bytes.Equal(data[8:12], []byte("WAVE")) {
		return hdr, nil, ErrNotWavFile
	}

	var (
		pcm     []byte
		haveFmt bool
		havePCM bool
	)

	for off := 12; off+8 <= len(data); {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		end := body + size
		if end > len(data) || end < body {
			if id != "data" {
				return hdr, nil, fmt.Errorf("%w: chunk %q truncated", ErrUnsupportedWavLayout, id)
			}
			end = len(data)
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return hdr, nil, fmt.Errorf("%w: fmt chunk of %d bytes", ErrUnsupportedWavLayout, size)
			}
			f := data[body:end]
			audioFormat := binary.LittleEndian.Uint16(f[0:2])
			hdr.channels = int(binary.LittleEndian.Uint16(f[2:4]))
			hdr.sampleRate = int(binary.LittleEndian.Uint32(f[4:8]))
			bits := binary.LittleEndian.Uint16(f[14:16])

			if (audioFormat != formatPCM && audioFormat != formatExtensible) || bits != 16 {
				return hdr, nil, ErrOnlyPCM16bitSupported
			}
			if hdr.channels < 1 || hdr.sampleRate < 1 {
				return hdr, nil, fmt.Errorf("%w: %d channels at %d Hz", ErrUnsupportedWavLayout, hdr.channels, hdr.sampleRate)
			}
			haveFmt = true

		case "data":
			pcm = data[body:end]
			havePCM = true
		}

		// chunks are word aligned
		off = end + size&1
		if haveFmt && havePCM {
			break
		}
	}

	if !haveFmt || !havePCM {
		return hdr, nil, ErrUnsupportedWavChunks
	}

	return hdr, pcm[:len(pcm)/(hdr.channels*2)*hdr.channels*2], nil
}
