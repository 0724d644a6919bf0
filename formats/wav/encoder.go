// SPDX-License-Identifier: EPL-2.0

package wav

import (
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	gowav "github.com/go-audio/wav"
)

// Encoder streams interleaved 16-bit PCM into a WAV file. The header sizes
// are patched on Close, so the destination has to seek.
type Encoder struct {
	enc *gowav.Encoder
	buf *goaudio.IntBuffer
}

// NewEncoder starts a 16-bit PCM WAV file on ws.
func NewEncoder(ws io.WriteSeeker, sampleRate, channels int) (*Encoder, error) {
	if channels < 1 {
		return nil, fmt.Errorf("%w: %d channels", ErrInvalidChannels, channels)
	}

	return &Encoder{
		enc: gowav.NewEncoder(ws, sampleRate, 16, channels, formatPCM),
		buf: &goaudio.IntBuffer{
			Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
			SourceBitDepth: 16,
		},
	}, nil
}

// Write appends whole frames of interleaved samples.
func (e *Encoder) Write(samples []int16) error {
	channels := e.buf.Format.NumChannels
	if len(samples)%channels != 0 {
		return fmt.Errorf("%w: %d samples over %d channels", ErrInvalidChannels, len(samples), channels)
	}

	if cap(e.buf.Data) < len(samples) {
		e.buf.Data = make([]int, len(samples))
	}
	e.buf.Data = e.buf.Data[:len(samples)]
	for i, s := range samples {
		e.buf.Data[i] = int(s)
	}

	if err := e.enc.Write(e.buf); err != nil {
		return fmt.Errorf("writing wav frames: %w", err)
	}
	return nil
}

// Close finalizes the header. The underlying writer is not closed.
func (e *Encoder) Close() error {
	// an empty file still needs its header
	if err := e.Write(nil); err != nil {
		return err
	}
	if err := e.enc.Close(); err != nil {
		return fmt.Errorf("finalizing wav: %w", err)
	}
	return nil
}

// Encode writes samples as a complete WAV file through an Encoder.
func Encode(ws io.WriteSeeker, sampleRate, channels int, samples []int16) error {
	enc, err := NewEncoder(ws, sampleRate, channels)
	if err != nil {
		return err
	}
	if err := enc.Write(samples); err != nil {
		return err
	}
	return enc.Close()
}
