// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"fmt"

	"github.com/ik5/audmix/utils"
)

const (
	// mixBufferChunk is the growth granularity of MixBuffer, in samples.
	mixBufferChunk = 1024

	// MaxMixBufferSamples bounds MixBuffer growth. Asking for more is a
	// programming error and panics.
	MaxMixBufferSamples = 1 << 26
)

// MixBuffer accumulates float samples. Writes add into whatever is already
// there, which is how several streams at different channel offsets sum into
// one interleaved block. Reading drains the used region; the storage is kept
// for the next block.
//
// The zero value is ready to use. A MixBuffer is not safe for concurrent use.
type MixBuffer struct {
	buf    []float32 // allocated samples
	used   int       // valid samples
	offset int       // write offset in samples
}

// NewMixBuffer returns a MixBuffer with room for size samples.
func NewMixBuffer(size int) *MixBuffer {
	m := &MixBuffer{}
	m.Reinitialize(size)
	return m
}

// SetWriteOffset makes the following writes start offset samples into the
// buffer. The offset is in samples, not frames: for stereo data multiply the
// frame offset by two.
func (m *MixBuffer) SetWriteOffset(offset int) {
	m.offset = offset
}

// Size is the number of valid samples.
func (m *MixBuffer) Size() int { return m.used }

// Samples returns the valid region without draining it. The slice aliases
// the internal storage and is only valid until the next write.
func (m *MixBuffer) Samples() []float32 { return m.buf[:m.used] }

// Extend makes offset+samples samples valid, filling new space with silence.
// It never shrinks the valid region.
func (m *MixBuffer) Extend(samples int) {
	realSize := samples + m.offset
	if samples < 0 || realSize < 0 || realSize > MaxMixBufferSamples {
		panic(fmt.Sprintf("audio: mix buffer cannot grow to %d samples (offset %d)", realSize, m.offset))
	}

	if len(m.buf) < realSize {
		newSize := (realSize + mixBufferChunk - 1) / mixBufferChunk * mixBufferChunk
		grown := make([]float32, newSize)
		copy(grown, m.buf[:m.used])
		m.buf = grown
	}

	if m.used < realSize {
		clear(m.buf[m.used:realSize])
		m.used = realSize
	}
}

// Write adds src into the buffer at the current write offset.
func (m *MixBuffer) Write(src []float32) {
	m.WriteStrided(src, len(src), 1, 1)
}

// WriteStrided adds n samples taken every srcStride values of src into every
// dstStride-th sample of the buffer, starting at the write offset.
// n = 3 with dstStride = 2 touches samples 0, 2 and 4, so 5 samples become
// valid; the stride after the last sample is not reserved.
func (m *MixBuffer) WriteStrided(src []float32, n, srcStride, dstStride int) {
	if n == 0 {
		return
	}

	m.Extend(n*dstStride - (dstStride - 1))

	dst := m.buf[m.offset:]
	for i := range n {
		dst[i*dstStride] += src[i*srcStride]
	}
}

// ReadInt16 converts the valid samples to 16-bit PCM, clamping to [-1, 1]
// and rounding to nearest, then drains the buffer. dst must hold Size()
// samples. It returns the number of samples written.
func (m *MixBuffer) ReadInt16(dst []int16) int {
	n := m.used
	for i, s := range m.buf[:n] {
		dst[i] = utils.Float32ToInt16(s)
	}
	m.used = 0
	return n
}

// Read copies the valid samples into dst and drains the buffer.
func (m *MixBuffer) Read(dst []float32) int {
	n := copy(dst, m.buf[:m.used])
	m.used = 0
	return n
}

// ReadDeinterlace splits the valid samples into one slice per channel and
// drains the buffer. It returns the number of frames written per channel.
func (m *MixBuffer) ReadDeinterlace(dst [][]float32, channels int) int {
	frames := m.used / channels
	for i := range frames {
		for ch := range channels {
			dst[ch][i] = m.buf[channels*i+ch]
		}
	}
	m.used = 0
	return frames
}

// Reset drops the valid region without reading it and clears the offset.
func (m *MixBuffer) Reset() {
	m.used = 0
	m.offset = 0
}

// Reinitialize replaces the storage with room for size samples.
func (m *MixBuffer) Reinitialize(size int) {
	if size < 0 || size > MaxMixBufferSamples {
		panic(fmt.Sprintf("audio: mix buffer cannot hold %d samples", size))
	}
	m.buf = make([]float32, size)
	m.used = 0
	m.offset = 0
}
