// SPDX-License-Identifier: EPL-2.0

package audio

import "fmt"

// MonoMixer downmixes any channel layout to mono by averaging.
type MonoMixer struct {
	src StreamReader
	tmp []float32
}

func NewMonoMixer(src StreamReader) *MonoMixer {
	return &MonoMixer{
		src: src,
		tmp: make([]float32, 4096),
	}
}

func (m *MonoMixer) SampleRate() int { return m.src.SampleRate() }
func (m *MonoMixer) Channels() int   { return 1 }
func (m *MonoMixer) Close() error {
	err := m.src.Close()
	if err != nil {
		return fmt.Errorf("%w", err)
	}

	return nil
}

func (m *MonoMixer) Read(dst []float32) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}
	channels := m.src.Channels()
	if channels == 1 {
		return m.src.Read(dst)
	}

	samplesNeeded := len(dst) * channels

	// Grow tmp buffer if needed (but don't shrink to avoid thrashing)
	if cap(m.tmp) < samplesNeeded {
		m.tmp = make([]float32, max(samplesNeeded, 8192))
	}
	m.tmp = m.tmp[:samplesNeeded]

	frames, err := m.src.Read(m.tmp)
	if frames == 0 {
		return 0, err
	}

	invChannels := float32(1.0) / float32(channels)

	switch channels {
	case 2:
		for f := range frames {
			idx := f << 1
			dst[f] = (m.tmp[idx] + m.tmp[idx+1]) * 0.5
		}
	case 4:
		for f := range frames {
			idx := f << 2
			dst[f] = (m.tmp[idx] + m.tmp[idx+1] + m.tmp[idx+2] + m.tmp[idx+3]) * 0.25
		}
	default:
		for f := range frames {
			sum := float32(0)
			base := f * channels
			for c := range channels {
				sum += m.tmp[base+c]
			}
			dst[f] = sum * invChannels
		}
	}

	return frames, err
}

func (m *MonoMixer) SetPosition(frame int) (SeekResult, error) { return m.src.SetPosition(frame) }
func (m *MonoMixer) NextSourceFrame() int                       { return m.src.NextSourceFrame() }
func (m *MonoMixer) StreamToSourceRatio() float32               { return m.src.StreamToSourceRatio() }
func (m *MonoMixer) Length() int                                { return m.src.Length() }
func (m *MonoMixer) LengthFast() int                            { return m.src.LengthFast() }
func (m *MonoMixer) SetProperty(name string, value float32) bool {
	return m.src.SetProperty(name, value)
}

func (m *MonoMixer) Clone() (StreamReader, error) {
	src, err := m.src.Clone()
	if err != nil {
		return nil, fmt.Errorf("mono mixer: %w", err)
	}
	return NewMonoMixer(src), nil
}
