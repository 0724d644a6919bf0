package audio

import (
	"errors"
	"io"
	"math"
	"sync"
)

// mockSource is a test helper that generates audio data for testing.
// It implements StreamReader with a seekable, cloneable cursor.
type mockSource struct {
	mu sync.Mutex

	sampleRate  int
	channels    int
	totalFrames int
	pos         int
	maxFrames   int // per Read, 0 = unlimited
	stalls      int // pending (0, nil) reads
	failAt      int // frame at which failErr is returned, -1 = never
	failErr     error
	waveform    func(frame int, channel int) float32

	props  map[string]float32
	closed bool
	reads  int
	// readAfterClose is set when Read runs after Close.
	readAfterClose bool
}

var errMockFailure = errors.New("mock failure")

// newMockSource creates a new mock audio source.
// waveform generates sample values given frame index and channel.
func newMockSource(sampleRate, channels, totalFrames int, waveform func(frame int, channel int) float32) *mockSource {
	return &mockSource{
		sampleRate:  sampleRate,
		channels:    channels,
		totalFrames: totalFrames,
		failAt:      -1,
		waveform:    waveform,
		props:       make(map[string]float32),
	}
}

// newSilentSource creates a mock source that generates silence (all zeros).
func newSilentSource(sampleRate, channels, totalFrames int) *mockSource {
	return newMockSource(sampleRate, channels, totalFrames, func(int, int) float32 {
		return 0.0
	})
}

// newSineSource creates a mock source that generates a sine wave.
func newSineSource(sampleRate, channels, totalFrames int, frequency float64) *mockSource {
	return newMockSource(sampleRate, channels, totalFrames, func(frame int, _ int) float32 {
		t := float64(frame) / float64(sampleRate)
		return float32(math.Sin(2 * math.Pi * frequency * t))
	})
}

// newConstantSource creates a mock source with constant value.
func newConstantSource(sampleRate, channels, totalFrames int, value float32) *mockSource {
	return newMockSource(sampleRate, channels, totalFrames, func(int, int) float32 {
		return value
	})
}

// newRampSource yields frame/1000 on every channel so positions can be read
// back from sample values.
func newRampSource(sampleRate, channels, totalFrames int) *mockSource {
	return newMockSource(sampleRate, channels, totalFrames, func(frame int, _ int) float32 {
		return float32(frame) / 1000
	})
}

func (m *mockSource) SampleRate() int { return m.sampleRate }
func (m *mockSource) Channels() int   { return m.channels }

func (m *mockSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockSource) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *mockSource) Read(dst []float32) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.reads++
	if m.closed {
		m.readAfterClose = true
	}
	if len(dst)%m.channels != 0 {
		return 0, ErrInvalidDstSize
	}
	if m.stalls > 0 {
		m.stalls--
		return 0, nil
	}
	if m.failAt >= 0 && m.pos >= m.failAt {
		return 0, m.failErr
	}
	if m.pos >= m.totalFrames {
		return 0, io.EOF
	}

	frames := min(len(dst)/m.channels, m.totalFrames-m.pos)
	if m.maxFrames > 0 {
		frames = min(frames, m.maxFrames)
	}
	if m.failAt >= 0 {
		frames = min(frames, m.failAt-m.pos)
	}

	for f := range frames {
		for ch := range m.channels {
			dst[f*m.channels+ch] = m.waveform(m.pos+f, ch)
		}
	}
	m.pos += frames

	if m.pos >= m.totalFrames {
		return frames, io.EOF
	}
	return frames, nil
}

func (m *mockSource) SetPosition(frame int) (SeekResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if frame >= m.totalFrames {
		m.pos = m.totalFrames
		return SeekTrivial, nil
	}
	if frame == m.pos {
		return SeekTrivial, nil
	}
	m.pos = max(0, frame)
	return SeekResync, nil
}

func (m *mockSource) Length() int {
	return int(int64(m.totalFrames) * 1000 / int64(m.sampleRate))
}

func (m *mockSource) LengthFast() int { return m.Length() }

func (m *mockSource) NextSourceFrame() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pos
}

func (m *mockSource) StreamToSourceRatio() float32 { return 1 }

// SetProperty accepts only names that were pre-registered in props.
func (m *mockSource) SetProperty(name string, value float32) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.props[name]; !ok {
		return false
	}
	m.props[name] = value
	return true
}

func (m *mockSource) Clone() (StreamReader, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := newMockSource(m.sampleRate, m.channels, m.totalFrames, m.waveform)
	c.maxFrames = m.maxFrames
	for k, v := range m.props {
		c.props[k] = v
	}
	return c, nil
}
