// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"io"
	"math"
	"testing"
)

func TestMonoMixer_MonoPassthrough(t *testing.T) {
	t.Parallel()

	// Mono input should pass through unchanged
	src := newConstantSource(8000, 1, 100, 0.5)
	mixer := NewMonoMixer(src)

	if mixer.Channels() != 1 {
		t.Errorf("MonoMixer.Channels() = %d, want 1", mixer.Channels())
	}

	buf := make([]float32, 10)
	n, err := mixer.Read(buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if n != 10 {
		t.Errorf("Read() n = %d, want 10", n)
	}

	for i := range n {
		if buf[i] != 0.5 {
			t.Errorf("buf[%d] = %v, want 0.5", i, buf[i])
		}
	}
}

func TestMonoMixer_Downmix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		channels int
		value    func(frame, channel int) float32
		want     float32
	}{
		{"stereo", 2, func(_, ch int) float32 { return 0.4 + 0.2*float32(ch) }, 0.5},
		{"quad", 4, func(_, ch int) float32 { return float32(ch) / 10.0 }, 0.15},
		{"octo", 8, func(_, ch int) float32 { return float32(ch) * 0.1 }, 0.35},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mixer := NewMonoMixer(newMockSource(8000, tt.channels, 100, tt.value))

			buf := make([]float32, 10)
			n, err := mixer.Read(buf)
			if err != nil {
				t.Fatalf("Read() error = %v", err)
			}
			if n != 10 {
				t.Fatalf("Read() n = %d, want 10", n)
			}
			for i := range n {
				if math.Abs(float64(buf[i]-tt.want)) > 0.001 {
					t.Errorf("buf[%d] = %v, want %v", i, buf[i], tt.want)
				}
			}
		})
	}
}

func TestMonoMixer_EOF(t *testing.T) {
	t.Parallel()

	mixer := NewMonoMixer(newSilentSource(8000, 2, 5))

	buf := make([]float32, 10)
	n, err := mixer.Read(buf)
	if err != io.EOF {
		t.Errorf("Read() error = %v, want io.EOF", err)
	}
	if n != 5 {
		t.Errorf("Read() n = %d, want 5", n)
	}

	n, err = mixer.Read(buf)
	if err != io.EOF || n != 0 {
		t.Errorf("second Read() = (%d, %v), want (0, io.EOF)", n, err)
	}
}

func TestMonoMixer_EmptyBuffer(t *testing.T) {
	t.Parallel()

	mixer := NewMonoMixer(newSilentSource(8000, 2, 100))

	n, err := mixer.Read(nil)
	if err != nil || n != 0 {
		t.Errorf("Read(nil) = (%d, %v), want (0, nil)", n, err)
	}
}

func TestMonoMixer_ForwardsPosition(t *testing.T) {
	t.Parallel()

	src := newRampSource(44100, 2, 1000)
	mixer := NewMonoMixer(src)

	if mixer.SampleRate() != 44100 {
		t.Errorf("MonoMixer.SampleRate() = %d, want 44100", mixer.SampleRate())
	}

	res, err := mixer.SetPosition(500)
	if err != nil || res != SeekResync {
		t.Fatalf("SetPosition(500) = (%v, %v), want (resync, nil)", res, err)
	}
	if got := mixer.NextSourceFrame(); got != 500 {
		t.Errorf("NextSourceFrame() = %d, want 500", got)
	}

	buf := make([]float32, 4)
	if _, err := mixer.Read(buf); err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if math.Abs(float64(buf[0]-0.5)) > 1e-6 {
		t.Errorf("buf[0] = %v, want 0.5", buf[0])
	}
	if got := mixer.Length(); got != src.Length() {
		t.Errorf("Length() = %d, want %d", got, src.Length())
	}
}

func TestMonoMixer_Clone(t *testing.T) {
	t.Parallel()

	mixer := NewMonoMixer(newRampSource(8000, 2, 100))
	buf := make([]float32, 50)
	_, _ = mixer.Read(buf)

	c, err := mixer.Clone()
	if err != nil {
		t.Fatalf("Clone() error = %v", err)
	}
	if c.NextSourceFrame() != 0 {
		t.Errorf("clone NextSourceFrame() = %d, want 0", c.NextSourceFrame())
	}
	if mixer.NextSourceFrame() != 50 {
		t.Errorf("original NextSourceFrame() = %d, want 50", mixer.NextSourceFrame())
	}
}

func TestMonoMixer_Close(t *testing.T) {
	t.Parallel()

	src := newSilentSource(8000, 2, 1000)
	mixer := NewMonoMixer(src)

	if err := mixer.Close(); err != nil {
		t.Errorf("Close() error = %v, want nil", err)
	}
	if !src.isClosed() {
		t.Error("Close() did not close the source")
	}
}

func TestMonoMixer_ZeroAllocs(t *testing.T) {
	src := newSineSource(8000, 2, 100000, 440.0)
	mixer := NewMonoMixer(src)
	buf := make([]float32, 4096)

	// Warm up
	_, _ = mixer.Read(buf)

	allocs := testing.AllocsPerRun(100, func() {
		_, _ = src.SetPosition(0)
		_, _ = mixer.Read(buf)
	})

	if allocs > 0 {
		t.Errorf("MonoMixer.Read() allocated %v times, want 0", allocs)
	}
}

// BenchmarkMonoMixer_StereoToMono benchmarks stereo to mono conversion
func BenchmarkMonoMixer_StereoToMono(b *testing.B) {
	src := newSineSource(8000, 2, 100000, 440.0)
	mixer := NewMonoMixer(src)
	buf := make([]float32, 4096)

	b.ResetTimer()
	b.ReportAllocs()

	for b.Loop() {
		_, _ = src.SetPosition(0)
		for {
			_, err := mixer.Read(buf)
			if err == io.EOF {
				break
			}
		}
	}
}
