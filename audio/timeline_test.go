// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"errors"
	"io"
	"testing"
)

func readTimeline(t *testing.T, r StreamReader, bufFrames int) []float32 {
	t.Helper()

	var out []float32
	buf := make([]float32, bufFrames*r.Channels())
	for range 10000 {
		n, err := r.Read(buf)
		out = append(out, buf[:n*r.Channels()]...)
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
	}
	t.Fatal("stream did not end")
	return nil
}

func TestTimeline_DelayThenSource(t *testing.T) {
	t.Parallel()

	tl := NewTimeline(newRampSource(8000, 1, 100), 50)
	out := readTimeline(t, tl, 30)

	if len(out) != 150 {
		t.Fatalf("got %d frames, want 150", len(out))
	}
	for i, v := range out {
		want := float32(0)
		if i >= 50 {
			want = float32(i-50) / 1000
		}
		if v != want {
			t.Fatalf("frame %d = %v, want %v", i, v, want)
		}
	}
	if tl.NextSourceFrame() != 150 || tl.StreamToSourceRatio() != 1 {
		t.Errorf("position = (%d, %v), want (150, 1)", tl.NextSourceFrame(), tl.StreamToSourceRatio())
	}
}

func TestTimeline_NegativeDelay(t *testing.T) {
	t.Parallel()

	tl := NewTimeline(newConstantSource(8000, 2, 10, 0.5), -20)
	if tl.Delay() != 0 {
		t.Errorf("Delay() = %d, want 0", tl.Delay())
	}
	if out := readTimeline(t, tl, 4); len(out) != 20 || out[0] != 0.5 {
		t.Errorf("got %d samples starting %v, want 20 starting 0.5", len(out), out[0])
	}
}

func TestTimeline_CountsPlayedFrames(t *testing.T) {
	t.Parallel()

	rs := NewResampler(newConstantSource(8000, 1, 2000, 0.25), 8000)
	if !rs.SetProperty(PropertyRate, 2) {
		t.Fatal("SetProperty(Rate) = false")
	}
	tl := NewTimeline(rs, 0)

	buf := make([]float32, 100)
	if n, err := tl.Read(buf); n != 100 || err != nil {
		t.Fatalf("Read() = (%d, %v), want (100, nil)", n, err)
	}

	if tl.NextSourceFrame() != 100 || tl.StreamToSourceRatio() != 1 {
		t.Errorf("timeline position = (%d, %v), want (100, 1)", tl.NextSourceFrame(), tl.StreamToSourceRatio())
	}
	if got := rs.NextSourceFrame(); got < 190 {
		t.Errorf("resampler position = %d, want about 200", got)
	}
	for i, v := range buf {
		if v != 0.25 {
			t.Fatalf("frame %d = %v, want 0.25", i, v)
		}
	}
}

func TestTimeline_SetPosition(t *testing.T) {
	t.Parallel()

	src := newRampSource(8000, 1, 1000)
	tl := NewTimeline(src, 100)

	tests := []struct {
		frame     int
		want      SeekResult
		wantPos   int
		wantInner int
	}{
		{50, SeekResync, 50, 0},   // inside the delay
		{50, SeekTrivial, 50, 0},  // no-op
		{100, SeekResync, 100, 0}, // end of the delay
		{300, SeekResync, 300, 200},
		{-5, SeekResync, 0, 0},
		{5000, SeekResync, 5000, 1000}, // past the end
	}

	for _, tt := range tests {
		res, err := tl.SetPosition(tt.frame)
		if err != nil || res != tt.want {
			t.Errorf("SetPosition(%d) = (%v, %v), want (%v, nil)", tt.frame, res, err, tt.want)
		}
		if tl.NextSourceFrame() != tt.wantPos || src.NextSourceFrame() != tt.wantInner {
			t.Errorf("after SetPosition(%d) position %d inner %d, want %d and %d",
				tt.frame, tl.NextSourceFrame(), src.NextSourceFrame(), tt.wantPos, tt.wantInner)
		}
	}

	if _, err := tl.SetPosition(300); err != nil {
		t.Fatal(err)
	}
	buf := make([]float32, 1)
	if n, err := tl.Read(buf); n != 1 || err != nil || buf[0] != 0.2 {
		t.Errorf("Read() after seek = (%d, %v) %v, want source frame 200", n, err, buf[0])
	}
}

type seekFailSource struct {
	*mockSource
}

func (seekFailSource) SetPosition(int) (SeekResult, error) {
	return SeekTrivial, errMockFailure
}

func TestTimeline_SetPositionError(t *testing.T) {
	t.Parallel()

	tl := NewTimeline(seekFailSource{newSilentSource(8000, 1, 100)}, 10)
	if _, err := tl.SetPosition(40); !errors.Is(err, errMockFailure) {
		t.Errorf("SetPosition() error = %v, want %v", err, errMockFailure)
	}
	if tl.NextSourceFrame() != 0 {
		t.Errorf("position moved to %d on a failed seek", tl.NextSourceFrame())
	}
}

func TestTimeline_Length(t *testing.T) {
	t.Parallel()

	tl := NewTimeline(newSilentSource(8000, 1, 8000), 4000)
	if tl.Length() != 1500 || tl.LengthFast() != 1500 {
		t.Errorf("Length() = %d, want 1500", tl.Length())
	}
}

func TestTimeline_ForwardsProperties(t *testing.T) {
	t.Parallel()

	src := newSilentSource(8000, 1, 10)
	src.props[PropertyVolume] = 1
	tl := NewTimeline(src, 0)

	if !tl.SetProperty(PropertyVolume, 0.5) || src.props[PropertyVolume] != 0.5 {
		t.Error("SetProperty(Volume) not forwarded")
	}
	if tl.SetProperty("Unknown", 1) {
		t.Error("SetProperty(Unknown) = true, want false")
	}
}

func TestTimeline_CloneAndClose(t *testing.T) {
	t.Parallel()

	src := newConstantSource(8000, 1, 10, 0.5)
	tl := NewTimeline(src, 5)
	_ = readTimeline(t, tl, 4)

	c, err := tl.Clone()
	if err != nil {
		t.Fatalf("Clone() error = %v", err)
	}
	out := readTimeline(t, c, 4)
	if len(out) != 15 || out[4] != 0 || out[5] != 0.5 {
		t.Errorf("clone produced %d frames (%v, %v), want 15 with the delay", len(out), out[4], out[5])
	}

	if err := tl.Close(); err != nil || !src.isClosed() {
		t.Errorf("Close() = %v, source closed %v", err, src.isClosed())
	}
}

func TestTimeline_InvalidDstSize(t *testing.T) {
	t.Parallel()

	tl := NewTimeline(newSilentSource(8000, 2, 10), 4)
	if _, err := tl.Read(make([]float32, 3)); !errors.Is(err, ErrInvalidDstSize) {
		t.Errorf("Read() error = %v, want ErrInvalidDstSize", err)
	}
}
