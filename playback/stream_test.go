// SPDX-License-Identifier: EPL-2.0

package playback

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/ik5/audmix/internal/audiotest"
)

var errBoom = errors.New("boom")

func quiet() StreamOption { return WithLogger(slog.New(slog.DiscardHandler)) }

func int16s(t *testing.T, b []byte) []int16 {
	t.Helper()
	if len(b)%2 != 0 {
		t.Fatalf("odd byte count %d", len(b))
	}
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[2*i:]))
	}
	return out
}

func TestFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"int16", FormatInt16, false},
		{"", FormatInt16, false},
		{"float32", FormatFloat32, false},
		{"s24", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrUnknownFormat) {
				t.Errorf("ParseFormat(%q) error = %v, want ErrUnknownFormat", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseFormat(%q) = (%v, %v), want %v", tt.in, got, err, tt.want)
		}
	}

	if FormatInt16.BytesPerSample() != 2 || FormatFloat32.BytesPerSample() != 4 {
		t.Error("unexpected BytesPerSample")
	}
	if Format(7).String() != "Format(7)" {
		t.Errorf("String() = %q", Format(7).String())
	}
}

func TestStream_Int16(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		value float32
		want  int16
	}{
		{"half", 0.5, 16384},
		{"clip high", 2, 32767},
		{"clip low", -2, -32767},
		{"silence", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := NewStream(audiotest.Constant(8000, 2, 10, tt.value), FormatInt16, quiet())
			b, err := io.ReadAll(s)
			if err != nil {
				t.Fatalf("ReadAll() error = %v", err)
			}

			got := int16s(t, b)
			if len(got) != 20 {
				t.Fatalf("got %d samples, want 20", len(got))
			}
			for i, v := range got {
				if v != tt.want {
					t.Fatalf("sample %d = %d, want %d", i, v, tt.want)
				}
			}
			if s.Err() != nil || s.SilentFrames() != 0 {
				t.Errorf("Err() = %v, SilentFrames() = %d", s.Err(), s.SilentFrames())
			}
		})
	}
}

func TestStream_Float32(t *testing.T) {
	t.Parallel()

	s := NewStream(audiotest.Constant(8000, 1, 3, 0.25), FormatFloat32, quiet())
	b, err := io.ReadAll(s)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if len(b) != 12 {
		t.Fatalf("got %d bytes, want 12", len(b))
	}
	for i := range 3 {
		if v := math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:])); v != 0.25 {
			t.Errorf("sample %d = %v, want 0.25", i, v)
		}
	}
}

func TestStream_PartialFrames(t *testing.T) {
	t.Parallel()

	want, err := io.ReadAll(NewStream(audiotest.Ramp(8000, 2, 50, 0.01), FormatInt16, quiet()))
	if err != nil {
		t.Fatal(err)
	}

	s := NewStream(audiotest.Ramp(8000, 2, 50, 0.01), FormatInt16, quiet(), WithBlockFrames(7))
	var got bytes.Buffer
	p := make([]byte, 3)
	for {
		n, err := s.Read(p)
		got.Write(p[:n])
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
	}

	if !bytes.Equal(got.Bytes(), want) {
		t.Errorf("3-byte reads produced %d bytes differing from %d bytes", got.Len(), len(want))
	}
}

func TestStream_StallPadsSilence(t *testing.T) {
	t.Parallel()

	src := audiotest.Constant(8000, 1, 4, 0.5).StallAt(2, 3)
	s := NewStream(src, FormatInt16, quiet(), WithPolls(2))

	p := make([]byte, 8)
	n, err := s.Read(p)
	if n != 8 || err != nil {
		t.Fatalf("Read() = (%d, %v), want (8, nil)", n, err)
	}
	if got := int16s(t, p); got[0] != 16384 || got[1] != 16384 || got[2] != 0 || got[3] != 0 {
		t.Errorf("samples = %v, want two frames then silence", got)
	}
	if s.SilentFrames() != 2 {
		t.Errorf("SilentFrames() = %d, want 2", s.SilentFrames())
	}

	n, err = s.Read(p)
	if n != 4 || err != nil {
		t.Fatalf("Read() after stall = (%d, %v), want (4, nil)", n, err)
	}
	if n, err := s.Read(p); n != 0 || err != io.EOF {
		t.Errorf("Read() at end = (%d, %v), want (0, io.EOF)", n, err)
	}
}

func TestStream_NoPolls(t *testing.T) {
	t.Parallel()

	src := audiotest.Constant(8000, 2, 4, 0.5).StallAt(0, 1)
	s := NewStream(src, FormatInt16, quiet(), WithPolls(0))

	p := make([]byte, 16)
	n, err := s.Read(p)
	if n != 16 || err != nil {
		t.Fatalf("Read() = (%d, %v), want (16, nil)", n, err)
	}
	if got := int16s(t, p); got[0] != 0 || got[7] != 0 {
		t.Errorf("samples = %v, want silence", got)
	}
	if src.Reads() != 1 {
		t.Errorf("source read %d times, want 1", src.Reads())
	}
}

func TestStream_SourceError(t *testing.T) {
	t.Parallel()

	s := NewStream(audiotest.Constant(8000, 1, 10, 0.5).FailAt(2, errBoom), FormatInt16, quiet())

	p := make([]byte, 8)
	if n, err := s.Read(p); n != 4 || err != nil {
		t.Fatalf("Read() = (%d, %v), want (4, nil)", n, err)
	}
	if n, err := s.Read(p); n != 0 || err != io.EOF {
		t.Errorf("Read() after failure = (%d, %v), want (0, io.EOF)", n, err)
	}
	if !errors.Is(s.Err(), errBoom) {
		t.Errorf("Err() = %v, want %v", s.Err(), errBoom)
	}
}

func TestStream_ReadAllocs(t *testing.T) {
	s := NewStream(audiotest.Silent(48000, 2, 1<<30), FormatInt16, quiet())
	p := make([]byte, 4096)

	allocs := testing.AllocsPerRun(100, func() {
		if _, err := s.Read(p); err != nil {
			t.Fatal(err)
		}
	})
	if allocs != 0 {
		t.Errorf("Read() allocates %v times per call", allocs)
	}
}

func BenchmarkStream_Read(b *testing.B) {
	s := NewStream(audiotest.Sine(48000, 2, 1<<30, 440), FormatInt16, quiet())
	p := make([]byte, 4096)

	b.ReportAllocs()
	for b.Loop() {
		if _, err := s.Read(p); err != nil {
			b.Fatal(err)
		}
	}
}
