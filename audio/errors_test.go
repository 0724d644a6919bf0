package audio

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrInvalidDstSize(t *testing.T) {
	t.Parallel()

	expectedMsg := "dst size must be multiple of channels"
	if ErrInvalidDstSize.Error() != expectedMsg {
		t.Errorf("ErrInvalidDstSize.Error() = %q, want %q", ErrInvalidDstSize.Error(), expectedMsg)
	}
}

func TestSentinelErrors_Distinct(t *testing.T) {
	t.Parallel()

	errs := []error{ErrInvalidDstSize, ErrSeekUnsupported, ErrUnsupportedChannels, ErrInvalidRate}
	for i, a := range errs {
		for j, b := range errs {
			if i != j && errors.Is(a, b) {
				t.Errorf("errors.Is(%v, %v) = true, want false", a, b)
			}
		}
	}
}

func TestSentinelErrors_Wrapping(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("decoder: %w", ErrSeekUnsupported)
	if !errors.Is(wrapped, ErrSeekUnsupported) {
		t.Error("errors.Is() failed for wrapped ErrSeekUnsupported")
	}

	joined := errors.Join(ErrInvalidDstSize, errors.New("additional context"))
	if !errors.Is(joined, ErrInvalidDstSize) {
		t.Error("errors.Is() failed for joined ErrInvalidDstSize")
	}
}

func TestErrUnsupportedChannels_FromNewPan(t *testing.T) {
	t.Parallel()

	_, err := NewPan(newSilentSource(8000, 2, 10), 1)
	if !errors.Is(err, ErrUnsupportedChannels) {
		t.Errorf("NewPan(stereo, 1) error = %v, want ErrUnsupportedChannels", err)
	}
}
