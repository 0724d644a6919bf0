// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"fmt"
)

// Pan adapts the channel count of src for a merge group and applies linear
// pan and volume. Mono sources are spread to stereo; sources that already
// have the target channel count pass through.
type Pan struct {
	src      StreamReader
	channels int
	pan      float32
	volume   float32
}

// NewPan wraps src so it produces channels channels. Only mono to stereo
// upmixing and same-count passthrough are defined.
func NewPan(src StreamReader, channels int) (*Pan, error) {
	in := src.Channels()
	if channels < 1 || (in != channels && !(in == 1 && channels == 2)) {
		return nil, fmt.Errorf("%w: %d to %d channels", ErrUnsupportedChannels, in, channels)
	}

	return &Pan{
		src:      src,
		channels: channels,
		volume:   1,
	}, nil
}

func (p *Pan) SampleRate() int { return p.src.SampleRate() }
func (p *Pan) Channels() int   { return p.channels }

func (p *Pan) Close() error {
	err := p.src.Close()
	if err != nil {
		return fmt.Errorf("%w", err)
	}

	return nil
}

// gains returns the left and right multipliers. For anything but stereo
// output only the volume applies and both values are equal.
func (p *Pan) gains() (float32, float32) {
	if p.channels != 2 {
		return p.volume, p.volume
	}
	return p.volume * min(1, 1-p.pan), p.volume * min(1, 1+p.pan)
}

func (p *Pan) Read(dst []float32) (int, error) {
	if len(dst)%p.channels != 0 {
		return 0, ErrInvalidDstSize
	}

	frames := len(dst) / p.channels
	left, right := p.gains()

	if p.src.Channels() == 1 && p.channels == 2 {
		// Read mono into the front of dst and spread backwards in place so
		// no sample is overwritten before it is read.
		n, err := p.src.Read(dst[:frames])
		for i := n - 1; i >= 0; i-- {
			s := dst[i]
			dst[2*i] = s * left
			dst[2*i+1] = s * right
		}
		return n, err
	}

	n, err := p.src.Read(dst)
	if left == 1 && right == 1 {
		return n, err
	}

	samples := dst[:n*p.channels]
	if p.channels == 2 {
		for i := 0; i+1 < len(samples); i += 2 {
			samples[i] *= left
			samples[i+1] *= right
		}
		return n, err
	}

	for i := range samples {
		samples[i] *= left
	}
	return n, err
}

func (p *Pan) SetPosition(frame int) (SeekResult, error) { return p.src.SetPosition(frame) }
func (p *Pan) NextSourceFrame() int                       { return p.src.NextSourceFrame() }
func (p *Pan) StreamToSourceRatio() float32               { return p.src.StreamToSourceRatio() }
func (p *Pan) Length() int                                { return p.src.Length() }
func (p *Pan) LengthFast() int                            { return p.src.LengthFast() }

// SetProperty handles PropertyPan and PropertyVolume and forwards the rest.
func (p *Pan) SetProperty(name string, value float32) bool {
	switch name {
	case PropertyPan:
		p.pan = max(-1, min(1, value))
		return true
	case PropertyVolume:
		if value < 0 {
			return false
		}
		p.volume = value
		return true
	}
	return p.src.SetProperty(name, value)
}

func (p *Pan) Clone() (StreamReader, error) {
	src, err := p.src.Clone()
	if err != nil {
		return nil, fmt.Errorf("pan: %w", err)
	}

	return &Pan{
		src:      src,
		channels: p.channels,
		pan:      p.pan,
		volume:   p.volume,
	}, nil
}
