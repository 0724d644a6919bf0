// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"fmt"

	"github.com/ik5/audmix/utils"
)

// Timeline puts src on a play-time clock: its position counts the frames it
// produced and its ratio is always 1. A track whose speed differs from the
// rest of a mix therefore stays aligned by the time it is heard, not by
// how far into its source it is.
//
// The first delay frames are silence, after which src plays.
type Timeline struct {
	src      StreamReader
	channels int
	delay    int
	origin   int // src position at frame delay
	pos      int
}

// NewTimeline wraps src and delays it by delay frames. Negative delays are
// treated as zero.
func NewTimeline(src StreamReader, delay int) *Timeline {
	return &Timeline{
		src:      src,
		channels: src.Channels(),
		delay:    max(0, delay),
		origin:   src.NextSourceFrame(),
	}
}

func (t *Timeline) SampleRate() int { return t.src.SampleRate() }
func (t *Timeline) Channels() int   { return t.channels }
func (t *Timeline) Close() error    { return t.src.Close() }

// Delay is the number of leading silent frames.
func (t *Timeline) Delay() int { return t.delay }

func (t *Timeline) Read(dst []float32) (int, error) {
	if len(dst)%t.channels != 0 {
		return 0, ErrInvalidDstSize
	}

	if t.pos < t.delay {
		n := min(len(dst)/t.channels, t.delay-t.pos)
		clear(dst[:n*t.channels])
		t.pos += n
		return n, nil
	}

	n, err := t.src.Read(dst)
	t.pos += n
	return n, err
}

// SetPosition moves to frame of the play-time clock. Inside the delay the
// source is rewound to its start; past it the source is moved by the
// distance scaled with its ratio.
func (t *Timeline) SetPosition(frame int) (SeekResult, error) {
	frame = max(frame, 0)

	target := t.origin
	if frame > t.delay {
		target += utils.RoundHalfUp(float64(frame-t.delay) * float64(t.src.StreamToSourceRatio()))
	}

	res, err := t.src.SetPosition(target)
	if err != nil {
		return res, fmt.Errorf("timeline: %w", err)
	}

	if frame != t.pos {
		res = SeekResync
	}
	t.pos = frame
	return res, nil
}

func (t *Timeline) NextSourceFrame() int         { return t.pos }
func (t *Timeline) StreamToSourceRatio() float32 { return 1 }

func (t *Timeline) withDelay(ms int) int {
	if ms == LengthUnknown {
		return ms
	}
	return ms + utils.FramesToMillis(int64(t.delay), t.SampleRate())
}

func (t *Timeline) Length() int     { return t.withDelay(t.src.Length()) }
func (t *Timeline) LengthFast() int { return t.withDelay(t.src.LengthFast()) }

func (t *Timeline) SetProperty(name string, value float32) bool {
	return t.src.SetProperty(name, value)
}

func (t *Timeline) Clone() (StreamReader, error) {
	src, err := t.src.Clone()
	if err != nil {
		return nil, fmt.Errorf("timeline: %w", err)
	}
	return NewTimeline(src, t.delay), nil
}
