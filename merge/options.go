// SPDX-License-Identifier: EPL-2.0

package merge

import (
	"log/slog"

	"github.com/ik5/audmix/internal/observe"
)

const (
	// DefaultTolerance is how many source frames a stream may drift from
	// the earliest one before it is held back.
	DefaultTolerance = 16

	// DefaultScratchSamples sizes the per-stream scratch buffer and so caps
	// the frames mixed per call at DefaultScratchSamples / channels.
	DefaultScratchSamples = 2048
)

// LevelTrace is below slog.LevelDebug. Per-call stream errors are logged at
// this level.
const LevelTrace = slog.LevelDebug - 4

// Option configures an [Engine] during construction.
type Option func(*Engine)

// WithTolerance sets the drift tolerance in source frames. Negative values
// are ignored.
func WithTolerance(frames int) Option {
	return func(e *Engine) {
		if frames >= 0 {
			e.tolerance = frames
		}
	}
}

// WithParallel mixes every stream on its own goroutine.
//
// When the primary stream fails, the other workers stop at their next read
// but keep what they already consumed in that call: up to the requested
// frames are read and discarded with the aborted mix. Those streams stay
// ahead until drift clamping holds them back or the next SetPosition
// realigns the group. Sequential mixing reads the primary first and leaves
// the others untouched.
func WithParallel(parallel bool) Option {
	return func(e *Engine) {
		e.parallel = parallel
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics records engine activity into m instead of the global
// instruments.
func WithMetrics(m *observe.Metrics) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithScratchSamples sets the scratch buffer size in samples.
func WithScratchSamples(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.scratchSamples = n
		}
	}
}
