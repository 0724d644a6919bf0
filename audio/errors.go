// SPDX-License-Identifier: EPL-2.0

package audio

import "errors"

var (
	ErrInvalidDstSize = errors.New("dst size must be multiple of channels")

	// ErrSeekUnsupported is returned by SetPosition on streams that cannot seek.
	ErrSeekUnsupported = errors.New("stream does not support seeking")

	// ErrUnsupportedChannels is returned when a channel conversion is not defined.
	ErrUnsupportedChannels = errors.New("unsupported channel conversion")

	// ErrInvalidRate is returned for non-positive sample rates.
	ErrInvalidRate = errors.New("sample rate must be positive")
)
