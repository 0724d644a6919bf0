// SPDX-License-Identifier: EPL-2.0

package playback

import "errors"

var (
	ErrUnknownFormat  = errors.New("unknown sample format")
	ErrInvalidDevice  = errors.New("invalid device parameters")
	ErrFormatMismatch = errors.New("stream does not match device")
)
