// SPDX-License-Identifier: EPL-2.0

package aiff

import "errors"

var (
	// ErrNotAiffFile is returned when the FORM header does not name AIFF.
	ErrNotAiffFile = errors.New("not an AIFF file")

	// ErrOnlyPCM16bitSupported is returned for sample sizes other than 16 bits.
	ErrOnlyPCM16bitSupported = errors.New("only 16-bit PCM AIFF is supported")

	// ErrUnsupportedAiffLayout is returned when the COMM chunk declares no
	// channels or no sample rate.
	ErrUnsupportedAiffLayout = errors.New("unsupported AIFF layout")
)
