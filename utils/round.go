// SPDX-License-Identifier: EPL-2.0

package utils

import "math"

// RoundHalfUp rounds x to the nearest integer, ties towards positive
// infinity. Positions are advanced with it so repeated conversions of
// frames*ratio do not drift the way truncation would.
//
// Negative values round the same way (-2.5 -> -2), which keeps reverse
// movement symmetric with forward movement.
func RoundHalfUp(x float64) int {
	return int(math.Floor(x + 0.5))
}

// FramesToMillis converts a frame count at rate to whole milliseconds.
func FramesToMillis(frames int64, rate int) int {
	if rate <= 0 {
		return 0
	}
	return int(frames * 1000 / int64(rate))
}
