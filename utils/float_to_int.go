// SPDX-License-Identifier: EPL-2.0

package utils

import "math"

// Float32ToInt16 clamps x to [-1, 1], scales it by 32767 and rounds to the
// nearest integer. Out of range input saturates instead of wrapping.
func Float32ToInt16(x float32) int16 {
	if x > 1 {
		x = 1
	} else if x < -1 {
		x = -1
	}

	return int16(math.Round(float64(x) * math.MaxInt16))
}

// Int16ToFloat32 is the inverse of the 16-bit PCM decoders: v / 32768.
func Int16ToFloat32(v int16) float32 {
	return float32(v) / 32768.0
}
