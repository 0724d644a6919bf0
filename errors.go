// SPDX-License-Identifier: EPL-2.0

package audmix

import "errors"

// ErrStalled is returned when a source keeps returning no frames and no
// error while being rendered.
var ErrStalled = errors.New("source stalled")
