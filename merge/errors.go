// SPDX-License-Identifier: EPL-2.0

package merge

import "errors"

var (
	// ErrFinished is returned by Add and Finish once Finish has run.
	ErrFinished = errors.New("merge: engine already finished")

	// ErrNotFinished is returned by Read before Finish.
	ErrNotFinished = errors.New("merge: engine not finished")
)
