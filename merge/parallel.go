// SPDX-License-Identifier: EPL-2.0

package merge

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// mixParallel mixes every stream on its own goroutine. Each worker reads
// into its own scratch buffer and touches only its own bookkeeping slot;
// the accumulator is shared and guarded by mixMu. Wait is the barrier
// before the caller drains the accumulator.
//
// A primary stream error cancels the other workers between reads; frames a
// worker already read in this call are dropped with the accumulator.
func (e *Engine) mixParallel(ctx context.Context, first, frames int) error {
	eg, egCtx := errgroup.WithContext(ctx)

	write := func(offset int, samples []float32) {
		e.mixMu.Lock()
		defer e.mixMu.Unlock()

		e.mix.SetWriteOffset(offset)
		e.mix.Write(samples)
	}

	for i := range e.readers {
		e.got[i] = 0
		if e.done[i] || e.ahead[i] {
			continue
		}

		scratch := e.scratches[i]
		eg.Go(func() error {
			return e.mixStream(egCtx, i, first, frames, scratch, write)
		})
	}

	return eg.Wait()
}
