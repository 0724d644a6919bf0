// SPDX-License-Identifier: EPL-2.0

// Package merge mixes several audio streams into one time-aligned stream.
//
// An [Engine] owns a set of [audio.StreamReader] values. After Finish has
// resolved a common rate and channel count, every Read pulls from each
// stream, sums the result in an [audio.MixBuffer] and hands out the mix:
//
//	e := merge.New(merge.WithTolerance(16))
//	_ = e.Add(music)
//	_ = e.Add(voice)
//	if err := e.Finish(48000); err != nil {
//		return err
//	}
//	n, err := e.Read(buf)
//
// # Alignment
//
// Every stream reports the source frame its next Read starts at. The engine
// follows the earliest stream. When that position jumps (a seek, a rate
// change, a stream that stalled) Read returns (0, nil) once and adopts the
// new position. Streams more than the tolerance ahead sit out until the
// earliest catches up, and the call is shortened so it does not overshoot.
//
// # Errors
//
// The first stream added is the primary stream. Its read errors abort the
// call and are returned unchanged. Errors of other streams cut only their own
// contribution short and are logged at [LevelTrace].
//
// # Concurrency
//
// With [WithParallel] each stream is read on its own goroutine and summed
// into the shared accumulator under a lock. Engine methods are serialized,
// so a control goroutine may seek or set properties while the audio
// callback reads.
//
// An Engine is itself an [audio.StreamReader], so engines nest.
package merge
