// SPDX-License-Identifier: EPL-2.0

// Package audio provides the streaming primitives of the mixer.
//
// This package contains the core building blocks:
//   - StreamReader, the pull contract every decoder, filter and merge
//     engine implements
//   - MixBuffer, the additive accumulator streams are summed into
//   - Resampler, Pan and MonoMixer filters
//   - Prefetcher, which moves decoding onto its own goroutine
//   - Format registry for decoder registration
//
// # StreamReader
//
// A StreamReader produces interleaved float32 frames and reports where in
// its source it is:
//
//	n, err := r.Read(buf)        // frames, not samples
//	pos := r.NextSourceFrame()   // source frame the next Read starts at
//	ratio := r.StreamToSourceRatio()
//
// Read follows the io.Reader convention: n > 0 may come with an error, and
// io.EOF ends the stream. A (0, nil) result means nothing is available
// right now; real-time callers poll again on the next callback instead of
// waiting.
//
// SetPosition reports SeekResync when the reader moved and audio buffered
// downstream is stale, SeekTrivial when nothing needs discarding, and
// ErrSeekUnsupported for streams that cannot seek.
//
// Filters wrap an inner StreamReader and own it: closing the filter closes
// the inner reader. Clone copies the whole chain with independent position
// state; a reader is never shared between two owners.
//
// # Mixing
//
// MixBuffer adds into whatever it already holds:
//
//	var mix audio.MixBuffer
//	mix.SetWriteOffset(0)
//	mix.WriteStrided(left, n, 1, 2)  // every other sample
//	mix.SetWriteOffset(1)
//	mix.WriteStrided(right, n, 1, 2)
//	mix.ReadInt16(pcm)               // clamps, rounds, drains
//
// # Filters
//
// Resampler converts to a target rate with cubic interpolation and handles
// the "Rate" property (playback speed). Positions it reports are in frames
// of the target rate so streams resampled to one rate share a time base.
//
// Pan spreads mono to stereo and applies the "Pan" and "Volume" properties.
// Properties a filter does not know are forwarded to the reader it wraps.
//
// MonoMixer converts multi-channel audio to mono by averaging.
//
// # Prefetching
//
// Prefetcher runs one decode goroutine per source:
//
//	p := audio.NewPrefetcher(ctx, decoder)
//	defer p.Close() // joins the goroutine, then closes decoder
//
// Its Read never blocks unless WithBlocking is set, which suits offline
// rendering only.
//
// # Format Registry
//
//	registry := audio.NewRegistry()
//	registry.Register("wav", wav.Decoder{})
//	decoder, _ := registry.Get("wav")
//
// # Sample Format
//
// Audio samples are represented as float32 in the range [-1.0, 1.0]. Sums
// may leave that range; conversion to 16-bit PCM saturates instead of
// wrapping.
package audio
