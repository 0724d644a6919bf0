// SPDX-License-Identifier: EPL-2.0

// Package audmix mixes independently decoded audio streams into one
// time-aligned output.
//
// Every source implements [audio.StreamReader]: it reports its sample rate,
// channel count and position in source frames, can seek and clone itself,
// and reads interleaved float32 frames. Filters in the audio package wrap a
// reader and are readers themselves, so a track is built as a chain:
//
//	src, _ := vorbis.Decoder{}.Decode(file)
//	pre := audio.NewPrefetcher(ctx, src)
//	pan, _ := audio.NewPan(pre, 2)
//	pan.SetProperty(audio.PropertyPan, -0.5)
//
// # Mixing
//
// A [merge.Engine] owns any number of such chains. After Finish it converts
// them to a common rate and channel count and every Read sums the frames
// that belong to the same point in time. Streams that run ahead are held
// back, stalled streams are padded with silence, and a failing stream other
// than the first only loses its own contribution.
//
//	mix, err := audmix.Mix(44100, nil, music, voice)
//	if err != nil {
//	    return err
//	}
//	defer mix.Close()
//
// # Output
//
// [RenderWAV] streams any reader into a 16-bit WAV file and [RenderInt16]
// collects it in memory. The playback package feeds a reader to the sound
// card through oto.
//
// # Supported Formats
//
//   - WAV (PCM 16-bit) via formats/wav
//   - MP3 via formats/mp3
//   - Ogg Vorbis via formats/vorbis
//   - AIFF (PCM 16-bit) via formats/aiff
//
// [ResampleToMono16] keeps the simple one-file case short:
//
//	samples, rate, _ := audmix.ResampleToMono16(src, 8000, 4096)
package audmix
