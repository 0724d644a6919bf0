// SPDX-License-Identifier: EPL-2.0

// Package mp3 decodes MP3 files through github.com/hajimehoshi/go-mp3.
//
// The decoder buffers the whole file so go-mp3 can index its frames. The
// returned [audio.StreamReader] therefore knows its length, seeks, and
// clones by opening a second decoder over the same bytes:
//
//	src, err := mp3.Decoder{}.Decode(file)
//	if err != nil {
//	    return err
//	}
//	_, err = src.SetPosition(44100) // one second in at 44.1 kHz
//
// # Output Format
//
//   - float32 samples in [-1, 1]
//   - always 2 channels; go-mp3 duplicates mono streams
//   - the sample rate of the first frame
//
// Seeking is exact to the frame: positions map to byte offsets of the
// decoded PCM, four bytes per frame.
//
// # Limitations
//
//   - decoding only
//   - Length is LengthUnknown when go-mp3 could not index the file
package mp3
