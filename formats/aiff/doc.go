// SPDX-License-Identifier: EPL-2.0

// Package aiff provides AIFF (Audio Interchange File Format) decoding.
//
// This package uses github.com/go-audio/aiff to decode AIFF files, Apple's
// big-endian PCM container.
//
// # Supported Formats
//
//   - PCM 16-bit
//   - any channel count from the COMM chunk
//   - any sample rate
//
// # Decoding AIFF Files
//
//	src, err := aiff.Decoder{}.Decode(file)
//	if err != nil {
//	    return err
//	}
//	buf := make([]float32, 1024*src.Channels())
//	n, err := src.Read(buf)
//
// The input is buffered once. Length comes from the frame count in the COMM
// chunk.
//
// # Seeking
//
// The go-audio decoder only reads forward. A seek ahead decodes and drops
// the frames in between; a seek backwards opens a new decoder over the
// buffered file first. Both report SeekResync. Seeking is therefore linear
// in the distance, which is fine for the short files AIFF is mostly used
// for but worth knowing for long ones.
//
// # Errors
//
//   - ErrNotAiffFile: no FORM/AIFF header
//   - ErrOnlyPCM16bitSupported: any other bit depth
//   - ErrUnsupportedAiffLayout: missing or invalid COMM data
package aiff
