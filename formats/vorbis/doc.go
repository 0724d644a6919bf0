// SPDX-License-Identifier: EPL-2.0

// Package vorbis decodes Ogg Vorbis files through
// github.com/jfreymuth/oggvorbis.
//
// Vorbis decodes straight to float32, so samples reach the caller without
// a fixed-point round trip. The decoder buffers the file, which lets the
// reader find the last granule position (the length) and seek by page:
//
//	src, err := vorbis.Decoder{}.Decode(file)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(src.Length(), "ms")
//	_, err = src.SetPosition(48000)
//
// Seeks land on the exact frame: the reader seeks to the page before the
// target and skips the remainder while decoding.
//
// Channel counts are taken from the stream header, so 5.1 files come out
// as six interleaved channels. Clone opens a second reader over the same
// bytes.
package vorbis
