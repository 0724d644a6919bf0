// SPDX-License-Identifier: EPL-2.0

// Package wav reads and writes 16-bit PCM WAV files.
//
// # Decoding
//
// Decoder buffers the whole input and walks its RIFF chunks, so fmt and
// data may appear in any order and unknown chunks (LIST, INFO, fact, ...)
// are skipped. The returned stream is an [audio.StreamReader]:
//
//	src, err := wav.Decoder{}.Decode(file)
//	if err != nil {
//	    return err
//	}
//	buf := make([]float32, 1024*src.Channels())
//	n, err := src.Read(buf) // n frames, interleaved
//
// Seeking moves an offset into the data chunk, and Clone shares the
// buffered bytes, so both are cheap. A data chunk that runs past the end of
// the file is played up to the last whole frame.
//
// # Encoding
//
// WriteWAV16 writes a canonical 44 byte header followed by the samples and
// works on any io.Writer:
//
//	err := wav.WriteWAV16(w, 48000, 2, samples)
//
// When the length is not known up front, Encoder streams frames through
// github.com/go-audio/wav and patches the header on Close. It needs an
// io.WriteSeeker such as an *os.File:
//
//	enc, err := wav.NewEncoder(file, 48000, 2)
//	...
//	err = enc.Write(block)
//	...
//	err = enc.Close()
//
// # Errors
//
//   - ErrNotWavFile: no RIFF/WAVE signature
//   - ErrOnlyPCM16bitSupported: compressed, float, or non 16-bit data
//   - ErrUnsupportedWavLayout: malformed fmt chunk or a truncated chunk
//   - ErrUnsupportedWavChunks: fmt or data chunk missing
//   - ErrInvalidChannels: writer called with a bad channel layout
package wav
