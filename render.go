// SPDX-License-Identifier: EPL-2.0

package audmix

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ik5/audmix/audio"
	"github.com/ik5/audmix/formats/wav"
	"github.com/ik5/audmix/merge"
)

// MaxStalls is how many empty reads in a row a render accepts before it
// gives up with ErrStalled. An engine returns a few of them around every
// seek and drift correction.
const MaxStalls = 1000

// ResampleToMono16 resamples src to targetRate, averages its channels and
// collects the result as 16-bit PCM. bufferSize is the read size in
// samples.
//
//	src, _ := wav.Decoder{}.Decode(file)
//	pcm16, rate, err := audmix.ResampleToMono16(src, 8000, 4096)
func ResampleToMono16(src audio.StreamReader, targetRate int, bufferSize int) ([]int16, int, error) {
	if targetRate <= 0 {
		return nil, 0, fmt.Errorf("%w: %d", audio.ErrInvalidRate, targetRate)
	}

	mono := audio.NewMonoMixer(audio.NewResampler(src, targetRate))
	pcm16, err := RenderInt16(mono, max(1, bufferSize))
	return pcm16, targetRate, err
}

// RenderInt16 reads src to the end and returns its interleaved samples as
// 16-bit PCM. bufferFrames is the size of a single read.
func RenderInt16(src audio.StreamReader, bufferFrames int) ([]int16, error) {
	pcm16 := make([]int16, 0, src.SampleRate()*src.Channels())
	_, err := render(context.Background(), src, bufferFrames, func(block []int16) error {
		pcm16 = append(pcm16, block...)
		return nil
	})
	return pcm16, err
}

// RenderWAV streams src into a 16-bit PCM WAV file until src ends or ctx is
// done. It returns the number of frames written. The file is finalized in
// both cases.
func RenderWAV(ctx context.Context, ws io.WriteSeeker, src audio.StreamReader, bufferFrames int) (int64, error) {
	enc, err := wav.NewEncoder(ws, src.SampleRate(), src.Channels())
	if err != nil {
		return 0, err
	}

	frames, err := render(ctx, src, bufferFrames, enc.Write)
	if cerr := enc.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("finalizing wav: %w", cerr)
	}
	return frames, err
}

// Mix adds readers to a new engine and finishes it at preferredRate. On
// error every reader is closed.
func Mix(preferredRate int, opts []merge.Option, readers ...audio.StreamReader) (*merge.Engine, error) {
	e := merge.New(opts...)
	for i, r := range readers {
		if err := e.Add(r); err != nil {
			return nil, errors.Join(err, closeAll(readers[i:]), e.Close())
		}
	}
	if err := e.Finish(preferredRate); err != nil {
		return nil, errors.Join(err, e.Close())
	}
	return e, nil
}

func closeAll(readers []audio.StreamReader) error {
	var errs []error
	for _, r := range readers {
		errs = append(errs, r.Close())
	}
	return errors.Join(errs...)
}

// render pulls src through a MixBuffer and hands every converted block to
// emit.
func render(ctx context.Context, src audio.StreamReader, bufferFrames int, emit func([]int16) error) (int64, error) {
	channels := src.Channels()
	samples := max(1, bufferFrames) * channels

	buf := make([]float32, samples)
	pcm := make([]int16, samples)
	mix := audio.NewMixBuffer(samples)

	var frames int64
	stalls := 0
	for {
		if err := ctx.Err(); err != nil {
			return frames, err
		}

		n, err := src.Read(buf)
		if n > 0 {
			stalls = 0
			mix.Reset()
			mix.Write(buf[:n*channels])
			mix.ReadInt16(pcm)
			if werr := emit(pcm[:n*channels]); werr != nil {
				return frames, werr
			}
			frames += int64(n)
		}

		switch {
		case errors.Is(err, io.EOF):
			return frames, nil
		case err != nil:
			return frames, err
		case n == 0:
			stalls++
			if stalls > MaxStalls {
				return frames, fmt.Errorf("%w after %d frames", ErrStalled, frames)
			}
		}
	}
}
