// SPDX-License-Identifier: EPL-2.0

package audio_test

import (
	"context"
	"fmt"
	"io"

	"github.com/ik5/audmix/audio"
	"github.com/ik5/audmix/internal/audiotest"
)

// Example_resampler demonstrates how to use the Resampler to change sample rates.
func Example_resampler() {
	// Create a test audio source at 44.1kHz
	source := audiotest.Sine(44100, 1, 44100, 440.0) // 1 second, 440Hz tone

	// Create a resampler to convert to 16kHz
	resampler := audio.NewResampler(source, 16000)

	fmt.Printf("Output sample rate: %d Hz\n", resampler.SampleRate())
	fmt.Printf("Channels: %d\n", resampler.Channels())

	buf := make([]float32, 4096)
	totalFrames := 0

	for {
		n, err := resampler.Read(buf)
		totalFrames += n

		if err == io.EOF {
			break
		}
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
	}

	fmt.Printf("Total frames read: %d\n", totalFrames)
	// Output:
	// Output sample rate: 16000 Hz
	// Channels: 1
	// Total frames read: 16000
}

// Example_mixBuffer sums two mono streams into one stereo block.
func Example_mixBuffer() {
	var mix audio.MixBuffer

	left := []float32{0.5, 0.5, 0.5}
	right := []float32{0.25, 0.25, 0.25}

	mix.SetWriteOffset(0)
	mix.WriteStrided(left, len(left), 1, 2)
	mix.SetWriteOffset(1)
	mix.WriteStrided(right, len(right), 1, 2)

	// A second pass on the left channel accumulates.
	mix.SetWriteOffset(0)
	mix.WriteStrided(left, len(left), 1, 2)

	out := make([]int16, mix.Size())
	n := mix.ReadInt16(out)

	fmt.Println(out[:n])
	fmt.Println("used after read:", mix.Size())
	// Output:
	// [32767 8192 32767 8192 32767 8192]
	// used after read: 0
}

// Example_pan places a mono source on the right of a stereo mix.
func Example_pan() {
	source := audiotest.Constant(8000, 1, 100, 0.5)

	pan, err := audio.NewPan(source, 2)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	pan.SetProperty(audio.PropertyPan, 1)

	buf := make([]float32, 4)
	n, _ := pan.Read(buf)

	fmt.Printf("frames: %d\n", n)
	fmt.Printf("left: %.2f right: %.2f\n", buf[0], buf[1])
	// Output:
	// frames: 2
	// left: 0.00 right: 0.50
}

// Example_prefetcher decodes on a background goroutine. WithBlocking is for
// offline use; a real-time caller polls and gets (0, nil) on underrun.
func Example_prefetcher() {
	source := audiotest.Constant(8000, 2, 8000, 0.25)

	p := audio.NewPrefetcher(context.Background(), source, audio.WithBlocking(true))
	defer p.Close()

	buf := make([]float32, 2*256)
	total := 0
	for {
		n, err := p.Read(buf)
		total += n
		if err != nil {
			break
		}
	}

	fmt.Printf("frames: %d position: %d\n", total, p.NextSourceFrame())
	// Output:
	// frames: 8000 position: 8000
}

// Example_processingChain shows how to chain resampler and mono mixer.
func Example_processingChain() {
	// Start with stereo audio at 44.1kHz
	source := audiotest.Sine(44100, 2, 44100, 440.0)

	// Step 1: Resample to 8kHz
	resampled := audio.NewResampler(source, 8000)

	// Step 2: Convert to mono
	mono := audio.NewMonoMixer(resampled)

	fmt.Printf("Sample rate: %d Hz\n", mono.SampleRate())
	fmt.Printf("Channels: %d\n", mono.Channels())
	// Output:
	// Sample rate: 8000 Hz
	// Channels: 1
}
