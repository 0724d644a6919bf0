// SPDX-License-Identifier: EPL-2.0

// Package playback feeds a StreamReader to the sound card.
//
// The device pulls bytes from an io.Reader on its own thread. Stream is
// that reader: it turns float32 frames into little-endian int16 or float32
// PCM and never waits on a stalled source. After a few empty polls the
// rest of the request is silence, and the next request tries again.
//
//	dev, err := playback.OpenDevice(playback.DeviceConfig{
//	    SampleRate: mix.SampleRate(),
//	    Channels:   mix.Channels(),
//	})
//	if err != nil {
//	    return err
//	}
//	err = dev.Play(ctx, playback.NewStream(mix, playback.FormatInt16))
//
// Output goes through github.com/ebitengine/oto/v3.
package playback
