// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"io"
	"maps"
	"slices"
	"sync"
)

// LengthUnknown is returned by Length and LengthFast when a stream cannot
// tell its duration.
const LengthUnknown = -1

// SeekResult reports what a successful SetPosition did.
type SeekResult int

const (
	// SeekTrivial means nothing buffered downstream has to be discarded:
	// the reader was already there, or the position is past the end.
	SeekTrivial SeekResult = iota
	// SeekResync means the reader moved and buffered audio is stale.
	SeekResync
)

func (r SeekResult) String() string {
	if r == SeekResync {
		return "resync"
	}
	return "trivial"
}

// StreamReader is a pull based PCM stream. Decoders, filters and the merge
// engine all implement it, so they compose by wrapping one another.
type StreamReader interface {
	// SampleRate of the produced PCM in Hz.
	SampleRate() int
	// Channels count (e.g., 1=mono, 2=stereo).
	Channels() int

	// Read fills dst with interleaved float32 samples in [-1,1] and returns
	// the number of frames written; at most len(dst)/Channels() frames are
	// produced. n > 0 may come together with an error, in which case the
	// frames are valid and the error describes what stopped the read.
	// io.EOF marks the end of the stream. (0, nil) means no audio is
	// available right now and the caller should poll again.
	Read(dst []float32) (n int, err error)

	// SetPosition seeks to frame. Unseekable streams return
	// ErrSeekUnsupported.
	SetPosition(frame int) (SeekResult, error)

	// Length in milliseconds, or LengthUnknown.
	Length() int
	// LengthFast is a cheap estimate of Length.
	LengthFast() int

	// NextSourceFrame is the source frame the next Read starts at.
	NextSourceFrame() int
	// StreamToSourceRatio is the number of source frames consumed per
	// produced frame; 1 at normal playback.
	StreamToSourceRatio() float32

	// SetProperty tunes a runtime parameter. Unknown names are ignored
	// and reported as false.
	SetProperty(name string, value float32) bool

	// Clone returns an independent copy positioned at the start.
	Clone() (StreamReader, error)

	// Close releases any resources.
	Close() error
}

// Property names understood by the filters in this package.
const (
	// PropertyRate is the playback speed handled by Resampler (1 = normal).
	PropertyRate = "Rate"
	// PropertyPan moves a stereo stream between -1 (left) and +1 (right).
	PropertyPan = "Pan"
	// PropertyVolume scales the amplitude linearly.
	PropertyVolume = "Volume"
)

// Decoder constructs a StreamReader from an input reader.
type Decoder interface {
	Decode(r io.Reader) (StreamReader, error)
}

// Registry for decoders by format key (e.g., "wav", "mp3", "ogg").
type Registry struct {
	codecs map[string]Decoder

	mtx *sync.Mutex
}

func NewRegistry() *Registry {
	return &Registry{
		codecs: make(map[string]Decoder),
		mtx:    &sync.Mutex{},
	}
}

func (r *Registry) Register(format string, d Decoder) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	r.codecs[format] = d
}

func (r *Registry) Get(format string) (Decoder, bool) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	d, ok := r.codecs[format]
	return d, ok
}

// Formats lists the registered format keys in sorted order.
func (r *Registry) Formats() []string {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	return slices.Sorted(maps.Keys(r.codecs))
}
