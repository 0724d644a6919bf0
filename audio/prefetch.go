// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ik5/audmix/internal/observe"
	"github.com/ik5/audmix/utils"
)

const (
	defaultPrefetchChunkFrames = 1024
	defaultPrefetchDepth       = 8

	// prefetchStallBackoff is how long the decode goroutine waits when its
	// source has nothing to give.
	prefetchStallBackoff = time.Millisecond
)

// PrefetchOption configures a Prefetcher.
type PrefetchOption func(*Prefetcher)

// WithChunkFrames sets how many frames the decode goroutine reads at a time.
func WithChunkFrames(n int) PrefetchOption {
	return func(p *Prefetcher) {
		if n > 0 {
			p.chunkFrames = n
		}
	}
}

// WithDepth sets how many decoded chunks may wait in the queue.
func WithDepth(n int) PrefetchOption {
	return func(p *Prefetcher) {
		if n > 0 {
			p.depth = n
		}
	}
}

// WithBlocking makes Read wait for decoded audio instead of returning
// (0, nil) on underrun. Use it for offline rendering only.
func WithBlocking(b bool) PrefetchOption {
	return func(p *Prefetcher) {
		p.blocking = b
	}
}

// WithPrefetchMetrics records underruns into m.
func WithPrefetchMetrics(m *observe.Metrics) PrefetchOption {
	return func(p *Prefetcher) {
		p.metrics = m
	}
}

// chunk is one block of decoded audio together with the source position
// it was decoded from.
type chunk struct {
	data   []float32
	frames int
	start  int
	ratio  float32
	err    error
}

// Prefetcher decodes src on its own goroutine and hands the result to Read
// without blocking, so a slow decoder never stalls the audio callback.
//
// Read, SetPosition, Clone and Close must be called from one goroutine at a
// time (the owner). SetProperty, Length and LengthFast may be called from
// any goroutine.
type Prefetcher struct {
	src         StreamReader
	channels    int
	parent      context.Context
	chunkFrames int
	depth       int
	blocking    bool
	metrics     *observe.Metrics

	// srcMu serializes access to src between the decode goroutine and
	// SetProperty / Length callers.
	srcMu sync.Mutex

	queue  chan chunk
	free   chan []float32
	cancel context.CancelFunc
	done   chan struct{}
	closed bool

	// Owner side state.
	cur    chunk
	curPos int
	pos    int
	ratio  float32
}

// NewPrefetcher starts decoding src in the background. The goroutine stops
// when ctx is cancelled or Close is called.
func NewPrefetcher(ctx context.Context, src StreamReader, opts ...PrefetchOption) *Prefetcher {
	p := &Prefetcher{
		src:         src,
		channels:    src.Channels(),
		parent:      ctx,
		chunkFrames: defaultPrefetchChunkFrames,
		depth:       defaultPrefetchDepth,
		metrics:     observe.DefaultMetrics(),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.free = make(chan []float32, p.depth+2)
	p.reset()
	p.start()

	return p
}

func (p *Prefetcher) SampleRate() int { return p.src.SampleRate() }
func (p *Prefetcher) Channels() int   { return p.channels }

func (p *Prefetcher) start() {
	ctx, cancel := context.WithCancel(p.parent)
	p.cancel = cancel
	p.queue = make(chan chunk, p.depth)
	p.done = make(chan struct{})
	go p.run(ctx, p.queue, p.done)
}

// stop cancels the decode goroutine and waits for it to exit.
func (p *Prefetcher) stop() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
	p.cancel = nil
}

// reset drops everything buffered and resynchronizes with src. The decode
// goroutine must not be running.
func (p *Prefetcher) reset() {
	if p.queue != nil {
	drain:
		for {
			select {
			case c := <-p.queue:
				p.recycle(c.data)
			default:
				break drain
			}
		}
	}
	p.recycle(p.cur.data)
	p.cur = chunk{}
	p.curPos = 0

	p.srcMu.Lock()
	p.pos = p.src.NextSourceFrame()
	p.ratio = p.src.StreamToSourceRatio()
	p.srcMu.Unlock()
}

func (p *Prefetcher) buffer() []float32 {
	select {
	case b := <-p.free:
		return b
	default:
		return make([]float32, p.chunkFrames*p.channels)
	}
}

func (p *Prefetcher) recycle(b []float32) {
	if b == nil {
		return
	}
	select {
	case p.free <- b:
	default:
	}
}

func (p *Prefetcher) run(ctx context.Context, queue chan<- chunk, done chan<- struct{}) {
	defer close(done)

	for {
		buf := p.buffer()

		p.srcMu.Lock()
		start := p.src.NextSourceFrame()
		ratio := p.src.StreamToSourceRatio()
		n, err := p.src.Read(buf)
		p.srcMu.Unlock()

		if n == 0 && err == nil {
			p.recycle(buf)
			select {
			case <-ctx.Done():
				return
			case <-time.After(prefetchStallBackoff):
			}
			continue
		}

		c := chunk{data: buf, frames: n, start: start, ratio: ratio, err: err}
		select {
		case queue <- c:
		case <-ctx.Done():
			return
		}

		if err != nil {
			return
		}
	}
}

// receive fetches the next decoded chunk. In blocking mode it waits until
// one arrives or the decode goroutine exits.
func (p *Prefetcher) receive() (chunk, bool) {
	select {
	case c := <-p.queue:
		return c, true
	default:
	}
	if !p.blocking || p.cancel == nil {
		return chunk{}, false
	}

	select {
	case c := <-p.queue:
		return c, true
	case <-p.done:
		// The goroutine may have queued its last chunk before exiting.
		select {
		case c := <-p.queue:
			return c, true
		default:
			return chunk{}, false
		}
	}
}

// Read copies decoded frames into dst. Without WithBlocking it returns
// (0, nil) when nothing is decoded yet.
func (p *Prefetcher) Read(dst []float32) (int, error) {
	if len(dst)%p.channels != 0 {
		return 0, ErrInvalidDstSize
	}

	want := len(dst) / p.channels
	written := 0

	for written < want {
		if p.curPos >= p.cur.frames {
			if p.cur.err != nil {
				// Deliver buffered frames first, the error on the next call.
				if written > 0 {
					break
				}
				return 0, p.cur.err
			}

			c, ok := p.receive()
			if !ok {
				break
			}
			p.recycle(p.cur.data)
			p.cur, p.curPos = c, 0
			p.pos, p.ratio = c.start, c.ratio
			continue
		}

		n := copy(dst[written*p.channels:], p.cur.data[p.curPos*p.channels:p.cur.frames*p.channels]) / p.channels
		p.curPos += n
		written += n
		p.pos = p.cur.start + utils.RoundHalfUp(float64(p.curPos)*float64(p.cur.ratio))
	}

	if written == 0 && p.metrics != nil {
		p.metrics.PrefetchUnderruns.Add(context.Background(), 1)
	}
	return written, nil
}

// SetPosition stops the decode goroutine, seeks src, drops buffered audio
// and restarts decoding from the new position.
func (p *Prefetcher) SetPosition(frame int) (SeekResult, error) {
	p.stop()

	p.srcMu.Lock()
	res, err := p.src.SetPosition(frame)
	p.srcMu.Unlock()

	p.reset()
	if !p.closed {
		p.start()
	}
	if err != nil {
		return res, fmt.Errorf("prefetch: %w", err)
	}
	return res, nil
}

func (p *Prefetcher) NextSourceFrame() int          { return p.pos }
func (p *Prefetcher) StreamToSourceRatio() float32 { return p.ratio }

func (p *Prefetcher) Length() int {
	p.srcMu.Lock()
	defer p.srcMu.Unlock()
	return p.src.Length()
}

func (p *Prefetcher) LengthFast() int {
	p.srcMu.Lock()
	defer p.srcMu.Unlock()
	return p.src.LengthFast()
}

// SetProperty applies the property to src between two decoded chunks.
// Audio already buffered keeps the old setting.
func (p *Prefetcher) SetProperty(name string, value float32) bool {
	p.srcMu.Lock()
	defer p.srcMu.Unlock()
	return p.src.SetProperty(name, value)
}

// Clone returns a new Prefetcher with its own decode goroutine over a clone
// of src.
func (p *Prefetcher) Clone() (StreamReader, error) {
	p.srcMu.Lock()
	src, err := p.src.Clone()
	p.srcMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("prefetch: %w", err)
	}

	return NewPrefetcher(p.parent, src,
		WithChunkFrames(p.chunkFrames),
		WithDepth(p.depth),
		WithBlocking(p.blocking),
		WithPrefetchMetrics(p.metrics),
	), nil
}

// Close stops and joins the decode goroutine before closing src.
func (p *Prefetcher) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	p.stop()

	err := p.src.Close()
	if err != nil {
		return fmt.Errorf("%w", err)
	}
	return nil
}
