// Package softdecoder is a deterministic software stand-in for a platform
// video decode accelerator. It honors the full asynchronous decoder
// contract: every callback is delivered on the event loop, input is
// consumed in submission order, and pictures wait for free output buffers.
package softdecoder

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/user/decodebench/pkg/eventloop"
	"github.com/user/decodebench/pkg/ports"
)

// defaultBufferCount is how many output buffers a decoder requests when the
// first picture is produced.
const defaultBufferCount = 4

// Platform models the fixed decode capacity of one device. Decoders acquire
// a session at Initialize and release it at Destroy; initialization beyond
// the capacity fails with ErrInsufficientResources.
type Platform struct {
	mu       sync.Mutex
	capacity int
	active   int
}

// NewPlatform creates a platform able to host capacity concurrent decoders.
// A non-positive capacity means unlimited.
func NewPlatform(capacity int) *Platform {
	return &Platform{capacity: capacity}
}

func (p *Platform) acquire() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.capacity > 0 && p.active >= p.capacity {
		return fmt.Errorf("softdecoder: %d sessions active: %w", p.active, ports.ErrInsufficientResources)
	}
	p.active++
	return nil
}

func (p *Platform) release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active > 0 {
		p.active--
	}
}

// Active returns the number of live decoder sessions.
func (p *Platform) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Options tunes one decoder instance.
type Options struct {
	// Dims is the output picture size the decoder reports.
	Dims ports.Dimension

	// Latency delays each unit's processing, simulating hardware decode
	// time. Zero processes on the next loop turn.
	Latency time.Duration

	// BufferCount overrides how many output buffers are requested.
	BufferCount int

	// ErrorAfterUnits, when positive, reports a platform failure while
	// processing the Nth unit. Used to exercise error paths.
	ErrorAfterUnits int

	// Logger receives per-unit debug output. Nil disables it.
	Logger ports.Logger
}

// Factory returns a decoder constructor bound to this platform, suitable
// for handing to a decode driver.
func (p *Platform) Factory(loop *eventloop.Loop, opts Options) func(ports.DecoderClient) (ports.Decoder, error) {
	return func(client ports.DecoderClient) (ports.Decoder, error) {
		return newDecoder(p, loop, client, opts), nil
	}
}

type pendingPicture struct {
	unitID int32
}

// Decoder simulates one hardware decode session. All fields past the
// constructor are touched only from the event loop goroutine.
type Decoder struct {
	id       string
	platform *Platform
	loop     *eventloop.Loop
	client   ports.DecoderClient
	opts     Options

	codec     ports.Codec
	acquired  bool
	destroyed bool
	failed    bool
	provided  bool
	flushing  bool

	input     []ports.BitstreamUnit
	free      []int32
	pending   []pendingPicture
	processed int
}

func newDecoder(p *Platform, loop *eventloop.Loop, client ports.DecoderClient, opts Options) *Decoder {
	if opts.BufferCount <= 0 {
		opts.BufferCount = defaultBufferCount
	}
	if opts.Dims == (ports.Dimension{}) {
		opts.Dims = ports.Dimension{Width: 320, Height: 240}
	}
	return &Decoder{
		id:       uuid.NewString(),
		platform: p,
		loop:     loop,
		client:   client,
		opts:     opts,
	}
}

func (d *Decoder) debugf(msg string, args ...interface{}) {
	if d.opts.Logger != nil {
		d.opts.Logger.Debug(msg, args...)
	}
}

// Initialize claims a platform session and reports completion on the loop.
func (d *Decoder) Initialize(profile ports.Profile) error {
	switch {
	case profile >= ports.ProfileH264Baseline && profile < ports.ProfileH264Max:
		d.codec = ports.CodecH264
	case profile == ports.ProfileVP8:
		d.codec = ports.CodecVP8
	default:
		return fmt.Errorf("softdecoder: profile %d: %w", profile, ports.ErrInvalidArgument)
	}
	if err := d.platform.acquire(); err != nil {
		return err
	}
	d.acquired = true
	d.debugf("session %s initialized", d.id)
	d.loop.Post(d.client.NotifyInitializeDone)
	return nil
}

// Decode queues one unit and schedules its processing after the configured
// latency.
func (d *Decoder) Decode(unit ports.BitstreamUnit) {
	if d.destroyed || d.failed {
		return
	}
	d.input = append(d.input, unit)
	d.loop.PostDelayed(d.opts.Latency, d.processOne)
}

// processOne consumes the head of the input queue: it reports the unit
// consumed and, for frame-bearing units, queues a picture.
func (d *Decoder) processOne() {
	if d.destroyed || d.failed || len(d.input) == 0 {
		return
	}
	unit := d.input[0]
	d.input = d.input[1:]
	d.processed++

	if d.opts.ErrorAfterUnits > 0 && d.processed == d.opts.ErrorAfterUnits {
		d.failed = true
		d.client.NotifyError(fmt.Errorf("softdecoder: unit %d: %w", unit.ID, ports.ErrPlatformFailure))
		return
	}

	producesFrame := d.bearsFrame(unit.Data)
	if producesFrame && !d.provided {
		d.provided = true
		d.client.ProvidePictureBuffers(d.opts.BufferCount, d.opts.Dims, ports.KindTarget2D)
	}
	d.client.NotifyEndOfBitstreamBuffer(unit.ID)
	if producesFrame {
		d.pending = append(d.pending, pendingPicture{unitID: unit.ID})
	}
	d.drain()
}

// bearsFrame reports whether the unit produces an output picture. Every IVF
// frame does; for H.264 only slice units (coded picture data) do.
func (d *Decoder) bearsFrame(data []byte) bool {
	if d.codec == ports.CodecVP8 {
		return true
	}
	if len(data) < 5 {
		return false
	}
	nalType := data[4] & 0x1f
	return nalType == 1 || nalType == 5
}

// drain delivers pending pictures while free buffers remain, then completes
// a waiting flush once everything is out.
func (d *Decoder) drain() {
	if d.destroyed || d.failed {
		return
	}
	for len(d.pending) > 0 && len(d.free) > 0 {
		pic := d.pending[0]
		d.pending = d.pending[1:]
		buf := d.free[0]
		d.free = d.free[1:]
		d.client.PictureReady(ports.Picture{BufferID: buf, UnitID: pic.unitID})
	}
	if d.flushing && len(d.input) == 0 && len(d.pending) == 0 {
		d.flushing = false
		d.client.NotifyFlushDone()
	}
}

// AssignPictureBuffers makes the handed buffers available for output.
func (d *Decoder) AssignPictureBuffers(buffers []ports.PictureBuffer) {
	d.loop.Post(func() {
		if d.destroyed {
			return
		}
		for _, buf := range buffers {
			d.free = append(d.free, buf.ID)
		}
		d.drain()
	})
}

// ReusePictureBuffer returns one buffer to the free list.
func (d *Decoder) ReusePictureBuffer(bufferID int32) {
	d.loop.Post(func() {
		if d.destroyed {
			return
		}
		d.free = append(d.free, bufferID)
		d.drain()
	})
}

// Flush completes once all queued input is consumed and all pictures are
// delivered.
func (d *Decoder) Flush() {
	d.loop.Post(func() {
		if d.destroyed || d.failed {
			return
		}
		d.flushing = true
		d.drain()
	})
}

// Reset drops queued input, reporting each unit consumed, discards pending
// pictures and acknowledges completion.
func (d *Decoder) Reset() {
	d.loop.Post(func() {
		if d.destroyed || d.failed {
			return
		}
		dropped := d.input
		d.input = nil
		d.pending = nil
		d.flushing = false
		for _, unit := range dropped {
			d.client.NotifyEndOfBitstreamBuffer(unit.ID)
		}
		d.client.NotifyResetDone()
	})
}

// Destroy ends the session. No callbacks are delivered afterwards; safe to
// call more than once.
func (d *Decoder) Destroy() {
	if d.destroyed {
		return
	}
	d.destroyed = true
	if d.acquired {
		d.acquired = false
		d.platform.release()
	}
	d.debugf("session %s destroyed", d.id)
}

var _ ports.Decoder = (*Decoder)(nil)
