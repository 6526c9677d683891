// Package driver owns one decoder instance end to end: it submits bitstream
// fragments under credit-based flow control, reacts to every decoder
// callback, and sequences the initialize, decode, flush, reset and destroy
// lifecycle. All driver methods run on the event loop the driver was created
// with; the read-only getters may be called from any goroutine.
package driver

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/user/decodebench/pkg/bufferpool"
	"github.com/user/decodebench/pkg/eventloop"
	"github.com/user/decodebench/pkg/fragmenter"
	"github.com/user/decodebench/pkg/ports"
	"github.com/user/decodebench/pkg/throttle"
)

// ErrProtocolViolation is reported when the decoder invokes a callback
// inconsistent with the driver's current state.
var ErrProtocolViolation = errors.New("driver: decoder protocol violation")

// Reset triggers for Config.ResetAfterFrame. A positive value requests a
// reset after that many delivered frames, re-submitting from the start of
// the stream.
const (
	// EndOfStreamReset is the normal lifecycle: reset only after flush.
	EndOfStreamReset = -1
	// MidStreamReset asks for a reset partway through; callers translate it
	// to a concrete frame number before configuring a driver.
	MidStreamReset = -2
	// StartOfStreamReset requests a reset right after initialization
	// completes, before any submission.
	StartOfStreamReset = -3
)

// unitIDMask keeps bitstream unit ids positive as they wrap.
const unitIDMask = 0x3FFFFFFF

// reuseDelay is how long a picture buffer is withheld from the decoder once
// delayed reuse kicks in.
const reuseDelay = time.Second

// DecoderFactory binds a decoder backend to a client. The platform variant
// is chosen here, at construction time.
type DecoderFactory func(client ports.DecoderClient) (ports.Decoder, error)

// Config carries the immutable per-driver parameters.
type Config struct {
	// Stream is the full encoded bitstream.
	Stream []byte

	// Profile selects the codec profile and, through it, the fragmenter
	// strategy.
	Profile ports.Profile

	// MaxInFlight bounds outstanding decode submissions. Zero means one.
	MaxInFlight int

	// PlayThroughs is how many full passes to decode. Zero means one.
	PlayThroughs int

	// ResetAfterFrame is EndOfStreamReset, StartOfStreamReset, or a positive
	// frame count for a mid-stream reset. Zero means EndOfStreamReset.
	ResetAfterFrame int

	// DestroyAt destroys the driver when it enters this state. The zero
	// value means the default, StateReset.
	DestroyAt State

	// DestroyAfterDecodes, when positive, destroys the driver right after
	// that many submissions on the final play-through.
	DestroyAfterDecodes int

	// DelayReuseAfterFrame, when positive, defers picture buffer reuse by
	// reuseDelay once that many frames have been delivered, to exercise
	// decoder starvation.
	DelayReuseAfterFrame int

	// RenderingFPS, when positive, paces picture delivery through a
	// throttled client at this rate.
	RenderingFPS int

	// WindowID is the slot on the shared presentation context this driver
	// renders into.
	WindowID int
}

type resumeMode int

const (
	resumeNone resumeMode = iota
	resumeMidStream
	resumeStartOfStream
)

// Driver is the decode-driver state machine for one decoder instance.
type Driver struct {
	cfg       Config
	loop      *eventloop.Loop
	presenter ports.Presenter
	pool      *bufferpool.Pool
	frag      fragmenter.Fragmenter
	log       ports.Logger
	notify    *Notification

	throttled *throttle.Client

	mu             sync.Mutex
	state          State
	epoch          int
	destroyed      bool
	lastErr        error
	decoder        ports.Decoder
	resume         resumeMode
	startResetDone bool
	midResetDone   bool

	cursor         int
	nextUnitID     int32
	unitsSubmitted int
	outstanding    int
	remainingPlays int

	deliveredFrames  int
	skippedFragments int
	queuedFragments  int
	consumedUnits    int

	initializedAt time.Time
	deliveryTimes []time.Time
}

// New creates a driver in StateCreated. The driver renders into windowID on
// presenter and publishes transitions through its Notification.
func New(loop *eventloop.Loop, presenter ports.Presenter, log ports.Logger, cfg Config) (*Driver, error) {
	if len(cfg.Stream) == 0 {
		return nil, fmt.Errorf("driver: empty bitstream")
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = 1
	}
	if cfg.PlayThroughs <= 0 {
		cfg.PlayThroughs = 1
	}
	if cfg.ResetAfterFrame == 0 {
		cfg.ResetAfterFrame = EndOfStreamReset
	}
	if cfg.ResetAfterFrame == MidStreamReset {
		return nil, fmt.Errorf("driver: mid-stream reset needs a concrete frame number")
	}
	if cfg.DestroyAt == StateCreated {
		cfg.DestroyAt = StateReset
	}
	return &Driver{
		cfg:            cfg,
		loop:           loop,
		presenter:      presenter,
		pool:           bufferpool.New(presenter, cfg.WindowID),
		frag:           fragmenter.ForProfile(cfg.Profile, cfg.Stream),
		log:            log.WithComponent("driver"),
		notify:         NewNotification(),
		state:          StateCreated,
		remainingPlays: cfg.PlayThroughs,
	}, nil
}

// Notification returns the barrier this driver publishes transitions on.
func (d *Driver) Notification() *Notification {
	return d.notify
}

// CreateDecoder binds a decoder from factory and starts initialization.
// Must run on the event loop.
func (d *Driver) CreateDecoder(factory DecoderFactory) {
	var client ports.DecoderClient = d
	if d.cfg.RenderingFPS > 0 {
		t, err := throttle.New(d.loop, d, d.cfg.RenderingFPS, d.reuseBuffer)
		if err != nil {
			d.NotifyError(err)
			return
		}
		d.throttled = t
		client = t
	}

	dec, err := factory(client)
	if err != nil {
		d.NotifyError(fmt.Errorf("bind decoder: %w", err))
		return
	}
	d.mu.Lock()
	d.decoder = dec
	d.mu.Unlock()
	d.setState(StateDecoderBound)
	if d.Destroyed() {
		return
	}

	if err := dec.Initialize(d.cfg.Profile); err != nil {
		d.NotifyError(fmt.Errorf("initialize decoder: %w", err))
	}
}

// setState records the transition, publishes it, and honors the configured
// destruction trigger.
func (d *Driver) setState(s State) {
	d.mu.Lock()
	d.state = s
	d.mu.Unlock()
	d.notify.Notify(s)
	if s == d.cfg.DestroyAt {
		d.Destroy()
	}
}

// NotifyInitializeDone starts the first submission batch, or the
// start-of-stream reset when one is configured.
func (d *Driver) NotifyInitializeDone() {
	d.mu.Lock()
	if d.destroyed {
		d.mu.Unlock()
		return
	}
	d.initializedAt = time.Now()
	startReset := d.cfg.ResetAfterFrame == StartOfStreamReset && !d.startResetDone
	if startReset {
		d.startResetDone = true
		d.resume = resumeStartOfStream
	}
	dec := d.decoder
	d.mu.Unlock()

	d.setState(StateInitialized)
	if d.Destroyed() {
		return
	}
	if startReset {
		d.setState(StateResetting)
		dec.Reset()
		return
	}
	for i := 0; i < d.cfg.MaxInFlight; i++ {
		d.decodeNextFragment()
	}
}

// decodeNextFragment fetches the fragment at the cursor and submits it. At
// end-of-stream with no submissions outstanding it issues the flush instead.
func (d *Driver) decodeNextFragment() {
	d.mu.Lock()
	if d.destroyed || d.state != StateInitialized {
		d.mu.Unlock()
		return
	}
	dec := d.decoder

	if d.cursor >= len(d.cfg.Stream) {
		flush := d.outstanding == 0
		d.mu.Unlock()
		if flush {
			d.setState(StateFlushing)
			if !d.Destroyed() {
				dec.Flush()
			}
		}
		return
	}

	var (
		data    []byte
		end     int
		skipped int
		err     error
	)
	if d.cursor == 0 {
		data, end, skipped, err = d.frag.First(0)
	} else {
		data, end, err = d.frag.Next(d.cursor)
	}
	if err != nil {
		d.mu.Unlock()
		d.NotifyError(fmt.Errorf("fragment stream at %d: %w", d.cursor, err))
		return
	}
	d.skippedFragments += skipped
	d.cursor = end
	unit := ports.BitstreamUnit{ID: d.nextUnitID, Data: data}
	d.nextUnitID = (d.nextUnitID + 1) & unitIDMask
	d.queuedFragments++
	d.outstanding++
	d.unitsSubmitted++
	forceDestroy := d.cfg.DestroyAfterDecodes > 0 &&
		d.remainingPlays == 1 &&
		d.unitsSubmitted == d.cfg.DestroyAfterDecodes
	d.mu.Unlock()

	dec.Decode(unit)
	if forceDestroy {
		d.Destroy()
	}
}

// NotifyEndOfBitstreamBuffer returns one submission credit and immediately
// spends it on the next fragment.
func (d *Driver) NotifyEndOfBitstreamBuffer(unitID int32) {
	d.mu.Lock()
	if d.destroyed {
		d.mu.Unlock()
		return
	}
	d.consumedUnits++
	d.outstanding--
	d.mu.Unlock()
	d.decodeNextFragment()
}

// ProvidePictureBuffers allocates the requested output buffers and hands
// them to the decoder.
func (d *Driver) ProvidePictureBuffers(count int, dims ports.Dimension, targetKind ports.TargetKind) {
	d.mu.Lock()
	if d.destroyed {
		d.mu.Unlock()
		return
	}
	dec := d.decoder
	buffers, err := d.pool.Allocate(count, dims, targetKind)
	d.mu.Unlock()

	if err != nil {
		d.NotifyError(fmt.Errorf("allocate picture buffers: %w", err))
		return
	}
	dec.AssignPictureBuffers(buffers)
}

// DismissPictureBuffer releases one buffer and its render target.
func (d *Driver) DismissPictureBuffer(bufferID int32) {
	d.mu.Lock()
	if d.destroyed {
		d.mu.Unlock()
		return
	}
	err := d.pool.Dismiss(bufferID)
	d.mu.Unlock()

	if err != nil {
		d.NotifyError(fmt.Errorf("dismiss buffer %d: %w", bufferID, ErrProtocolViolation))
	}
}

// PictureReady renders the picture, recycles its buffer, and fires the
// mid-stream reset once the configured frame count is reached.
func (d *Driver) PictureReady(pic ports.Picture) {
	d.mu.Lock()
	if d.destroyed || d.state == StateError {
		d.mu.Unlock()
		return
	}
	if d.state >= StateReset {
		d.mu.Unlock()
		d.NotifyError(fmt.Errorf("picture %d delivered after reset: %w", pic.BufferID, ErrProtocolViolation))
		return
	}
	buf, ok := d.pool.Get(pic.BufferID)
	if !ok {
		d.mu.Unlock()
		d.NotifyError(fmt.Errorf("picture references unknown buffer %d: %w", pic.BufferID, ErrProtocolViolation))
		return
	}
	d.deliveredFrames++
	d.deliveryTimes = append(d.deliveryTimes, time.Now())
	delay := d.cfg.DelayReuseAfterFrame > 0 && d.deliveredFrames > d.cfg.DelayReuseAfterFrame
	trigger := d.cfg.ResetAfterFrame > 0 && !d.midResetDone && d.deliveredFrames == d.cfg.ResetAfterFrame
	if trigger {
		d.midResetDone = true
		d.resume = resumeMidStream
	}
	dec := d.decoder
	d.mu.Unlock()

	if err := d.presenter.Render(buf.Target); err != nil {
		d.NotifyError(fmt.Errorf("render target %d: %w", buf.Target, err))
		return
	}
	if delay {
		id := pic.BufferID
		d.loop.PostDelayed(reuseDelay, func() { d.reuseBuffer(id) })
	} else {
		dec.ReusePictureBuffer(pic.BufferID)
	}
	if trigger {
		d.setState(StateResetting)
		if !d.Destroyed() {
			dec.Reset()
		}
	}
}

// reuseBuffer hands a buffer back to the decoder unless the driver has been
// destroyed in the meantime.
func (d *Driver) reuseBuffer(bufferID int32) {
	d.mu.Lock()
	if d.destroyed {
		d.mu.Unlock()
		return
	}
	dec := d.decoder
	d.mu.Unlock()
	dec.ReusePictureBuffer(bufferID)
}

// NotifyFlushDone advances to Flushed and immediately requests the
// end-of-stream reset. A completion arriving outside Flushing belongs to a
// flush a mid-stream reset abandoned and is ignored.
func (d *Driver) NotifyFlushDone() {
	if d.Destroyed() {
		return
	}
	d.mu.Lock()
	stale := d.state != StateFlushing
	d.mu.Unlock()
	if stale {
		return
	}
	d.setState(StateFlushed)
	if d.Destroyed() {
		return
	}
	d.mu.Lock()
	dec := d.decoder
	d.mu.Unlock()
	d.setState(StateResetting)
	if !d.Destroyed() {
		dec.Reset()
	}
}

// NotifyResetDone resumes decoding after a mid-stream or start-of-stream
// reset, loops back for the next play-through, or finishes in StateReset.
func (d *Driver) NotifyResetDone() {
	d.mu.Lock()
	if d.destroyed {
		d.mu.Unlock()
		return
	}

	switch d.resume {
	case resumeMidStream:
		d.resume = resumeNone
		d.epoch++
		d.cursor = 0
		d.mu.Unlock()
		d.setState(StateInitialized)
		d.decodeNextFragment()
		return
	case resumeStartOfStream:
		d.resume = resumeNone
		d.epoch++
		d.mu.Unlock()
		d.setState(StateInitialized)
		for i := 0; i < d.cfg.MaxInFlight; i++ {
			d.decodeNextFragment()
		}
		return
	}

	d.remainingPlays--
	if d.remainingPlays > 0 {
		d.epoch++
		d.cursor = 0
		d.mu.Unlock()
		d.setState(StateInitialized)
		for i := 0; i < d.cfg.MaxInFlight; i++ {
			d.decodeNextFragment()
		}
		return
	}
	d.mu.Unlock()
	d.setState(StateReset)
}

// NotifyError moves the driver to its absorbing Error state.
func (d *Driver) NotifyError(err error) {
	d.mu.Lock()
	if d.destroyed || d.state == StateError {
		d.mu.Unlock()
		return
	}
	d.lastErr = err
	d.mu.Unlock()
	d.log.Error("decoder error: %v", err)
	d.setState(StateError)
}

// Destroy releases the decoder and all render targets, then publishes the
// remaining transitions up to StateDestroyed so observers see a consistent
// progression. Idempotent and callable from any state; must run on the
// event loop.
func (d *Driver) Destroy() {
	d.mu.Lock()
	if d.destroyed {
		d.mu.Unlock()
		return
	}
	d.destroyed = true
	dec := d.decoder
	from := d.state
	d.mu.Unlock()

	if dec != nil {
		dec.Destroy()
	}
	d.mu.Lock()
	d.pool.Teardown()
	d.mu.Unlock()

	if from == StateError {
		from = StateDestroyed - 1
	}
	for s := from + 1; s <= StateDestroyed; s++ {
		d.mu.Lock()
		d.state = s
		d.mu.Unlock()
		d.notify.Notify(s)
	}
}

// State returns the current lifecycle state.
func (d *Driver) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Destroyed reports whether Destroy has run.
func (d *Driver) Destroyed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.destroyed
}

// LastError returns the error that moved the driver to StateError, if any.
func (d *Driver) LastError() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastErr
}

// Epoch returns the current stream epoch. It increments once per completed
// reset that resumes decoding.
func (d *Driver) Epoch() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.epoch
}

// DecodedFrames returns how many frames the decoder produced. Under
// throttled delivery this includes dropped frames.
func (d *Driver) DecodedFrames() int {
	if d.throttled != nil {
		return d.throttled.DecodedFrames()
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.deliveredFrames
}

// RenderedFrames returns how many frames reached the presenter.
func (d *Driver) RenderedFrames() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.deliveredFrames
}

// DroppedFrames returns how many frames throttling discarded for lateness.
func (d *Driver) DroppedFrames() int {
	if d.throttled == nil {
		return 0
	}
	return d.throttled.DroppedFrames()
}

// SkippedFragments returns how many leading units the fragmenter discarded.
func (d *Driver) SkippedFragments() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.skippedFragments
}

// QueuedFragments returns how many fragments were submitted to the decoder.
func (d *Driver) QueuedFragments() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.queuedFragments
}

// ConsumedUnits returns how many submissions the decoder reported consumed.
func (d *Driver) ConsumedUnits() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.consumedUnits
}

// OutstandingTargets returns how many render targets the pool still holds.
func (d *Driver) OutstandingTargets() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pool.OutstandingTargets()
}

// FramesPerSecond returns the decode rate from initialization to the last
// delivered frame.
func (d *Driver) FramesPerSecond() float64 {
	decoded := d.DecodedFrames()
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.deliveryTimes) == 0 || d.initializedAt.IsZero() {
		return 0
	}
	elapsed := d.deliveryTimes[len(d.deliveryTimes)-1].Sub(d.initializedAt).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(decoded) / elapsed
}

// WriteFrameDeliveryTimes writes the frame count and per-frame inter-arrival
// times in microseconds, one per line.
func (d *Driver) WriteFrameDeliveryTimes(w io.Writer) error {
	d.mu.Lock()
	times := make([]time.Time, len(d.deliveryTimes))
	copy(times, d.deliveryTimes)
	prev := d.initializedAt
	d.mu.Unlock()

	if _, err := fmt.Fprintf(w, "frame count: %d\n", len(times)); err != nil {
		return err
	}
	for _, t := range times {
		if _, err := fmt.Fprintf(w, "%d\n", t.Sub(prev).Microseconds()); err != nil {
			return err
		}
		prev = t
	}
	return nil
}

var _ ports.DecoderClient = (*Driver)(nil)
