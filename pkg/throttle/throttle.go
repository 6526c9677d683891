// Package throttle meters picture delivery to a fixed frame rate. It wraps
// a DecoderClient so the decoder can run as fast as it likes while the
// wrapped client sees at most one picture per frame interval, the way a
// vsynced display would.
package throttle

import (
	"fmt"
	"sync"
	"time"

	"github.com/user/decodebench/pkg/eventloop"
	"github.com/user/decodebench/pkg/ports"
)

// Client is a pacing DecoderClient wrapper. Pictures queue up inside it and
// drain one per interval; a picture that falls more than one interval behind
// schedule is returned to the decoder unpresented. Flush completion is held
// back until the queue drains, so the wrapped client never observes a flush
// with pictures still pending.
type Client struct {
	loop  *eventloop.Loop
	inner ports.DecoderClient
	reuse func(bufferID int32)

	interval time.Duration

	mu      sync.Mutex
	epoch   int
	queue   []ports.Picture
	next    time.Time
	decoded int
	dropped int
}

// New wraps inner with delivery paced at fps frames per second. Dropped
// pictures are handed back through reuse. Delivery ticks run on loop.
func New(loop *eventloop.Loop, inner ports.DecoderClient, fps int, reuse func(bufferID int32)) (*Client, error) {
	if fps <= 0 {
		return nil, fmt.Errorf("throttle: fps must be positive, got %d", fps)
	}
	return &Client{
		loop:     loop,
		inner:    inner,
		reuse:    reuse,
		interval: time.Second / time.Duration(fps),
	}, nil
}

// PictureReady enqueues the picture and starts the delivery pump if it was
// idle. Every picture counts as decoded whether or not it is presented.
func (c *Client) PictureReady(pic ports.Picture) {
	c.mu.Lock()
	c.decoded++
	c.queue = append(c.queue, pic)
	first := len(c.queue) == 1
	epoch := c.epoch
	var wait time.Duration
	if first && !c.next.IsZero() {
		wait = time.Until(c.next)
	}
	c.mu.Unlock()

	if first {
		c.loop.PostDelayed(wait, func() { c.deliver(epoch) })
	}
}

// deliver releases the head of the queue. Ticks carry the epoch they were
// scheduled under; a reset between scheduling and firing makes them no-ops.
func (c *Client) deliver(epoch int) {
	c.mu.Lock()
	if epoch != c.epoch || len(c.queue) == 0 {
		c.mu.Unlock()
		return
	}
	now := time.Now()
	pic := c.queue[0]
	c.queue = c.queue[1:]
	if c.next.IsZero() {
		c.next = now
	}
	// More than one interval behind schedule means the display would have
	// shown a newer frame already. Drop instead of presenting stale output.
	late := c.next.Add(c.interval).Before(now)
	if late {
		c.dropped++
	}
	c.next = c.next.Add(c.interval)
	more := len(c.queue) > 0
	var wait time.Duration
	if more {
		wait = time.Until(c.next)
	}
	c.mu.Unlock()

	if late {
		c.reuse(pic.BufferID)
	} else {
		c.inner.PictureReady(pic)
	}
	if more {
		c.loop.PostDelayed(wait, func() { c.deliver(epoch) })
	}
}

// NotifyFlushDone forwards flush completion once the picture queue is empty.
// With pictures still pending it re-arms itself one interval later. A reset
// between arming and firing abandons the flush, so the retry carries the
// epoch it was armed under.
func (c *Client) NotifyFlushDone() {
	c.mu.Lock()
	epoch := c.epoch
	c.mu.Unlock()
	c.flushWhenDrained(epoch)
}

func (c *Client) flushWhenDrained(epoch int) {
	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		return
	}
	pending := len(c.queue) > 0
	c.mu.Unlock()

	if pending {
		c.loop.PostDelayed(c.interval, func() { c.flushWhenDrained(epoch) })
		return
	}
	c.inner.NotifyFlushDone()
}

// NotifyResetDone discards all queued pictures, returning their buffers, and
// restarts pacing from scratch for the next playback. Discarded pictures
// count as dropped; every decoded picture ends up either presented or
// dropped.
func (c *Client) NotifyResetDone() {
	c.mu.Lock()
	c.epoch++
	drained := c.queue
	c.queue = nil
	c.next = time.Time{}
	c.dropped += len(drained)
	c.mu.Unlock()

	for _, pic := range drained {
		c.reuse(pic.BufferID)
	}
	c.inner.NotifyResetDone()
}

func (c *Client) ProvidePictureBuffers(count int, dims ports.Dimension, targetKind ports.TargetKind) {
	c.inner.ProvidePictureBuffers(count, dims, targetKind)
}

func (c *Client) DismissPictureBuffer(bufferID int32) {
	c.inner.DismissPictureBuffer(bufferID)
}

func (c *Client) NotifyInitializeDone() {
	c.inner.NotifyInitializeDone()
}

func (c *Client) NotifyEndOfBitstreamBuffer(unitID int32) {
	c.inner.NotifyEndOfBitstreamBuffer(unitID)
}

func (c *Client) NotifyError(err error) {
	c.inner.NotifyError(err)
}

// DecodedFrames returns how many pictures the decoder produced, presented or
// not.
func (c *Client) DecodedFrames() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.decoded
}

// DroppedFrames returns how many pictures were discarded, either for
// running late or in a reset drain.
func (c *Client) DroppedFrames() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

var _ ports.DecoderClient = (*Client)(nil)
