package throttle

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/user/decodebench/pkg/eventloop"
	"github.com/user/decodebench/pkg/mocks"
	"github.com/user/decodebench/pkg/ports"
)

// reuseRecorder collects buffer ids returned without presentation.
type reuseRecorder struct {
	mu  sync.Mutex
	ids []int32
}

func (r *reuseRecorder) reuse(id int32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, id)
}

func (r *reuseRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ids)
}

func waitFor(t *testing.T, desc string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", desc)
}

func TestNew_RejectsNonPositiveFPS(t *testing.T) {
	loop := eventloop.New()
	defer loop.Stop()

	if _, err := New(loop, &mocks.DecoderClient{}, 0, func(int32) {}); err == nil {
		t.Error("expected error for fps 0")
	}
	if _, err := New(loop, &mocks.DecoderClient{}, -30, func(int32) {}); err == nil {
		t.Error("expected error for negative fps")
	}
}

func TestClient_PassesThroughNonPictureCallbacks(t *testing.T) {
	loop := eventloop.New()
	defer loop.Stop()
	inner := &mocks.DecoderClient{}
	client, err := New(loop, inner, 30, func(int32) {})
	if err != nil {
		t.Fatal(err)
	}

	client.ProvidePictureBuffers(4, ports.Dimension{Width: 320, Height: 240}, ports.KindTarget2D)
	client.DismissPictureBuffer(2)
	client.NotifyInitializeDone()
	client.NotifyEndOfBitstreamBuffer(7)
	client.NotifyError(errors.New("boom"))

	if len(inner.ProvideCalls) != 1 || inner.ProvideCalls[0].Count != 4 {
		t.Errorf("ProvidePictureBuffers not forwarded: %+v", inner.ProvideCalls)
	}
	if len(inner.Dismissed) != 1 || inner.Dismissed[0] != 2 {
		t.Errorf("DismissPictureBuffer not forwarded: %v", inner.Dismissed)
	}
	if inner.InitDoneCalls != 1 {
		t.Errorf("NotifyInitializeDone not forwarded")
	}
	if len(inner.Consumed) != 1 || inner.Consumed[0] != 7 {
		t.Errorf("NotifyEndOfBitstreamBuffer not forwarded: %v", inner.Consumed)
	}
	if len(inner.Errors) != 1 {
		t.Errorf("NotifyError not forwarded")
	}
}

func TestClient_DeliversAllPicturesInOrder(t *testing.T) {
	loop := eventloop.New()
	defer loop.Stop()
	inner := &mocks.DecoderClient{}
	client, err := New(loop, inner, 20, func(int32) {})
	if err != nil {
		t.Fatal(err)
	}

	for i := int32(0); i < 3; i++ {
		client.PictureReady(ports.Picture{BufferID: i, UnitID: i})
	}

	waitFor(t, "all pictures delivered", func() bool { return inner.PictureCount() == 3 })

	for i, pic := range inner.Pictures {
		if pic.BufferID != int32(i) {
			t.Errorf("picture %d has buffer id %d, want %d", i, pic.BufferID, i)
		}
	}
	if client.DecodedFrames() != 3 {
		t.Errorf("DecodedFrames = %d, want 3", client.DecodedFrames())
	}
	if client.DroppedFrames() != 0 {
		t.Errorf("DroppedFrames = %d, want 0", client.DroppedFrames())
	}
}

func TestClient_DropsPicturesThatRunLate(t *testing.T) {
	loop := eventloop.New()
	defer loop.Stop()
	inner := &mocks.DecoderClient{}
	rec := &reuseRecorder{}
	client, err := New(loop, inner, 50, rec.reuse) // 20ms interval
	if err != nil {
		t.Fatal(err)
	}

	client.PictureReady(ports.Picture{BufferID: 0, UnitID: 0})
	waitFor(t, "first picture delivered", func() bool { return inner.PictureCount() == 1 })

	// Stall the loop long enough that the queued pictures miss several
	// delivery slots.
	loop.Post(func() { time.Sleep(120 * time.Millisecond) })
	for i := int32(1); i <= 3; i++ {
		client.PictureReady(ports.Picture{BufferID: i, UnitID: i})
	}

	waitFor(t, "late pictures dropped", func() bool { return rec.count() == 3 })

	if inner.PictureCount() != 1 {
		t.Errorf("delivered %d pictures, want only the on-time one", inner.PictureCount())
	}
	if client.DroppedFrames() != 3 {
		t.Errorf("DroppedFrames = %d, want 3", client.DroppedFrames())
	}
	if client.DecodedFrames() != 4 {
		t.Errorf("DecodedFrames = %d, want 4", client.DecodedFrames())
	}
}

func TestClient_FlushWaitsForQueueToDrain(t *testing.T) {
	loop := eventloop.New()
	defer loop.Stop()
	inner := &mocks.DecoderClient{}
	client, err := New(loop, inner, 20, func(int32) {})
	if err != nil {
		t.Fatal(err)
	}

	for i := int32(0); i < 3; i++ {
		client.PictureReady(ports.Picture{BufferID: i, UnitID: i})
	}
	client.NotifyFlushDone()

	waitFor(t, "flush completion", func() bool { return inner.FlushDoneCount() == 1 })

	if inner.PictureCount() != 3 {
		t.Errorf("flush completed with %d of 3 pictures delivered", inner.PictureCount())
	}
}

func TestClient_ResetAbandonsPendingFlush(t *testing.T) {
	loop := eventloop.New()
	defer loop.Stop()
	inner := &mocks.DecoderClient{}
	rec := &reuseRecorder{}
	client, err := New(loop, inner, 50, rec.reuse)
	if err != nil {
		t.Fatal(err)
	}

	// Flush completion arrives with pictures still queued, then a reset
	// drains the queue before the retry fires.
	release := make(chan struct{})
	loop.Post(func() { <-release })
	for i := int32(0); i < 3; i++ {
		client.PictureReady(ports.Picture{BufferID: i, UnitID: i})
	}
	client.NotifyFlushDone()
	client.NotifyResetDone()
	close(release)

	waitFor(t, "drained buffers reused", func() bool { return rec.count() == 3 })

	// The abandoned flush must never complete, even once the queue is empty.
	time.Sleep(60 * time.Millisecond)
	if inner.FlushDoneCount() != 0 {
		t.Errorf("abandoned flush completed %d time(s)", inner.FlushDoneCount())
	}

	// A flush in the next playback completes normally.
	client.PictureReady(ports.Picture{BufferID: 9, UnitID: 9})
	client.NotifyFlushDone()
	waitFor(t, "post-reset flush completion", func() bool { return inner.FlushDoneCount() == 1 })
}

func TestClient_ResetDrainsQueueAndReusesBuffers(t *testing.T) {
	loop := eventloop.New()
	defer loop.Stop()
	inner := &mocks.DecoderClient{}
	rec := &reuseRecorder{}
	client, err := New(loop, inner, 50, rec.reuse)
	if err != nil {
		t.Fatal(err)
	}

	// Hold the loop so nothing drains before the reset.
	release := make(chan struct{})
	loop.Post(func() { <-release })
	for i := int32(0); i < 4; i++ {
		client.PictureReady(ports.Picture{BufferID: i, UnitID: i})
	}

	client.NotifyResetDone()
	close(release)

	if rec.count() != 4 {
		t.Errorf("reset reused %d buffers, want 4", rec.count())
	}
	if client.DroppedFrames() != 4 {
		t.Errorf("DroppedFrames = %d, want the 4 drained pictures counted", client.DroppedFrames())
	}
	if inner.ResetDoneCount() != 1 {
		t.Errorf("NotifyResetDone not forwarded")
	}

	// Stale ticks from before the reset must not deliver anything.
	time.Sleep(50 * time.Millisecond)
	if inner.PictureCount() != 0 {
		t.Errorf("stale tick delivered %d pictures after reset", inner.PictureCount())
	}

	// Pacing restarts cleanly for the next playback.
	client.PictureReady(ports.Picture{BufferID: 9, UnitID: 9})
	waitFor(t, "post-reset delivery", func() bool { return inner.PictureCount() == 1 })
}
