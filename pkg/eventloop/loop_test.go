package eventloop

import (
	"sync"
	"testing"
	"time"
)

func TestLoop_PostRunsInOrder(t *testing.T) {
	loop := New()
	defer loop.Stop()

	var mu sync.Mutex
	var got []int
	done := make(chan struct{})

	for i := 0; i < 100; i++ {
		i := i
		loop.Post(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
			if i == 99 {
				close(done)
			}
		})
	}

	<-done
	mu.Lock()
	defer mu.Unlock()
	if len(got) != 100 {
		t.Fatalf("expected 100 tasks, got %d", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("task %d ran out of order (got %d)", i, v)
		}
	}
}

func TestLoop_PostDelayed(t *testing.T) {
	loop := New()
	defer loop.Stop()

	start := time.Now()
	done := make(chan struct{})
	loop.PostDelayed(20*time.Millisecond, func() { close(done) })

	<-done
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("delayed task ran after %v, want >= 20ms", elapsed)
	}
}

func TestLoop_PostDelayedZeroRunsImmediately(t *testing.T) {
	loop := New()
	defer loop.Stop()

	done := make(chan struct{})
	loop.PostDelayed(0, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("zero-delay task never ran")
	}
}

func TestLoop_PostAndWait(t *testing.T) {
	loop := New()
	defer loop.Stop()

	ran := false
	loop.PostAndWait(func() { ran = true })
	if !ran {
		t.Error("PostAndWait returned before task ran")
	}
}

func TestLoop_PostAndWaitAfterStopReturns(t *testing.T) {
	loop := New()
	loop.Stop()

	done := make(chan struct{})
	go func() {
		loop.PostAndWait(func() { t.Error("task ran after Stop") })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("PostAndWait blocked on a stopped loop")
	}
}

func TestLoop_StopDrainsQueue(t *testing.T) {
	loop := New()

	var mu sync.Mutex
	count := 0
	for i := 0; i < 50; i++ {
		loop.Post(func() {
			mu.Lock()
			count++
			mu.Unlock()
		})
	}

	loop.Stop()
	mu.Lock()
	defer mu.Unlock()
	if count != 50 {
		t.Errorf("expected all 50 queued tasks to run before Stop returned, got %d", count)
	}
}

func TestLoop_StopIsIdempotent(t *testing.T) {
	loop := New()
	loop.Stop()
	loop.Stop() // must not panic or hang

	// Posting after Stop is a no-op.
	loop.Post(func() { t.Error("task ran after Stop") })
	loop.PostDelayed(time.Millisecond, func() { t.Error("delayed task ran after Stop") })
	time.Sleep(10 * time.Millisecond)
}

func TestLoop_StopCancelsDelayedTasks(t *testing.T) {
	loop := New()
	loop.PostDelayed(5*time.Millisecond, func() { t.Error("delayed task ran after Stop") })
	loop.Stop()
	time.Sleep(20 * time.Millisecond)
}
