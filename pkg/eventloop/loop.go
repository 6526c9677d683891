// Package eventloop provides the serial execution context that hosts all
// driver, decoder and buffer-pool interaction. Tasks posted to a Loop run
// one at a time, in order, on a single dedicated goroutine; delayed tasks
// are re-posted when their timer fires.
package eventloop

import (
	"sync"
	"time"
)

// Loop is a serial task executor. The zero value is not usable; call New.
type Loop struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []func()
	stopped bool

	timers  map[*time.Timer]struct{}
	running sync.WaitGroup
}

// New creates a Loop and starts its goroutine.
func New() *Loop {
	l := &Loop{timers: make(map[*time.Timer]struct{})}
	l.cond = sync.NewCond(&l.mu)
	l.running.Add(1)
	go l.run()
	return l
}

func (l *Loop) run() {
	defer l.running.Done()
	for {
		l.mu.Lock()
		for len(l.queue) == 0 && !l.stopped {
			l.cond.Wait()
		}
		if len(l.queue) == 0 && l.stopped {
			l.mu.Unlock()
			return
		}
		task := l.queue[0]
		l.queue = l.queue[1:]
		l.mu.Unlock()

		task()
	}
}

// Post schedules task to run on the loop goroutine. Tasks run in posting
// order. Posting to a stopped loop is a no-op.
func (l *Loop) Post(task func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return
	}
	l.queue = append(l.queue, task)
	l.cond.Signal()
}

// PostDelayed schedules task to run on the loop goroutine after at least d.
// A non-positive delay posts immediately.
func (l *Loop) PostDelayed(d time.Duration, task func()) {
	if d <= 0 {
		l.Post(task)
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return
	}
	var t *time.Timer
	t = time.AfterFunc(d, func() {
		l.mu.Lock()
		delete(l.timers, t)
		l.mu.Unlock()
		l.Post(task)
	})
	l.timers[t] = struct{}{}
}

// PostAndWait runs task on the loop goroutine and blocks until it returns.
// Returns immediately without running task if the loop is stopped. Must not
// be called from the loop goroutine itself.
func (l *Loop) PostAndWait(task func()) {
	done := make(chan struct{})
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.queue = append(l.queue, func() {
		defer close(done)
		task()
	})
	l.cond.Signal()
	l.mu.Unlock()
	<-done
}

// Stop cancels pending delayed tasks, drains the queue and stops the loop
// goroutine. It blocks until the goroutine exits and is safe to call more
// than once.
func (l *Loop) Stop() {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		l.running.Wait()
		return
	}
	l.stopped = true
	for t := range l.timers {
		t.Stop()
		delete(l.timers, t)
	}
	l.cond.Broadcast()
	l.mu.Unlock()
	l.running.Wait()
}
