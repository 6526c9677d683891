package driver

import "time"

// notificationDepth bounds how many unconsumed transitions a barrier can
// hold. A full run with play-through loops and reset bounces stays far
// below this.
const notificationDepth = 128

// Notification is the barrier through which a driver publishes its state
// transitions to a controlling goroutine. Each transition is delivered
// exactly once, in the order it occurred.
type Notification struct {
	ch chan State
}

// NewNotification creates an empty barrier.
func NewNotification() *Notification {
	return &Notification{ch: make(chan State, notificationDepth)}
}

// Notify publishes one transition.
func (n *Notification) Notify(s State) {
	n.ch <- s
}

// Wait blocks until the next transition and returns it.
func (n *Notification) Wait() State {
	return <-n.ch
}

// WaitTimeout blocks until the next transition or the timeout, whichever
// comes first. The second return is false on timeout.
func (n *Notification) WaitTimeout(d time.Duration) (State, bool) {
	select {
	case s := <-n.ch:
		return s, true
	case <-time.After(d):
		return 0, false
	}
}
