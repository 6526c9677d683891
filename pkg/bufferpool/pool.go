// Package bufferpool owns the mapping from picture-buffer id to output
// buffer metadata for one decoder instance, and the render targets backing
// those buffers on the presentation context.
package bufferpool

import (
	"errors"
	"fmt"

	"github.com/user/decodebench/pkg/ports"
)

var (
	// ErrUnknownBuffer is returned when an id has no live buffer.
	ErrUnknownBuffer = errors.New("bufferpool: unknown picture buffer id")
)

// Pool services allocate and dismiss requests from one decoder instance.
// The set of render targets it tracks always equals the set of currently
// allocated buffer ids; a mismatch is a leak or a double free.
type Pool struct {
	presenter ports.Presenter
	windowID  int

	byID    map[int32]ports.PictureBuffer
	targets map[ports.TargetHandle]struct{}
	nextID  int32
}

// New creates an empty pool whose render targets are created on the given
// presenter window.
func New(presenter ports.Presenter, windowID int) *Pool {
	return &Pool{
		presenter: presenter,
		windowID:  windowID,
		byID:      make(map[int32]ports.PictureBuffer),
		targets:   make(map[ports.TargetHandle]struct{}),
	}
}

// Allocate creates count buffers of the given dimensions, each backed by a
// freshly created render target. The requester may use the returned buffers
// immediately; target creation completes before Allocate returns.
func (p *Pool) Allocate(count int, dims ports.Dimension, kind ports.TargetKind) ([]ports.PictureBuffer, error) {
	buffers := make([]ports.PictureBuffer, 0, count)
	for i := 0; i < count; i++ {
		target, err := p.presenter.CreateTarget(p.windowID, kind, dims)
		if err != nil {
			return nil, fmt.Errorf("create render target: %w", err)
		}
		buf := ports.PictureBuffer{ID: p.nextID, Dims: dims, Target: target}
		p.nextID++
		p.byID[buf.ID] = buf
		p.targets[target] = struct{}{}
		buffers = append(buffers, buf)
	}
	return buffers, nil
}

// Get looks up a live buffer by id.
func (p *Pool) Get(id int32) (ports.PictureBuffer, bool) {
	buf, ok := p.byID[id]
	return buf, ok
}

// Dismiss removes one buffer and releases its render target.
func (p *Pool) Dismiss(id int32) error {
	buf, ok := p.byID[id]
	if !ok {
		return ErrUnknownBuffer
	}
	delete(p.byID, id)
	delete(p.targets, buf.Target)
	if err := p.presenter.DeleteTarget(buf.Target); err != nil {
		return fmt.Errorf("delete render target: %w", err)
	}
	return nil
}

// Teardown dismisses all remaining buffers and releases their render
// targets. Safe to call when the decoder never dismissed them explicitly,
// and safe to call more than once.
func (p *Pool) Teardown() {
	for id, buf := range p.byID {
		delete(p.byID, id)
		delete(p.targets, buf.Target)
		// Best effort: teardown proceeds past individual delete failures.
		_ = p.presenter.DeleteTarget(buf.Target)
	}
}

// Size returns the number of live buffers.
func (p *Pool) Size() int {
	return len(p.byID)
}

// OutstandingTargets returns the number of render targets the pool still
// holds. It equals Size unless the bookkeeping invariant is broken.
func (p *Pool) OutstandingTargets() int {
	return len(p.targets)
}
