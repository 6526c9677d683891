// Package nullpresenter is the rendering-suppressed presentation context.
// Targets are bookkept but nothing is drawn, so decode throughput can be
// measured without presentation cost.
package nullpresenter

import (
	"errors"
	"sync"

	"github.com/user/decodebench/pkg/ports"
)

// ErrUnknownTarget is returned for handles the presenter does not track.
var ErrUnknownTarget = errors.New("nullpresenter: unknown render target")

// Presenter tracks target handles and counts renders.
type Presenter struct {
	mu         sync.Mutex
	nextHandle ports.TargetHandle
	targets    map[ports.TargetHandle]struct{}
	rendered   int
}

// New creates an empty presenter.
func New() *Presenter {
	return &Presenter{targets: make(map[ports.TargetHandle]struct{})}
}

// CreateTarget allocates a handle.
func (p *Presenter) CreateTarget(windowID int, kind ports.TargetKind, dims ports.Dimension) (ports.TargetHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextHandle++
	p.targets[p.nextHandle] = struct{}{}
	return p.nextHandle, nil
}

// DeleteTarget releases a handle.
func (p *Presenter) DeleteTarget(h ports.TargetHandle) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.targets[h]; !ok {
		return ErrUnknownTarget
	}
	delete(p.targets, h)
	return nil
}

// Render counts the call and draws nothing.
func (p *Presenter) Render(h ports.TargetHandle) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.targets[h]; !ok {
		return ErrUnknownTarget
	}
	p.rendered++
	return nil
}

// OutstandingTargets returns how many targets are still live.
func (p *Presenter) OutstandingTargets() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.targets)
}

// RenderedCount returns how many Render calls completed.
func (p *Presenter) RenderedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rendered
}

var _ ports.Presenter = (*Presenter)(nil)
