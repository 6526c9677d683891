// Package mocks provides hand-written test doubles for the ports
// interfaces.
package mocks

import (
	"sync"

	"github.com/user/decodebench/pkg/ports"
)

// Presenter is a mock implementation of ports.Presenter. Unless overridden
// it hands out sequential target handles and tracks which are live.
type Presenter struct {
	CreateTargetFunc func(windowID int, kind ports.TargetKind, dims ports.Dimension) (ports.TargetHandle, error)
	DeleteTargetFunc func(h ports.TargetHandle) error
	RenderFunc       func(h ports.TargetHandle) error

	mu         sync.Mutex
	nextHandle ports.TargetHandle
	live       map[ports.TargetHandle]struct{}

	// Recorded calls for verification
	Created  []ports.TargetHandle
	Deleted  []ports.TargetHandle
	Rendered []ports.TargetHandle
}

func (m *Presenter) CreateTarget(windowID int, kind ports.TargetKind, dims ports.Dimension) (ports.TargetHandle, error) {
	if m.CreateTargetFunc != nil {
		return m.CreateTargetFunc(windowID, kind, dims)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.live == nil {
		m.live = make(map[ports.TargetHandle]struct{})
	}
	m.nextHandle++
	h := m.nextHandle
	m.live[h] = struct{}{}
	m.Created = append(m.Created, h)
	return h, nil
}

func (m *Presenter) DeleteTarget(h ports.TargetHandle) error {
	if m.DeleteTargetFunc != nil {
		return m.DeleteTargetFunc(h)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.live, h)
	m.Deleted = append(m.Deleted, h)
	return nil
}

func (m *Presenter) Render(h ports.TargetHandle) error {
	if m.RenderFunc != nil {
		return m.RenderFunc(h)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Rendered = append(m.Rendered, h)
	return nil
}

// LiveTargets returns the number of targets created but not yet deleted.
func (m *Presenter) LiveTargets() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}

// RenderedCount returns the number of Render calls.
func (m *Presenter) RenderedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Rendered)
}

var _ ports.Presenter = (*Presenter)(nil)
