package mocks

import (
	"sync"

	"github.com/user/decodebench/pkg/ports"
)

// DecoderClient is a recording implementation of ports.DecoderClient.
type DecoderClient struct {
	mu sync.Mutex

	ProvideCalls  []ProvideCall
	Dismissed     []int32
	Pictures      []ports.Picture
	Consumed      []int32
	InitDoneCalls int
	FlushDone     int
	ResetDone     int
	Errors        []error
}

// ProvideCall records one ProvidePictureBuffers call.
type ProvideCall struct {
	Count int
	Dims  ports.Dimension
	Kind  ports.TargetKind
}

func (m *DecoderClient) ProvidePictureBuffers(count int, dims ports.Dimension, kind ports.TargetKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ProvideCalls = append(m.ProvideCalls, ProvideCall{Count: count, Dims: dims, Kind: kind})
}

func (m *DecoderClient) DismissPictureBuffer(bufferID int32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Dismissed = append(m.Dismissed, bufferID)
}

func (m *DecoderClient) PictureReady(pic ports.Picture) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Pictures = append(m.Pictures, pic)
}

func (m *DecoderClient) NotifyInitializeDone() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InitDoneCalls++
}

func (m *DecoderClient) NotifyEndOfBitstreamBuffer(unitID int32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Consumed = append(m.Consumed, unitID)
}

func (m *DecoderClient) NotifyFlushDone() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FlushDone++
}

func (m *DecoderClient) NotifyResetDone() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ResetDone++
}

func (m *DecoderClient) NotifyError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Errors = append(m.Errors, err)
}

// PictureCount returns the number of delivered pictures.
func (m *DecoderClient) PictureCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Pictures)
}

// FlushDoneCount returns the number of NotifyFlushDone calls.
func (m *DecoderClient) FlushDoneCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.FlushDone
}

// ConsumedCount returns the number of NotifyEndOfBitstreamBuffer calls.
func (m *DecoderClient) ConsumedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Consumed)
}

// ErrorCount returns the number of NotifyError calls.
func (m *DecoderClient) ErrorCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Errors)
}

// ResetDoneCount returns the number of NotifyResetDone calls.
func (m *DecoderClient) ResetDoneCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ResetDone
}

var _ ports.DecoderClient = (*DecoderClient)(nil)
