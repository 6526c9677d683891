package mocks

import (
	"sync"

	"github.com/user/decodebench/pkg/ports"
)

// Decoder is a mock implementation of ports.Decoder.
type Decoder struct {
	InitializeFunc           func(profile ports.Profile) error
	DecodeFunc               func(unit ports.BitstreamUnit)
	AssignPictureBuffersFunc func(buffers []ports.PictureBuffer)
	ReusePictureBufferFunc   func(bufferID int32)
	FlushFunc                func()
	ResetFunc                func()
	DestroyFunc              func()

	mu sync.Mutex

	// Recorded calls for verification
	InitializedWith []ports.Profile
	DecodedUnits    []int32
	AssignedBuffers [][]ports.PictureBuffer
	ReusedBuffers   []int32
	FlushCalls      int
	ResetCalls      int
	DestroyCalls    int
}

func (m *Decoder) Initialize(profile ports.Profile) error {
	m.mu.Lock()
	m.InitializedWith = append(m.InitializedWith, profile)
	m.mu.Unlock()
	if m.InitializeFunc != nil {
		return m.InitializeFunc(profile)
	}
	return nil
}

func (m *Decoder) Decode(unit ports.BitstreamUnit) {
	m.mu.Lock()
	m.DecodedUnits = append(m.DecodedUnits, unit.ID)
	m.mu.Unlock()
	if m.DecodeFunc != nil {
		m.DecodeFunc(unit)
	}
}

func (m *Decoder) AssignPictureBuffers(buffers []ports.PictureBuffer) {
	m.mu.Lock()
	m.AssignedBuffers = append(m.AssignedBuffers, buffers)
	m.mu.Unlock()
	if m.AssignPictureBuffersFunc != nil {
		m.AssignPictureBuffersFunc(buffers)
	}
}

func (m *Decoder) ReusePictureBuffer(bufferID int32) {
	m.mu.Lock()
	m.ReusedBuffers = append(m.ReusedBuffers, bufferID)
	m.mu.Unlock()
	if m.ReusePictureBufferFunc != nil {
		m.ReusePictureBufferFunc(bufferID)
	}
}

func (m *Decoder) Flush() {
	m.mu.Lock()
	m.FlushCalls++
	m.mu.Unlock()
	if m.FlushFunc != nil {
		m.FlushFunc()
	}
}

func (m *Decoder) Reset() {
	m.mu.Lock()
	m.ResetCalls++
	m.mu.Unlock()
	if m.ResetFunc != nil {
		m.ResetFunc()
	}
}

func (m *Decoder) Destroy() {
	m.mu.Lock()
	m.DestroyCalls++
	m.mu.Unlock()
	if m.DestroyFunc != nil {
		m.DestroyFunc()
	}
}

// DecodedCount returns the number of Decode calls.
func (m *Decoder) DecodedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.DecodedUnits)
}

var _ ports.Decoder = (*Decoder)(nil)
