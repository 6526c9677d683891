package fragmenter

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/user/decodebench/pkg/ports"
)

// nalu builds a start-code-prefixed NAL unit with the given header byte and
// payload length.
func nalu(header byte, payloadLen int) []byte {
	unit := []byte{0, 0, 0, 1, header}
	return append(unit, bytes.Repeat([]byte{0xAA}, payloadLen)...)
}

const (
	hdrAUD = 0x09 // access unit delimiter, NAL type 9
	hdrSPS = 0x67 // sequence parameter set, NAL type 7
	hdrPPS = 0x68 // picture parameter set, NAL type 8
	hdrIDR = 0x65 // IDR slice, NAL type 5
	hdrSlc = 0x41 // non-IDR slice, NAL type 1
)

func TestForProfile(t *testing.T) {
	if _, ok := ForProfile(ports.ProfileH264Main, nil).(*AnnexB); !ok {
		t.Error("H.264 profile should select the Annex B fragmenter")
	}
	if _, ok := ForProfile(ports.ProfileVP8, nil).(*IVF); !ok {
		t.Error("VP8 profile should select the IVF fragmenter")
	}
}

func TestAnnexB_Next(t *testing.T) {
	stream := append(nalu(hdrSPS, 10), nalu(hdrIDR, 20)...)
	f := NewAnnexB(stream)

	data, end, err := f.Next(0)
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if len(data) != 15 {
		t.Errorf("first unit length = %d, want 15", len(data))
	}
	if end != 15 {
		t.Errorf("cursor = %d, want 15", end)
	}

	data, end, err = f.Next(end)
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if len(data) != 25 {
		t.Errorf("second unit length = %d, want 25", len(data))
	}
	if end != len(stream) {
		t.Errorf("cursor = %d, want end of stream %d", end, len(stream))
	}
}

func TestAnnexB_NextSwallowsShortTail(t *testing.T) {
	// Trailing bytes shorter than a start code belong to the last unit.
	stream := append(nalu(hdrSlc, 8), 0x00, 0x00)
	f := NewAnnexB(stream)

	data, end, err := f.Next(0)
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if end != len(stream) {
		t.Errorf("cursor = %d, want %d", end, len(stream))
	}
	if len(data) != len(stream) {
		t.Errorf("unit length = %d, want %d", len(data), len(stream))
	}
}

func TestAnnexB_NextRejectsMissingStartCode(t *testing.T) {
	f := NewAnnexB([]byte{0xDE, 0xAD, 0xBE, 0xEF, 0x00})
	if _, _, err := f.Next(0); !errors.Is(err, ErrMalformedStream) {
		t.Errorf("expected ErrMalformedStream, got %v", err)
	}
}

func TestAnnexB_FirstSkipsToStreamParams(t *testing.T) {
	var stream []byte
	stream = append(stream, nalu(hdrAUD, 2)...)
	stream = append(stream, nalu(hdrSlc, 5)...)
	spsStart := len(stream)
	stream = append(stream, nalu(hdrSPS, 6)...)
	stream = append(stream, nalu(hdrPPS, 3)...)

	f := NewAnnexB(stream)
	data, end, skipped, err := f.First(0)
	if err != nil {
		t.Fatalf("First failed: %v", err)
	}
	if skipped != 2 {
		t.Errorf("skipped = %d, want 2", skipped)
	}
	if data[4] != hdrSPS {
		t.Errorf("first unit header = %#x, want SPS", data[4])
	}
	if end != spsStart+11 {
		t.Errorf("cursor = %d, want %d", end, spsStart+11)
	}
}

func TestAnnexB_FirstNoStreamParams(t *testing.T) {
	stream := append(nalu(hdrAUD, 4), nalu(hdrSlc, 4)...)
	f := NewAnnexB(stream)
	if _, _, _, err := f.First(0); !errors.Is(err, ErrNoStreamParams) {
		t.Errorf("expected ErrNoStreamParams, got %v", err)
	}
}

// ivfStream builds an IVF container with the given frame payload sizes.
func ivfStream(frameSizes ...int) []byte {
	stream := make([]byte, ivfFileHeaderSize)
	copy(stream, "DKIF")
	for i, size := range frameSizes {
		hdr := make([]byte, ivfFrameHeaderSize)
		binary.LittleEndian.PutUint32(hdr, uint32(size))
		stream = append(stream, hdr...)
		stream = append(stream, bytes.Repeat([]byte{byte(i + 1)}, size)...)
	}
	return stream
}

func TestIVF_FirstSkipsFileHeader(t *testing.T) {
	f := NewIVF(ivfStream(40, 25))

	data, end, skipped, err := f.First(0)
	if err != nil {
		t.Fatalf("First failed: %v", err)
	}
	if skipped != 0 {
		t.Errorf("skipped = %d, want 0", skipped)
	}
	if len(data) != 40 {
		t.Errorf("frame length = %d, want 40", len(data))
	}
	if want := ivfFileHeaderSize + ivfFrameHeaderSize + 40; end != want {
		t.Errorf("cursor = %d, want %d", end, want)
	}
}

func TestIVF_NextWalksFrames(t *testing.T) {
	sizes := []int{10, 20, 30}
	stream := ivfStream(sizes...)
	f := NewIVF(stream)

	pos := 0
	for i, size := range sizes {
		data, end, err := f.Next(pos)
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if len(data) != size {
			t.Errorf("frame %d length = %d, want %d", i, len(data), size)
		}
		pos = end
	}
	if pos != len(stream) {
		t.Errorf("cursor = %d, want end of stream %d", pos, len(stream))
	}
}

func TestIVF_NextTruncated(t *testing.T) {
	stream := ivfStream(16)
	f := NewIVF(stream[:len(stream)-4])
	if _, _, err := f.Next(0); !errors.Is(err, ErrMalformedStream) {
		t.Errorf("expected ErrMalformedStream, got %v", err)
	}
}
