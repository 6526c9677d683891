// Package fragmenter scans encoded byte streams and yields decodable unit
// boundaries. Two container forms are supported: start-code-delimited NAL
// streams (H.264 Annex B) and length-prefixed IVF frames (VP8). A
// fragmenter holds no state beyond the cursor its caller passes in.
package fragmenter

import (
	"encoding/binary"
	"errors"

	"github.com/user/decodebench/pkg/ports"
)

var (
	// ErrMalformedStream is returned when the stream violates the container
	// format's framing assumptions.
	ErrMalformedStream = errors.New("fragmenter: malformed stream")

	// ErrNoStreamParams is returned when an Annex B stream contains no
	// sequence parameter set, so decoding cannot usefully begin.
	ErrNoStreamParams = errors.New("fragmenter: no stream parameter set found")
)

// Fragmenter yields successive decodable units from an encoded stream.
type Fragmenter interface {
	// First returns the first decodable unit at or after pos, the cursor
	// past it, and the number of units skipped to reach it.
	First(pos int) (data []byte, end int, skipped int, err error)

	// Next returns the unit starting at pos and the cursor past it. The
	// caller is responsible for not calling Next at end-of-stream.
	Next(pos int) (data []byte, end int, err error)
}

// ForProfile selects the fragmenter strategy for the stream's codec profile.
func ForProfile(profile ports.Profile, stream []byte) Fragmenter {
	if profile.Codec() == ports.CodecH264 {
		return &AnnexB{stream: stream}
	}
	return &IVF{stream: stream}
}

// AnnexB fragments a start-code-delimited H.264 NAL stream. A unit begins
// at a [0,0,0,1] marker and spans to the next marker or end of buffer.
type AnnexB struct {
	stream []byte
}

// NewAnnexB creates an Annex B fragmenter over stream.
func NewAnnexB(stream []byte) *AnnexB {
	return &AnnexB{stream: stream}
}

const nalTypeSPS = 7

// First skips forward, discarding units, until it finds a unit whose NAL
// type is the sequence parameter set.
func (f *AnnexB) First(pos int) (data []byte, end int, skipped int, err error) {
	end = pos
	for end+4 < len(f.stream) {
		if f.stream[end+4]&0x1f == nalTypeSPS {
			data, end, err = f.Next(end)
			return data, end, skipped, err
		}
		_, end, err = f.Next(end)
		if err != nil {
			return nil, pos, skipped, err
		}
		skipped++
	}
	return nil, pos, skipped, ErrNoStreamParams
}

// Next returns the NAL unit starting at pos.
func (f *AnnexB) Next(pos int) (data []byte, end int, err error) {
	if pos+4 > len(f.stream) || !atStartCode(f.stream, pos) {
		return nil, pos, ErrMalformedStream
	}
	end = pos + 4
	for end+4 <= len(f.stream) && !atStartCode(f.stream, end) {
		end++
	}
	// A tail shorter than a start code belongs to the last unit.
	if end+3 >= len(f.stream) {
		end = len(f.stream)
	}
	return f.stream[pos:end], end, nil
}

func atStartCode(b []byte, pos int) bool {
	return b[pos] == 0 && b[pos+1] == 0 && b[pos+2] == 0 && b[pos+3] == 1
}

// IVF header sizes: a 32-byte file header, then per-frame a 4-byte
// little-endian payload length followed by 8 bytes of timestamp, 12 in all.
const (
	ivfFileHeaderSize  = 32
	ivfFrameHeaderSize = 12
)

// IVF fragments a length-prefixed VP8 frame container.
type IVF struct {
	stream []byte
}

// NewIVF creates an IVF fragmenter over stream.
func NewIVF(stream []byte) *IVF {
	return &IVF{stream: stream}
}

// First skips the file header on the very first call. IVF never skips
// frames.
func (f *IVF) First(pos int) (data []byte, end int, skipped int, err error) {
	data, end, err = f.Next(pos)
	return data, end, 0, err
}

// Next returns the frame starting at pos. Frame payloads are returned
// without their container framing.
func (f *IVF) Next(pos int) (data []byte, end int, err error) {
	if pos == 0 {
		pos = ivfFileHeaderSize
	}
	if pos+ivfFrameHeaderSize > len(f.stream) {
		return nil, pos, ErrMalformedStream
	}
	size := int(binary.LittleEndian.Uint32(f.stream[pos:]))
	pos += ivfFrameHeaderSize
	if pos+size > len(f.stream) {
		return nil, pos, ErrMalformedStream
	}
	return f.stream[pos : pos+size], pos + size, nil
}
