// Package ports defines the interfaces between the decode harness and its
// collaborators: the hardware decoder backend, the presentation context and
// the logger. Concrete implementations live under pkg/adapters.
package ports

import "errors"

var (
	// ErrPlatformFailure is reported when the decoder hits an unrecoverable
	// platform-level condition.
	ErrPlatformFailure = errors.New("decoder: platform failure")

	// ErrInsufficientResources is reported when the platform cannot host
	// another decoder instance.
	ErrInsufficientResources = errors.New("decoder: insufficient resources")

	// ErrInvalidArgument is reported when the decoder is handed input it
	// cannot interpret.
	ErrInvalidArgument = errors.New("decoder: invalid argument")

	// ErrUnreadableInput is reported when the bitstream itself is broken.
	ErrUnreadableInput = errors.New("decoder: unreadable input")
)

// Dimension represents width and height in pixels.
type Dimension struct {
	Width  int
	Height int
}

// Profile identifies the codec profile a stream was encoded with. The
// numeric values match the test parameter grammar; H.264 profiles occupy the
// low range and VP8 sits above ProfileH264Max.
type Profile int32

const (
	ProfileH264Baseline Profile = 0
	ProfileH264Main     Profile = 1
	ProfileH264High     Profile = 4

	// ProfileH264Max is the exclusive upper bound of the H.264 range.
	ProfileH264Max Profile = 10

	ProfileVP8 Profile = 11
)

// Codec is the container family implied by a Profile.
type Codec int

const (
	CodecH264 Codec = iota
	CodecVP8
)

// Codec returns the codec family for the profile.
func (p Profile) Codec() Codec {
	if p < ProfileH264Max {
		return CodecH264
	}
	return CodecVP8
}

// BitstreamUnit is one fragment of compressed input handed to the decoder in
// a single Decode submission. The id is monotonically increasing modulo 2^30
// and must not be reused until the matching NotifyEndOfBitstreamBuffer.
type BitstreamUnit struct {
	ID   int32
	Data []byte
}

// PictureBuffer is one decoder-owned output slot, backed by a render target
// created on the presentation context.
type PictureBuffer struct {
	ID     int32
	Dims   Dimension
	Target TargetHandle
}

// Picture is one decoded, presentable image referencing a PictureBuffer.
type Picture struct {
	BufferID int32
	UnitID   int32
}

// Decoder is the asynchronous hardware decoder contract. All methods except
// Initialize are fire-and-forget; completion is reported through the
// DecoderClient callbacks. Implementations deliver every callback onto the
// event loop the instance was created with.
type Decoder interface {
	// Initialize configures the decoder for the given profile. A nil return
	// only means the request was accepted; NotifyInitializeDone signals
	// completion.
	Initialize(profile Profile) error

	// Decode submits one bitstream unit. Ownership of the unit transfers to
	// the decoder until NotifyEndOfBitstreamBuffer reports it consumed.
	Decode(unit BitstreamUnit)

	// AssignPictureBuffers hands the decoder the output buffers it asked for
	// via ProvidePictureBuffers.
	AssignPictureBuffers(buffers []PictureBuffer)

	// ReusePictureBuffer returns a delivered picture's buffer to the decoder.
	ReusePictureBuffer(bufferID int32)

	// Flush drains all queued input; NotifyFlushDone signals completion.
	Flush()

	// Reset drops all queued input and pictures; NotifyResetDone signals
	// completion. In-flight submissions may still report consumption.
	Reset()

	// Destroy releases the instance. No callbacks are delivered afterwards.
	// Safe to call more than once.
	Destroy()
}

// DecoderClient receives the decoder's callbacks. The throttled delivery
// wrapper and the decode driver both implement this; the throttled variant
// wraps and forwards to an inner DecoderClient.
type DecoderClient interface {
	// ProvidePictureBuffers asks the client to allocate count output buffers
	// of the given dimensions, each backed by a render target of targetKind.
	ProvidePictureBuffers(count int, dims Dimension, targetKind TargetKind)

	// DismissPictureBuffer tells the client the decoder no longer needs the
	// buffer and its render target may be released.
	DismissPictureBuffer(bufferID int32)

	// PictureReady delivers one decoded picture.
	PictureReady(pic Picture)

	// NotifyInitializeDone signals Initialize completion.
	NotifyInitializeDone()

	// NotifyEndOfBitstreamBuffer signals that the unit has been consumed and
	// its id may be reused.
	NotifyEndOfBitstreamBuffer(unitID int32)

	// NotifyFlushDone signals Flush completion.
	NotifyFlushDone()

	// NotifyResetDone signals Reset completion.
	NotifyResetDone()

	// NotifyError reports a fatal decoder condition. Terminal for the
	// instance.
	NotifyError(err error)
}
