// Package frame implements the 24-bit length-prefixed frame used on the accessory link.
//
// Wire layout: three size bytes, most significant first, followed by exactly size payload
// bytes. A frame with size zero carries no payload and marks the end of the stream.
package frame

import (
	"errors"
	"fmt"
	"io"

	"github.com/danmuck/aoalink/internal/protocol"
)

const (
	HeaderLen = 3
	// MaxSize is the largest payload the size header can describe.
	MaxSize = 0xFFFFFF
	// DefaultMaxStalls bounds consecutive zero-byte reads while filling a payload.
	DefaultMaxStalls = 16
)

var (
	ErrShortHeader   = errors.New("frame: short size header")
	ErrShortPayload  = errors.New("frame: short payload")
	ErrFrameTooLarge = errors.New("frame: payload too large")
	ErrInvalidSize   = errors.New("frame: invalid payload size")
	ErrNotReset      = errors.New("frame: buffer holds a decoded frame")
)

// Limits constrains decode memory use and stall tolerance.
type Limits struct {
	MaxPayload int
	MaxStalls  int
}

func DefaultLimits() Limits {
	return Limits{
		MaxPayload: MaxSize,
		MaxStalls:  DefaultMaxStalls,
	}
}

// WithDefaults fills unset or out of range fields.
func (l Limits) WithDefaults() Limits {
	if l.MaxPayload <= 0 || l.MaxPayload > MaxSize {
		l.MaxPayload = MaxSize
	}
	if l.MaxStalls <= 0 {
		l.MaxStalls = DefaultMaxStalls
	}
	return l
}

// Frame is a reusable decode buffer. Header and payload progress survive an
// incomplete read so the next Read continues where the last one stopped.
type Frame struct {
	header   [HeaderLen]byte
	headerN  int
	size     int
	filled   int
	payload  []byte
	complete bool
	// violation sticks until Reset; the stream cannot be resynchronised past it.
	violation error
}

func New() *Frame {
	return &Frame{}
}

// Size is the decoded payload length; zero until the header has been read.
func (f *Frame) Size() int {
	return f.size
}

// Payload returns the bytes read so far. The slice aliases the frame's buffer and is
// overwritten by the next Read after Reset.
func (f *Frame) Payload() []byte {
	return f.payload[:f.filled]
}

// Clone returns an owned copy of the payload.
func (f *Frame) Clone() []byte {
	out := make([]byte, f.filled)
	copy(out, f.payload[:f.filled])
	return out
}

// Complete reports whether a whole frame has been decoded.
func (f *Frame) Complete() bool {
	return f.complete
}

// IsSentinel reports whether the decoded frame is the end-of-stream marker.
func (f *Frame) IsSentinel() bool {
	return f.complete && f.size == 0
}

// Reset clears the frame for reuse and keeps the payload capacity.
func (f *Frame) Reset() {
	f.headerN = 0
	f.size = 0
	f.filled = 0
	f.complete = false
	f.violation = nil
	f.payload = f.payload[:0]
}

// EncodeHeader returns the size header for size. Only the low 24 bits are kept.
func EncodeHeader(size int) [HeaderLen]byte {
	return [HeaderLen]byte{
		byte(size >> 16),
		byte(size >> 8),
		byte(size),
	}
}

func DecodeHeader(b []byte) (int, error) {
	if len(b) != HeaderLen {
		return 0, fmt.Errorf("frame: invalid size header length: %d", len(b))
	}
	return int(b[0])<<16 | int(b[1])<<8 | int(b[2]), nil
}

// Read decodes one frame from r into f.
//
// The size header is taken from a single read attempt; fewer than three bytes yield
// protocol.ErrIncomplete with the partial header retained. The payload is accumulated
// across as many reads as the transport needs. Errors carrying ENODEV are returned as
// protocol.ErrDeviceAbsent, a size above limits is protocol.ErrProtocolViolation, and
// every other failure is protocol.ErrIncomplete. A protocol violation is repeated by
// every later Read until Reset.
func Read(r io.Reader, f *Frame, limits Limits) error {
	if f.violation != nil {
		return f.violation
	}
	if f.complete {
		return ErrNotReset
	}
	limits = limits.WithDefaults()

	if f.headerN < HeaderLen {
		n, err := r.Read(f.header[f.headerN:])
		if n > 0 {
			f.headerN += n
		}
		if f.headerN < HeaderLen {
			return classifyRead(err, ErrShortHeader, f.headerN, HeaderLen)
		}
		size, _ := DecodeHeader(f.header[:])
		if size > limits.MaxPayload {
			f.violation = fmt.Errorf("%w: %w: size=%d max=%d", protocol.ErrProtocolViolation, ErrFrameTooLarge, size, limits.MaxPayload)
			return f.violation
		}
		f.size = size
		f.filled = 0
		f.payload = grow(f.payload, size)
	}

	stalls := 0
	for f.filled < f.size {
		n, err := r.Read(f.payload[f.filled:f.size])
		if n > 0 {
			f.filled += n
			stalls = 0
		}
		if err != nil {
			if f.filled == f.size {
				break
			}
			return classifyRead(err, ErrShortPayload, f.filled, f.size)
		}
		if n <= 0 {
			stalls++
			if stalls >= limits.MaxStalls {
				return classifyRead(io.ErrNoProgress, ErrShortPayload, f.filled, f.size)
			}
		}
	}
	f.complete = true
	return nil
}

// Write sends the size header and payload as two writes, then flushes w when it
// buffers. A zero-length payload is rejected; use WriteSentinel to end the stream.
func Write(w io.Writer, payload []byte) error {
	size := len(payload)
	protocol.Assertf(size > 0 && size <= MaxSize, "size value out of bounds: %d", size)
	if size <= 0 || size > MaxSize {
		return fmt.Errorf("%w: size=%d", ErrInvalidSize, size)
	}
	header := EncodeHeader(size)
	if err := writeFull(w, header[:]); err != nil {
		return classifyWrite(err, "write size header")
	}
	if err := writeFull(w, payload); err != nil {
		return classifyWrite(err, "write payload")
	}
	return flush(w)
}

// WriteSentinel sends the zero-size end-of-stream frame.
func WriteSentinel(w io.Writer) error {
	var header [HeaderLen]byte
	if err := writeFull(w, header[:]); err != nil {
		return classifyWrite(err, "write sentinel")
	}
	return flush(w)
}

type flusher interface {
	Flush() error
}

func flush(w io.Writer) error {
	fl, ok := w.(flusher)
	if !ok {
		return nil
	}
	if err := fl.Flush(); err != nil {
		return classifyWrite(err, "flush")
	}
	return nil
}

func writeFull(w io.Writer, b []byte) error {
	n, err := w.Write(b)
	if err != nil {
		return err
	}
	if n != len(b) {
		return io.ErrShortWrite
	}
	return nil
}

func classifyRead(err, short error, got, want int) error {
	if err == nil {
		return protocol.Incomplete(fmt.Errorf("%w: got %d of %d bytes", short, got, want))
	}
	if protocol.IsDeviceAbsent(err) {
		if errors.Is(err, protocol.ErrDeviceAbsent) {
			return err
		}
		return protocol.DeviceAbsent(err)
	}
	return protocol.Incomplete(fmt.Errorf("%w: got %d of %d bytes: %w", short, got, want, err))
}

func classifyWrite(err error, op string) error {
	if protocol.IsDeviceAbsent(err) && !errors.Is(err, protocol.ErrDeviceAbsent) {
		return fmt.Errorf("frame: %s: %w", op, protocol.DeviceAbsent(err))
	}
	return fmt.Errorf("frame: %s: %w", op, err)
}

func grow(b []byte, n int) []byte {
	if cap(b) >= n {
		return b[:n]
	}
	return make([]byte, n)
}
