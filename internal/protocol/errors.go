package protocol

import (
	"errors"
	"fmt"
	"syscall"
)

var (
	// ErrIncomplete marks a recoverable short or failed read; the caller retries after a cooldown.
	ErrIncomplete = errors.New("protocol: incomplete frame")
	// ErrDeviceAbsent marks a physically disconnected peer.
	ErrDeviceAbsent = errors.New("protocol: device not present")
	// ErrProtocolViolation marks a stream that can no longer be trusted to be in sync.
	ErrProtocolViolation = errors.New("protocol: protocol violation")
	// ErrMisuse marks a call made without an attached transport.
	ErrMisuse = errors.New("protocol: transport not attached")
)

// Kind is the class an error falls into for session handling.
type Kind int

const (
	KindNone Kind = iota
	KindTransient
	KindDeviceAbsent
	KindProtocolViolation
	KindMisuse
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindTransient:
		return "transient"
	case KindDeviceAbsent:
		return "device_absent"
	case KindProtocolViolation:
		return "protocol_violation"
	case KindMisuse:
		return "misuse"
	default:
		return "unknown"
	}
}

// Classify maps err onto a Kind. Anything not recognised is transient.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case IsDeviceAbsent(err):
		return KindDeviceAbsent
	case errors.Is(err, ErrProtocolViolation):
		return KindProtocolViolation
	case errors.Is(err, ErrMisuse):
		return KindMisuse
	default:
		return KindTransient
	}
}

// IsDeviceAbsent reports whether err carries a no-such-device condition.
func IsDeviceAbsent(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrDeviceAbsent) || errors.Is(err, syscall.ENODEV)
}

// IsFatal reports whether err must end the session.
func IsFatal(err error) bool {
	k := Classify(err)
	return k == KindDeviceAbsent || k == KindProtocolViolation
}

// DeviceAbsent wraps err as a device-absent failure.
func DeviceAbsent(err error) error {
	if err == nil {
		return ErrDeviceAbsent
	}
	return fmt.Errorf("%w: %w", ErrDeviceAbsent, err)
}

// Incomplete wraps err as a recoverable read failure.
func Incomplete(err error) error {
	if err == nil {
		return ErrIncomplete
	}
	return fmt.Errorf("%w: %w", ErrIncomplete, err)
}
