package aoa

import (
	"context"
	"time"
)

// Endpoint describes one endpoint of an interface.
type Endpoint struct {
	Address uint8
	Bulk    bool
}

// In reports whether data flows from the device to the host.
func (e Endpoint) In() bool { return e.Address&0x80 != 0 }

// Device is an opened USB device.
type Device interface {
	VendorID() uint16
	ProductID() uint16
	Control(requestType, request uint8, value, index uint16, data []byte, timeout time.Duration) (int, error)
	Bulk(endpoint uint8, data []byte, timeout time.Duration) (int, error)
	Endpoints(iface uint8) ([]Endpoint, error)
	Claim(iface uint8) error
	Release(iface uint8) error
	Reset() error
	Close() error
}

// Bus finds and opens USB devices.
type Bus interface {
	// Open opens the first device for which match returns true. It returns
	// (nil, nil) when no device matches.
	Open(ctx context.Context, match func(vendorID, productID uint16) bool) (Device, error)
}
