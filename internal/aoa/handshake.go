package aoa

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/danmuck/aoalink/internal/logging"
)

var (
	ErrNotConnected    = errors.New("aoa: device not connected")
	ErrNotConfigured   = errors.New("aoa: device not configured")
	ErrProtocolVersion = errors.New("aoa: accessory protocol not supported")
	ErrNoEndpoints     = errors.New("aoa: bulk endpoints not found")
)

const (
	requestTypeVendorIn  = 0xC0
	requestTypeVendorOut = 0x40

	requestGetProtocol = 51
	requestSendString  = 52
	requestStart       = 53
)

// Connect finds the device and returns a Bridge to it in accessory mode. An
// unconfigured device is put through the handshake; one already in accessory mode is
// reset so the accessory app comes back to the foreground. Either way the device
// re-enumerates and is opened afresh.
func Connect(ctx context.Context, bus Bus, cfg Config) (*Bridge, error) {
	cfg = cfg.WithDefaults()

	dev, configured, err := detect(ctx, bus, cfg)
	if err != nil {
		return nil, err
	}
	if configured {
		logging.Infof("aoa.Connect already in accessory mode vid=%04x pid=%04x; resetting", dev.VendorID(), dev.ProductID())
		if err := dev.Reset(); err != nil {
			logging.Warnf("aoa.Connect reset failed err=%v", err)
		}
		_ = dev.Close()
		if err := sleep(ctx, cfg.DetectInterval); err != nil {
			return nil, err
		}
	} else {
		logging.Infof("aoa.Connect starting handshake vid=%04x pid=%04x", dev.VendorID(), dev.ProductID())
		err := Handshake(dev, cfg)
		_ = dev.Close()
		if err != nil {
			return nil, err
		}
	}

	dev, err = waitConfigured(ctx, bus, cfg)
	if err != nil {
		return nil, err
	}
	b, err := Open(dev, cfg)
	if err != nil {
		_ = dev.Close()
		return nil, err
	}
	return b, nil
}

// Handshake reads the accessory protocol version, sends the identity strings and
// asks the device to restart in accessory mode.
func Handshake(dev Device, cfg Config) error {
	timeout := cfg.TransferTimeout

	buf := make([]byte, 2)
	n, err := dev.Control(requestTypeVendorIn, requestGetProtocol, 0, 0, buf, timeout)
	if err != nil {
		return fmt.Errorf("aoa: get protocol: %w", err)
	}
	if n != len(buf) {
		return fmt.Errorf("%w: short version reply (%d bytes)", ErrProtocolVersion, n)
	}
	version := binary.LittleEndian.Uint16(buf)
	if version < 1 {
		return fmt.Errorf("%w: version=%d", ErrProtocolVersion, version)
	}
	logging.Debugf("aoa.Handshake protocol version=%d", version)

	for i, s := range cfg.Identity.strings() {
		data := append([]byte(s), 0)
		n, err := dev.Control(requestTypeVendorOut, requestSendString, 0, uint16(i), data, timeout)
		if err != nil {
			return fmt.Errorf("aoa: send string %d: %w", i, err)
		}
		if n != len(data) {
			return fmt.Errorf("aoa: send string %d: wrote %d of %d bytes", i, n, len(data))
		}
	}

	if _, err := dev.Control(requestTypeVendorOut, requestStart, 0, 0, nil, timeout); err != nil {
		return fmt.Errorf("aoa: start accessory: %w", err)
	}
	return nil
}

// detect looks for a device in accessory mode first and an unconfigured one second,
// retrying up to DetectAttempts times.
func detect(ctx context.Context, bus Bus, cfg Config) (Device, bool, error) {
	for attempt := 1; ; attempt++ {
		dev, err := bus.Open(ctx, cfg.isAccessory)
		if err != nil {
			return nil, false, err
		}
		if dev != nil {
			return dev, true, nil
		}
		dev, err = bus.Open(ctx, cfg.isUnconfigured)
		if err != nil {
			return nil, false, err
		}
		if dev != nil {
			return dev, false, nil
		}
		if attempt >= cfg.DetectAttempts {
			return nil, false, fmt.Errorf("%w: vid=%04x pid=%04x", ErrNotConnected, cfg.VendorID, cfg.ProductID)
		}
		logging.Debugf("aoa.detect no device attempt=%d/%d", attempt, cfg.DetectAttempts)
		if err := sleep(ctx, cfg.DetectInterval); err != nil {
			return nil, false, err
		}
	}
}

func waitConfigured(ctx context.Context, bus Bus, cfg Config) (Device, error) {
	for attempt := 1; ; attempt++ {
		dev, err := bus.Open(ctx, cfg.isAccessory)
		if err != nil {
			return nil, err
		}
		if dev != nil {
			logging.Infof("aoa.waitConfigured accessory mode pid=%04x", dev.ProductID())
			return dev, nil
		}
		if attempt >= cfg.DetectAttempts {
			return nil, ErrNotConfigured
		}
		if err := sleep(ctx, cfg.DetectInterval); err != nil {
			return nil, err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
