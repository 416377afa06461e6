package aoa

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"syscall"
	"time"

	"github.com/danmuck/aoalink/internal/logging"
	"github.com/danmuck/aoalink/internal/protocol"
	"github.com/danmuck/aoalink/internal/protocol/frame"
)

// usbfs caps a single bulk transfer at 16 KiB on many kernels.
const maxBulkTransfer = 16 * 1024

// Bridge exchanges frames with an accessory-mode device.
type Bridge struct {
	dev     Device
	out     uint8
	in      uint8
	timeout time.Duration
	retries int
	limits  frame.Limits

	wmu    sync.Mutex
	closed bool

	rmu sync.Mutex
}

// Open claims interface 0 of an accessory-mode device and locates its first bulk
// OUT and IN endpoints.
func Open(dev Device, cfg Config) (*Bridge, error) {
	cfg = cfg.WithDefaults()
	eps, err := dev.Endpoints(0)
	if err != nil {
		return nil, fmt.Errorf("aoa: endpoints: %w", err)
	}
	var out, in *Endpoint
	for i := range eps {
		ep := &eps[i]
		if !ep.Bulk {
			continue
		}
		if ep.In() && in == nil {
			in = ep
		}
		if !ep.In() && out == nil {
			out = ep
		}
	}
	if out == nil || in == nil {
		return nil, ErrNoEndpoints
	}
	if err := dev.Claim(0); err != nil {
		return nil, fmt.Errorf("aoa: claim interface 0: %w", err)
	}
	logging.Infof("aoa.Open endpoints out=%#02x in=%#02x", out.Address, in.Address)
	return &Bridge{
		dev:     dev,
		out:     out.Address,
		in:      in.Address,
		timeout: cfg.TransferTimeout,
		retries: cfg.HeaderRetries,
		limits:  frame.DefaultLimits(),
	}, nil
}

// WriteFrame sends payload as one frame. A size header write that times out is
// retried up to the configured HeaderRetries; any other failure is returned.
func (b *Bridge) WriteFrame(payload []byte) error {
	b.wmu.Lock()
	defer b.wmu.Unlock()
	if b.closed {
		return fmt.Errorf("aoa: write frame: %w", protocol.ErrMisuse)
	}
	size := len(payload)
	if size <= 0 || size > frame.MaxSize {
		return fmt.Errorf("%w: size=%d", frame.ErrInvalidSize, size)
	}

	header := frame.EncodeHeader(size)
	for attempt := 1; ; attempt++ {
		err := b.bulkOut(header[:])
		if err == nil {
			break
		}
		if !errors.Is(err, syscall.ETIMEDOUT) {
			return classify(err, "write size header")
		}
		if attempt > b.retries {
			return fmt.Errorf("aoa: write size header: %d timeouts: %w", attempt, err)
		}
		logging.Debugf("aoa.Bridge.WriteFrame header timeout attempt=%d", attempt)
	}
	if err := b.bulkOut(payload); err != nil {
		return classify(err, "write payload")
	}
	return nil
}

// ReadFrame reads one frame sent back by the accessory. A timeout returns
// protocol.ErrIncomplete and f resumes on the next call.
func (b *Bridge) ReadFrame(f *frame.Frame) error {
	b.rmu.Lock()
	defer b.rmu.Unlock()
	return frame.Read(endpointReader{b: b}, f, b.limits)
}

// Close ends the stream with the sentinel frame and releases the device.
func (b *Bridge) Close() error {
	b.wmu.Lock()
	defer b.wmu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	var sentinel [frame.HeaderLen]byte
	err := b.bulkOut(sentinel[:])
	if err != nil {
		err = classify(err, "write sentinel")
	}
	if rerr := b.dev.Release(0); rerr != nil {
		logging.Debugf("aoa.Bridge.Close release err=%v", rerr)
	}
	if cerr := b.dev.Close(); err == nil {
		err = cerr
	}
	return err
}

func (b *Bridge) bulkOut(p []byte) error {
	for len(p) > 0 {
		chunk := p
		if len(chunk) > maxBulkTransfer {
			chunk = chunk[:maxBulkTransfer]
		}
		n, err := b.dev.Bulk(b.out, chunk, b.timeout)
		if err != nil {
			return err
		}
		if n <= 0 {
			return io.ErrShortWrite
		}
		p = p[n:]
	}
	return nil
}

type endpointReader struct {
	b *Bridge
}

func (r endpointReader) Read(p []byte) (int, error) {
	if len(p) > maxBulkTransfer {
		p = p[:maxBulkTransfer]
	}
	return r.b.dev.Bulk(r.b.in, p, r.b.timeout)
}

func classify(err error, op string) error {
	if protocol.IsDeviceAbsent(err) && !errors.Is(err, protocol.ErrDeviceAbsent) {
		return fmt.Errorf("aoa: %s: %w", op, protocol.DeviceAbsent(err))
	}
	return fmt.Errorf("aoa: %s: %w", op, err)
}
