package aoa

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/danmuck/aoalink/internal/protocol"
	"github.com/danmuck/aoalink/internal/protocol/frame"
	"github.com/danmuck/aoalink/internal/testutil/testlog"
)

type controlCall struct {
	requestType uint8
	request     uint8
	index       uint16
	data        []byte
}

type fakeDevice struct {
	mu       sync.Mutex
	vid, pid uint16
	version  uint16
	eps      []Endpoint

	controls       []controlCall
	wire           bytes.Buffer
	bulkWrites     int
	headerTimeouts int
	writeErr       error
	inbound        [][]byte
	inErr          error

	onStart  func()
	claimed  bool
	released bool
	resets   int
	closed   bool
}

func newAccessoryDevice() *fakeDevice {
	return &fakeDevice{
		vid: GoogleVendorID,
		pid: ProductAccessoryADB,
		eps: []Endpoint{{Address: 0x83, Bulk: false}, {Address: 0x81, Bulk: true}, {Address: 0x02, Bulk: true}},
	}
}

func (d *fakeDevice) VendorID() uint16  { return d.vid }
func (d *fakeDevice) ProductID() uint16 { return d.pid }

func (d *fakeDevice) Control(requestType, request uint8, _, index uint16, data []byte, _ time.Duration) (int, error) {
	d.mu.Lock()
	d.controls = append(d.controls, controlCall{requestType, request, index, append([]byte(nil), data...)})
	onStart := d.onStart
	d.mu.Unlock()
	switch request {
	case requestGetProtocol:
		data[0] = byte(d.version)
		data[1] = byte(d.version >> 8)
		return 2, nil
	case requestStart:
		if onStart != nil {
			onStart()
		}
		return 0, nil
	}
	return len(data), nil
}

func (d *fakeDevice) Bulk(endpoint uint8, data []byte, _ time.Duration) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if endpoint&0x80 != 0 {
		if len(d.inbound) == 0 {
			if d.inErr != nil {
				return 0, d.inErr
			}
			return 0, syscall.ETIMEDOUT
		}
		n := copy(data, d.inbound[0])
		d.inbound[0] = d.inbound[0][n:]
		if len(d.inbound[0]) == 0 {
			d.inbound = d.inbound[1:]
		}
		return n, nil
	}
	if d.writeErr != nil {
		return 0, d.writeErr
	}
	if d.headerTimeouts > 0 && len(data) == frame.HeaderLen {
		d.headerTimeouts--
		return 0, syscall.ETIMEDOUT
	}
	d.bulkWrites++
	d.wire.Write(data)
	return len(data), nil
}

func (d *fakeDevice) Endpoints(uint8) ([]Endpoint, error) { return d.eps, nil }
func (d *fakeDevice) Claim(uint8) error                   { d.claimed = true; return nil }
func (d *fakeDevice) Release(uint8) error                 { d.released = true; return nil }
func (d *fakeDevice) Reset() error                        { d.resets++; return nil }
func (d *fakeDevice) Close() error                        { d.closed = true; return nil }

type fakeBus struct {
	mu      sync.Mutex
	devices []*fakeDevice
	opens   int
}

func (b *fakeBus) set(devs ...*fakeDevice) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.devices = devs
}

func (b *fakeBus) Open(_ context.Context, match func(uint16, uint16) bool) (Device, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.opens++
	for _, d := range b.devices {
		if match(d.vid, d.pid) {
			return d, nil
		}
	}
	return nil, nil
}

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.DetectAttempts = 3
	cfg.DetectInterval = time.Millisecond
	return cfg
}

func TestHandshakeSequence(t *testing.T) {
	testlog.Start(t)
	dev := &fakeDevice{vid: GoogleVendorID, pid: DefaultUnconfiguredProductID, version: 2}
	cfg := fastConfig()
	if err := Handshake(dev, cfg); err != nil {
		t.Fatalf("handshake: %v", err)
	}

	if len(dev.controls) != 8 {
		t.Fatalf("expected 8 control transfers, got %d", len(dev.controls))
	}
	if c := dev.controls[0]; c.requestType != requestTypeVendorIn || c.request != requestGetProtocol {
		t.Fatalf("unexpected first transfer %+v", c)
	}
	for i, s := range cfg.Identity.strings() {
		c := dev.controls[i+1]
		if c.request != requestSendString || c.index != uint16(i) || c.requestType != requestTypeVendorOut {
			t.Fatalf("unexpected string transfer %d: %+v", i, c)
		}
		if want := append([]byte(s), 0); !bytes.Equal(c.data, want) {
			t.Fatalf("string %d: got %q want %q", i, c.data, want)
		}
	}
	if c := dev.controls[7]; c.request != requestStart {
		t.Fatalf("expected start request, got %+v", c)
	}
}

func TestHandshakeRejectsVersionZero(t *testing.T) {
	testlog.Start(t)
	dev := &fakeDevice{vid: GoogleVendorID, pid: DefaultUnconfiguredProductID}
	if err := Handshake(dev, fastConfig()); !errors.Is(err, ErrProtocolVersion) {
		t.Fatalf("expected protocol version error, got %v", err)
	}
	if len(dev.controls) != 1 {
		t.Fatalf("handshake must stop after version check")
	}
}

func TestConnectUnconfiguredDevice(t *testing.T) {
	testlog.Start(t)
	bus := &fakeBus{}
	acc := newAccessoryDevice()
	raw := &fakeDevice{vid: GoogleVendorID, pid: DefaultUnconfiguredProductID, version: 2}
	raw.onStart = func() { bus.set(acc) }
	bus.set(raw)

	b, err := Connect(context.Background(), bus, fastConfig())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if !raw.closed {
		t.Fatalf("unconfigured handle must be closed after the handshake")
	}
	if !acc.claimed || b.out != 0x02 || b.in != 0x81 {
		t.Fatalf("unexpected bridge out=%#x in=%#x claimed=%v", b.out, b.in, acc.claimed)
	}
}

func TestConnectConfiguredDeviceResets(t *testing.T) {
	testlog.Start(t)
	acc := newAccessoryDevice()
	bus := &fakeBus{}
	bus.set(acc)

	if _, err := Connect(context.Background(), bus, fastConfig()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if acc.resets != 1 {
		t.Fatalf("expected one reset, got %d", acc.resets)
	}
	if len(acc.controls) != 0 {
		t.Fatalf("configured device must not be handshaken again")
	}
}

func TestConnectNotConnected(t *testing.T) {
	testlog.Start(t)
	bus := &fakeBus{}
	_, err := Connect(context.Background(), bus, fastConfig())
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected not connected, got %v", err)
	}
	if bus.opens != 6 {
		t.Fatalf("expected 3 attempts of 2 lookups, got %d", bus.opens)
	}
}

func TestConnectNotConfigured(t *testing.T) {
	testlog.Start(t)
	bus := &fakeBus{}
	bus.set(&fakeDevice{vid: GoogleVendorID, pid: DefaultUnconfiguredProductID, version: 1})
	if _, err := Connect(context.Background(), bus, fastConfig()); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected not configured, got %v", err)
	}
}

func TestOpenWithoutBulkEndpoints(t *testing.T) {
	testlog.Start(t)
	dev := newAccessoryDevice()
	dev.eps = []Endpoint{{Address: 0x81, Bulk: true}}
	if _, err := Open(dev, fastConfig()); !errors.Is(err, ErrNoEndpoints) {
		t.Fatalf("expected no endpoints, got %v", err)
	}
}

func openBridge(t *testing.T) (*Bridge, *fakeDevice) {
	t.Helper()
	dev := newAccessoryDevice()
	b, err := Open(dev, fastConfig())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return b, dev
}

func TestWriteFrameRetriesHeaderTimeout(t *testing.T) {
	testlog.Start(t)
	b, dev := openBridge(t)
	dev.headerTimeouts = 2
	if err := b.WriteFrame([]byte{1, 2, 3, 4, 5}); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	if got, want := dev.wire.Bytes(), []byte{0, 0, 5, 1, 2, 3, 4, 5}; !bytes.Equal(got, want) {
		t.Fatalf("wire got=%v want=%v", got, want)
	}
}

func TestWriteFrameGivesUpAfterHeaderRetries(t *testing.T) {
	testlog.Start(t)
	dev := newAccessoryDevice()
	cfg := fastConfig()
	cfg.HeaderRetries = 3
	b, err := Open(dev, cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	dev.headerTimeouts = 1000
	err = b.WriteFrame([]byte{1})
	if !errors.Is(err, syscall.ETIMEDOUT) {
		t.Fatalf("expected timeout after retries, got %v", err)
	}
	if got := 1000 - dev.headerTimeouts; got != 4 {
		t.Fatalf("expected 1 write plus 3 retries, got %d", got)
	}
	if dev.wire.Len() != 0 {
		t.Fatalf("payload must not follow a missing header")
	}
}

func TestWriteFrameChunksLargePayload(t *testing.T) {
	testlog.Start(t)
	b, dev := openBridge(t)
	payload := bytes.Repeat([]byte{0x5A}, 3*maxBulkTransfer+7)
	if err := b.WriteFrame(payload); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	if dev.bulkWrites != 1+4 {
		t.Fatalf("expected header plus 4 payload transfers, got %d", dev.bulkWrites)
	}
	if dev.wire.Len() != frame.HeaderLen+len(payload) {
		t.Fatalf("unexpected wire length %d", dev.wire.Len())
	}
}

func TestWriteFrameDeviceGone(t *testing.T) {
	testlog.Start(t)
	b, dev := openBridge(t)
	dev.writeErr = syscall.ENODEV
	if err := b.WriteFrame([]byte("x")); !errors.Is(err, protocol.ErrDeviceAbsent) {
		t.Fatalf("expected device absent, got %v", err)
	}
}

func TestWriteFrameRejectsEmpty(t *testing.T) {
	testlog.Start(t)
	b, _ := openBridge(t)
	if err := b.WriteFrame(nil); !errors.Is(err, frame.ErrInvalidSize) {
		t.Fatalf("expected invalid size, got %v", err)
	}
}

func TestReadFrameResumesAfterTimeout(t *testing.T) {
	testlog.Start(t)
	b, dev := openBridge(t)
	dev.inbound = [][]byte{{0, 0, 4}, {9, 8}}

	f := frame.New()
	if err := b.ReadFrame(f); !errors.Is(err, protocol.ErrIncomplete) {
		t.Fatalf("expected incomplete, got %v", err)
	}
	dev.mu.Lock()
	dev.inbound = [][]byte{{7, 6}}
	dev.mu.Unlock()
	if err := b.ReadFrame(f); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if !bytes.Equal(f.Payload(), []byte{9, 8, 7, 6}) {
		t.Fatalf("unexpected payload %v", f.Payload())
	}
}

func TestCloseSendsSentinel(t *testing.T) {
	testlog.Start(t)
	b, dev := openBridge(t)
	if err := b.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !bytes.Equal(dev.wire.Bytes(), []byte{0, 0, 0}) {
		t.Fatalf("expected sentinel, got %v", dev.wire.Bytes())
	}
	if !dev.released || !dev.closed {
		t.Fatalf("expected interface released and device closed")
	}
	if err := b.WriteFrame([]byte("late")); !errors.Is(err, protocol.ErrMisuse) {
		t.Fatalf("expected misuse after close, got %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}
