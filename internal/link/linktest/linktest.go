// Package linktest provides in-memory transports and consumers for exercising the
// link package without accessory hardware.
package linktest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/aoalink/internal/link"
	"github.com/danmuck/aoalink/internal/protocol/frame"
)

// ErrClosed is returned by Handle ends after Close.
var ErrClosed = errors.New("linktest: closed")

var (
	_ link.PeerProvider = (*Provider)(nil)
	_ link.Handle       = (*Handle)(nil)
	_ link.Consumer     = (*Recorder)(nil)
)

// Provider is a scripted PeerProvider.
type Provider struct {
	mu      sync.Mutex
	peers   []link.Peer
	handles map[string][]*Handle
	openErr error
	lists   int
	opens   int
}

func NewProvider() *Provider {
	return &Provider{handles: make(map[string][]*Handle)}
}

// AddPeer lists peer and serves the given handles, one per open, in order. Once they
// are used up the peer stays listed but fails to open.
func (p *Provider) AddPeer(peer link.Peer, handles ...*Handle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.peers = append(p.peers, peer)
	p.handles[peer.ID] = append(p.handles[peer.ID], handles...)
}

// SetOpenError makes OpenPeer fail with err until cleared with nil.
func (p *Provider) SetOpenError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.openErr = err
}

func (p *Provider) ListCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lists
}

func (p *Provider) OpenCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.opens
}

func (p *Provider) ListPeers(context.Context) ([]link.Peer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lists++
	return append([]link.Peer(nil), p.peers...), nil
}

func (p *Provider) OpenPeer(_ context.Context, peer link.Peer) (link.Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.opens++
	if p.openErr != nil {
		return nil, p.openErr
	}
	queue := p.handles[peer.ID]
	if len(queue) == 0 {
		return nil, errors.New("linktest: no handle for peer " + peer.ID)
	}
	p.handles[peer.ID] = queue[1:]
	return queue[0], nil
}

// Handle is an in-memory transport. Inbound bytes are supplied with Feed and
// outbound bytes are captured for Wire.
type Handle struct {
	mu       sync.Mutex
	cond     *sync.Cond
	inbound  []byte
	readErr  error
	writeErr error
	wire     bytes.Buffer
	writes   int

	readerClosed bool
	writerClosed bool
	closed       bool
}

func NewHandle() *Handle {
	h := &Handle{}
	h.cond = sync.NewCond(&h.mu)
	return h
}

// Feed queues b for the reader.
func (h *Handle) Feed(b []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.inbound = append(h.inbound, b...)
	h.cond.Broadcast()
}

// FeedFrames queues each payload as a frame, followed by the end-of-stream sentinel
// when sentinel is set.
func (h *Handle) FeedFrames(sentinel bool, payloads ...[]byte) {
	var buf bytes.Buffer
	for _, p := range payloads {
		if err := frame.Write(&buf, p); err != nil {
			panic(err)
		}
	}
	if sentinel {
		_ = frame.WriteSentinel(&buf)
	}
	h.Feed(buf.Bytes())
}

// FailReads makes reads return err once queued bytes are drained.
func (h *Handle) FailReads(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readErr = err
	h.cond.Broadcast()
}

// FailWrites makes every following write return err.
func (h *Handle) FailWrites(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.writeErr = err
}

// Wire returns a copy of everything written so far.
func (h *Handle) Wire() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]byte(nil), h.wire.Bytes()...)
}

func (h *Handle) Writes() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.writes
}

// Released reports whether the reader, the writer and the handle were all closed.
func (h *Handle) Released() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.readerClosed && h.writerClosed && h.closed
}

func (h *Handle) Reader() io.ReadCloser  { return handleReader{h} }
func (h *Handle) Writer() io.WriteCloser { return handleWriter{h} }

func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	h.cond.Broadcast()
	return nil
}

func (h *Handle) read(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for len(h.inbound) == 0 && h.readErr == nil && !h.readerClosed && !h.closed {
		h.cond.Wait()
	}
	if len(h.inbound) > 0 {
		n := copy(p, h.inbound)
		h.inbound = h.inbound[n:]
		return n, nil
	}
	if h.readErr != nil {
		return 0, h.readErr
	}
	return 0, ErrClosed
}

func (h *Handle) write(p []byte) (int, error) {
	h.mu.Lock()
	if h.writerClosed || h.closed {
		h.mu.Unlock()
		return 0, ErrClosed
	}
	if h.writeErr != nil {
		err := h.writeErr
		h.mu.Unlock()
		return 0, err
	}
	h.writes++
	h.wire.Write(p)
	h.mu.Unlock()
	// Give other writers a chance to interleave if nothing serializes them.
	runtime.Gosched()
	return len(p), nil
}

type handleReader struct{ h *Handle }

func (r handleReader) Read(p []byte) (int, error) { return r.h.read(p) }

func (r handleReader) Close() error {
	r.h.mu.Lock()
	defer r.h.mu.Unlock()
	r.h.readerClosed = true
	r.h.cond.Broadcast()
	return nil
}

type handleWriter struct{ h *Handle }

func (w handleWriter) Write(p []byte) (int, error) { return w.h.write(p) }

func (w handleWriter) Close() error {
	w.h.mu.Lock()
	defer w.h.mu.Unlock()
	w.h.writerClosed = true
	return nil
}

// Recorder is a link.Consumer that keeps copies of every frame.
type Recorder struct {
	mu        sync.Mutex
	frames    [][]byte
	closes    int
	lateFrame bool
	signal    chan struct{}
	closed    chan struct{}
}

func NewRecorder() *Recorder {
	return &Recorder{
		signal: make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
}

func (r *Recorder) OnFrameReceived(f *frame.Frame) {
	r.mu.Lock()
	if r.closes > 0 {
		r.lateFrame = true
	}
	r.frames = append(r.frames, f.Clone())
	r.mu.Unlock()
	r.notify()
}

func (r *Recorder) OnLinkClosed() {
	r.mu.Lock()
	r.closes++
	first := r.closes == 1
	r.mu.Unlock()
	if first {
		close(r.closed)
	}
	r.notify()
}

func (r *Recorder) notify() {
	select {
	case r.signal <- struct{}{}:
	default:
	}
}

func (r *Recorder) Frames() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]byte(nil), r.frames...)
}

func (r *Recorder) Closes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closes
}

// FrameAfterClose reports whether any frame arrived after a close notification.
func (r *Recorder) FrameAfterClose() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lateFrame
}

// WaitClosed fails t unless the first close arrives within timeout.
func (r *Recorder) WaitClosed(t testing.TB, timeout time.Duration) {
	t.Helper()
	select {
	case <-r.closed:
	case <-time.After(timeout):
		t.Fatalf("link not closed after %s", timeout)
	}
}

// WaitFor fails t unless cond holds within timeout. cond is evaluated after each
// callback and on a short tick.
func (r *Recorder) WaitFor(t testing.TB, timeout time.Duration, cond func(*Recorder) bool) {
	t.Helper()
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(5 * time.Millisecond)
	defer tick.Stop()
	for !cond(r) {
		select {
		case <-r.signal:
		case <-tick.C:
		case <-deadline.C:
			t.Fatalf("condition not met after %s", timeout)
		}
	}
}

// Eventually fails t unless cond holds within timeout.
func Eventually(t testing.TB, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met after %s", timeout)
		}
		time.Sleep(2 * time.Millisecond)
	}
}
