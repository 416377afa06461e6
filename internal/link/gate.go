package link

import (
	"io"
	"sync"

	"github.com/danmuck/aoalink/internal/logging"
	"github.com/danmuck/aoalink/internal/observability"
	"github.com/danmuck/aoalink/internal/protocol"
	"github.com/danmuck/aoalink/internal/protocol/frame"
)

// WriteGate serializes outbound frames. A frame is written whole or not at all
// relative to other submitters, and teardown waits for any write in flight.
type WriteGate struct {
	mu      sync.Mutex
	w       io.Writer
	closed  bool
	onFatal func(error)
}

func newWriteGate(onFatal func(error)) *WriteGate {
	return &WriteGate{onFatal: onFatal}
}

func (g *WriteGate) attach(w io.Writer) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return
	}
	g.w = w
}

// detach blocks until an in-flight write finishes, then refuses further writes.
func (g *WriteGate) detach() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.w = nil
	g.closed = true
}

// Submit writes one frame carrying payload. It returns false when no transport is
// attached, when the payload size is invalid, or when the write fails. A write that
// finds the device gone asks the owning session to shut down.
func (g *WriteGate) Submit(payload []byte) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	protocol.Assertf(!g.closed && g.w != nil, "write submitted without an attached transport")
	if g.closed || g.w == nil {
		logging.Warnf("link.WriteGate.Submit rejected size=%d err=%v", len(payload), protocol.ErrMisuse)
		observability.RecordWriteFailure(protocol.KindMisuse.String())
		return false
	}

	if err := frame.Write(g.w, payload); err != nil {
		kind := protocol.Classify(err)
		observability.RecordWriteFailure(kind.String())
		if kind == protocol.KindDeviceAbsent {
			logging.Warnf("link.WriteGate.Submit device gone size=%d err=%v", len(payload), err)
			if g.onFatal != nil {
				g.onFatal(err)
			}
			return false
		}
		logging.Debugf("link.WriteGate.Submit failed size=%d kind=%s err=%v", len(payload), kind, err)
		return false
	}
	observability.RecordFrame(observability.DirectionOut, len(payload))
	return true
}
