package link

import "github.com/danmuck/aoalink/internal/protocol/frame"

// Consumer receives the results of a session.
//
// OnFrameReceived runs on the session worker and borrows the session's scratch frame;
// the payload is only valid until the callback returns, so use Frame.Clone to keep it.
// A slow callback delays the next read. OnLinkClosed is called exactly once per session
// and no frame follows it.
type Consumer interface {
	OnFrameReceived(f *frame.Frame)
	OnLinkClosed()
}

// ConsumerFuncs adapts plain functions to Consumer. Nil fields are skipped.
type ConsumerFuncs struct {
	Frame  func(f *frame.Frame)
	Closed func()
}

func (c ConsumerFuncs) OnFrameReceived(f *frame.Frame) {
	if c.Frame != nil {
		c.Frame(f)
	}
}

func (c ConsumerFuncs) OnLinkClosed() {
	if c.Closed != nil {
		c.Closed()
	}
}
