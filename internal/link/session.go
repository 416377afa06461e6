package link

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/xid"

	"github.com/danmuck/aoalink/internal/logging"
	"github.com/danmuck/aoalink/internal/observability"
	"github.com/danmuck/aoalink/internal/protocol"
	"github.com/danmuck/aoalink/internal/protocol/frame"
)

type task uint8

const (
	taskAttach task = iota
	taskRead
	taskStop
)

func (t task) String() string {
	switch t {
	case taskAttach:
		return "attach"
	case taskRead:
		return "read"
	case taskStop:
		return "stop"
	default:
		return "unknown"
	}
}

// At most one attach-or-read task and one stop task are pending at any time.
const taskQueueSize = 4

// Session is one attach, communicate, detach cycle. A single worker goroutine runs
// every task; the only work done elsewhere is WriteGate.Submit.
type Session struct {
	id       string
	cfg      Config
	monitor  *AttachmentMonitor
	consumer Consumer
	gate     *WriteGate
	buf      *frame.Frame

	queue  chan task
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once
	stopping  atomic.Bool
	frames    atomic.Uint64

	mu      sync.Mutex
	state   State
	handle  Handle
	timer   *time.Timer
	outcome string
	lastErr error
}

// NewSession builds an unstarted session in StateSearching.
func NewSession(provider PeerProvider, consumer Consumer, cfg Config) *Session {
	cfg = cfg.WithDefaults()
	if consumer == nil {
		consumer = ConsumerFuncs{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:       xid.New().String(),
		cfg:      cfg,
		monitor:  NewAttachmentMonitor(provider, cfg.ConnectCooldown),
		consumer: consumer,
		buf:      frame.New(),
		queue:    make(chan task, taskQueueSize),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		state:    StateSearching,
	}
	s.gate = newWriteGate(func(err error) {
		s.requestStop(OutcomeWriteFailure, err)
	})
	return s
}

// Start launches the worker and schedules the first attachment poll.
func (s *Session) Start() {
	s.startOnce.Do(func() {
		logging.Infof("link.Session.Start session=%s", s.id)
		s.post(taskAttach)
		go s.run()
	})
}

// Stop asks the worker to shut down at its next scheduling boundary. A read already
// blocked in the transport is not interrupted.
func (s *Session) Stop() {
	s.requestStop(OutcomeStopped, nil)
}

// SubmitWrite writes one frame to the attached peer. See WriteGate.Submit.
func (s *Session) SubmitWrite(payload []byte) bool {
	return s.gate.Submit(payload)
}

func (s *Session) ID() string { return s.id }

// Done is closed once the consumer has been told the link closed. It never closes
// for a session that was not started.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) FramesReceived() uint64 { return s.frames.Load() }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Outcome reports why the session stopped, or "" while it runs.
func (s *Session) Outcome() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome
}

// Err returns the failure that ended the session, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Session) requestStop(outcome string, cause error) {
	s.stopOnce.Do(func() {
		s.stopping.Store(true)
		s.mu.Lock()
		s.outcome = outcome
		s.lastErr = cause
		if s.state == StateAttached {
			s.state = StateShuttingDown
		}
		s.mu.Unlock()
		logging.Debugf("link.Session.requestStop session=%s outcome=%s err=%v", s.id, outcome, cause)
		s.cancel()
		s.post(taskStop)
	})
}

func (s *Session) post(t task) {
	select {
	case s.queue <- t:
	default:
		logging.Warnf("link.Session.post queue full session=%s task=%s", s.id, t)
	}
}

func (s *Session) postAfter(t task, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return
	}
	s.timer = time.AfterFunc(d, func() { s.post(t) })
}

func (s *Session) run() {
	defer close(s.done)
	for {
		t := <-s.queue
		switch t {
		case taskAttach:
			s.attach()
		case taskRead:
			s.read()
		case taskStop:
			s.shutdown()
			return
		}
	}
}

func (s *Session) attach() {
	if s.stopping.Load() {
		return
	}
	h, err := s.monitor.WaitAttach(s.ctx)
	if err != nil {
		// Only cancellation ends WaitAttach early; the stop task is already queued.
		return
	}

	s.mu.Lock()
	s.handle = h
	if s.state == StateSearching {
		s.state = StateAttached
	}
	s.mu.Unlock()
	s.gate.attach(h.Writer())

	logging.Infof("link.Session.attach session=%s attached", s.id)
	s.post(taskRead)
}

func (s *Session) read() {
	if s.stopping.Load() {
		return
	}
	err := frame.Read(s.handle.Reader(), s.buf, s.cfg.Limits)
	switch {
	case err == nil && s.buf.IsSentinel():
		logging.Infof("link.Session.read session=%s end of stream", s.id)
		s.buf.Reset()
		s.requestStop(OutcomeSentinel, nil)

	case err == nil:
		s.frames.Add(1)
		observability.RecordFrame(observability.DirectionIn, s.buf.Size())
		s.consumer.OnFrameReceived(s.buf)
		s.buf.Reset()
		s.post(taskRead)

	case protocol.IsFatal(err):
		outcome := OutcomeProtocolViolation
		if protocol.IsDeviceAbsent(err) {
			outcome = OutcomeDeviceAbsent
		}
		logging.Warnf("link.Session.read session=%s fatal outcome=%s err=%v", s.id, outcome, err)
		s.requestStop(outcome, err)

	default:
		observability.RecordIncompleteRead()
		logging.Debugf("link.Session.read session=%s incomplete retry_in=%s err=%v", s.id, s.cfg.ReadCooldown, err)
		s.postAfter(taskRead, s.cfg.ReadCooldown)
	}
}

func (s *Session) shutdown() {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
	}
	h := s.handle
	if h != nil {
		s.state = StateShuttingDown
	}
	outcome := s.outcome
	cause := s.lastErr
	s.mu.Unlock()

	s.gate.detach()
	if h != nil {
		closeQuietly(h.Reader())
		closeQuietly(h.Writer())
		closeQuietly(h)
	}
	s.cancel()

	observability.RecordSessionClosed(outcome)
	logging.Infof("link.Session.shutdown session=%s outcome=%s frames=%d err=%v", s.id, outcome, s.frames.Load(), cause)
	s.consumer.OnLinkClosed()

	s.mu.Lock()
	s.handle = nil
	s.state = StateClosed
	s.mu.Unlock()
}

func closeQuietly(c io.Closer) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		logging.Debugf("link.closeQuietly err=%v", err)
	}
}
