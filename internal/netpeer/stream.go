package netpeer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/danmuck/aoalink/internal/logging"
	"github.com/danmuck/aoalink/internal/protocol"
	"github.com/danmuck/aoalink/internal/protocol/frame"
)

// Stream is the sending end of a network link, the counterpart of a TCPProvider
// session. Frame writes are serialized.
type Stream struct {
	conn        net.Conn
	end         *connEnd
	readTimeout time.Duration
	limits      frame.Limits

	mu     sync.Mutex
	closed bool
}

func NewStream(conn net.Conn, readTimeout time.Duration) *Stream {
	return &Stream{
		conn:        conn,
		end:         &connEnd{conn: conn},
		readTimeout: readTimeout,
		limits:      frame.DefaultLimits(),
	}
}

func (s *Stream) RemoteAddr() net.Addr { return s.conn.RemoteAddr() }

func (s *Stream) WriteFrame(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("netpeer: write frame: %w", protocol.ErrMisuse)
	}
	return frame.Write(s.end, payload)
}

// ReadFrame reads one frame from the peer into f. A read that times out leaves f
// resumable and returns protocol.ErrIncomplete.
func (s *Stream) ReadFrame(f *frame.Frame) error {
	if s.readTimeout > 0 {
		if err := s.conn.SetReadDeadline(time.Now().Add(s.readTimeout)); err != nil {
			return mapErr(err)
		}
	}
	err := frame.Read(s.end, f, s.limits)
	if err != nil && errors.Is(err, os.ErrDeadlineExceeded) {
		logging.Debugf("netpeer.Stream.ReadFrame timeout remote=%s", s.conn.RemoteAddr())
	}
	return err
}

// Close sends the end-of-stream sentinel and closes the connection.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	serr := frame.WriteSentinel(s.end)
	cerr := s.conn.Close()
	if serr != nil {
		return serr
	}
	return cerr
}

// Listener accepts link peers on a TCP address.
type Listener struct {
	ln          net.Listener
	readTimeout time.Duration
}

func Listen(ctx context.Context, addr string, readTimeout time.Duration) (*Listener, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("netpeer: listen %s: %w", addr, err)
	}
	return &Listener{ln: ln, readTimeout: readTimeout}, nil
}

func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

func (l *Listener) Close() error { return l.ln.Close() }

// Accept waits for one peer. Cancelling ctx closes the listener.
func (l *Listener) Accept(ctx context.Context) (*Stream, error) {
	type result struct {
		conn net.Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		conn, err := l.ln.Accept()
		ch <- result{conn, err}
	}()
	select {
	case r := <-ch:
		if r.err != nil {
			return nil, fmt.Errorf("netpeer: accept: %w", r.err)
		}
		logging.Infof("netpeer.Listener.Accept peer=%s", r.conn.RemoteAddr())
		return NewStream(r.conn, l.readTimeout), nil
	case <-ctx.Done():
		_ = l.ln.Close()
		return nil, ctx.Err()
	}
}
