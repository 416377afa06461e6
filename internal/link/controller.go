package link

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/danmuck/aoalink/internal/logging"
	"github.com/danmuck/aoalink/internal/protocol"
)

// Controller is the entry point for the link. It owns at most one live Session
// and, when configured, re-arms a fresh one after each closes.
type Controller struct {
	provider PeerProvider
	consumer Consumer
	cfg      Config

	mu       sync.Mutex
	current  *Session
	sessions atomic.Uint64
}

func NewController(provider PeerProvider, consumer Consumer, cfg Config) *Controller {
	return &Controller{
		provider: provider,
		consumer: consumer,
		cfg:      cfg.WithDefaults(),
	}
}

// Arm starts a session unless one is still live and returns the live session.
func (c *Controller) Arm() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil && c.current.State() != StateClosed {
		return c.current
	}
	s := NewSession(c.provider, c.consumer, c.cfg)
	c.current = s
	c.sessions.Add(1)
	s.Start()
	return s
}

// Run drives sessions until ctx is done. Without Rearm it returns once the first
// session closes. On cancellation it stops the live session and waits for it.
func (c *Controller) Run(ctx context.Context) error {
	for {
		s := c.Arm()
		select {
		case <-s.Done():
			if !c.cfg.Rearm {
				return nil
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			logging.Debugf("link.Controller.Run rearming after session=%s outcome=%s", s.ID(), s.Outcome())
		case <-ctx.Done():
			s.Stop()
			<-s.Done()
			return ctx.Err()
		}
	}
}

// SubmitWrite writes one frame through the live session.
func (c *Controller) SubmitWrite(payload []byte) bool {
	s := c.Current()
	protocol.Assertf(s != nil, "write submitted before any session was armed")
	if s == nil {
		logging.Warnf("link.Controller.SubmitWrite rejected err=%v", protocol.ErrMisuse)
		return false
	}
	return s.SubmitWrite(payload)
}

// Stop stops the live session, if any.
func (c *Controller) Stop() {
	if s := c.Current(); s != nil {
		s.Stop()
	}
}

func (c *Controller) Current() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// State reports the live session's state, or StateClosed when none was armed.
func (c *Controller) State() State {
	s := c.Current()
	if s == nil {
		return StateClosed
	}
	return s.State()
}

func (c *Controller) Sessions() uint64 { return c.sessions.Load() }
