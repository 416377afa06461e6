// Package sink holds link consumers used by the daemon.
package sink

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/rs/xid"

	"github.com/danmuck/aoalink/internal/link"
	"github.com/danmuck/aoalink/internal/logging"
	"github.com/danmuck/aoalink/internal/protocol/frame"
)

var (
	_ link.Consumer = (*DirSink)(nil)
	_ link.Consumer = (*Counter)(nil)
)

// DirSink writes every received frame to its own file under dir. Files are named
// frame-<run>-<seq>.bin, where run changes with each link session.
type DirSink struct {
	dir string

	mu      sync.Mutex
	run     string
	seq     uint64
	err     error
	last    string
	written uint64
}

func NewDirSink(dir string) (*DirSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("sink: create %s: %w", dir, err)
	}
	return &DirSink{dir: dir, run: xid.New().String()}, nil
}

func (s *DirSink) OnFrameReceived(f *frame.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	path := filepath.Join(s.dir, fmt.Sprintf("frame-%s-%06d.bin", s.run, s.seq))
	if err := os.WriteFile(path, f.Payload(), 0o644); err != nil {
		s.err = err
		logging.Errf("sink.DirSink.OnFrameReceived write failed path=%s err=%v", path, err)
		return
	}
	s.last = path
	s.written++
	logging.Debugf("sink.DirSink.OnFrameReceived path=%s size=%d", path, f.Size())
}

// OnLinkClosed starts a new run so the next session's files do not collide.
func (s *DirSink) OnLinkClosed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	logging.Infof("sink.DirSink.OnLinkClosed run=%s frames=%d", s.run, s.seq)
	s.run = xid.New().String()
	s.seq = 0
}

// LastPath returns the most recently written file, or "" before the first frame.
func (s *DirSink) LastPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Written counts files written across all runs.
func (s *DirSink) Written() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written
}

// Err returns the last write failure.
func (s *DirSink) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Counter counts frames, bytes and closed links, and forwards to Next when set.
type Counter struct {
	Next link.Consumer

	frames atomic.Uint64
	bytes  atomic.Uint64
	links  atomic.Uint64
}

func (c *Counter) OnFrameReceived(f *frame.Frame) {
	c.frames.Add(1)
	c.bytes.Add(uint64(f.Size()))
	if c.Next != nil {
		c.Next.OnFrameReceived(f)
	}
}

func (c *Counter) OnLinkClosed() {
	c.links.Add(1)
	if c.Next != nil {
		c.Next.OnLinkClosed()
	}
}

func (c *Counter) Frames() uint64 { return c.frames.Load() }
func (c *Counter) Bytes() uint64  { return c.bytes.Load() }
func (c *Counter) Links() uint64  { return c.links.Load() }
