//go:build linux

package accessory

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/danmuck/aoalink/internal/link"
	"github.com/danmuck/aoalink/internal/protocol/frame"
	"github.com/danmuck/aoalink/internal/testutil/testlog"
)

// A regular file has no accessory ioctls, so the open succeeds with an unknown identity.
func TestOpenPeerRegularFile(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "usb_accessory")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatalf("write node: %v", err)
	}
	p := NewProvider(path)
	h, err := p.OpenPeer(context.Background(), link.Peer{ID: path})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := frame.Write(h.Writer(), []byte{1, 2, 3}); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = h.Reader().Close()
	_ = h.Writer().Close()
	_ = h.Close()

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if !bytes.Equal(got, []byte{0, 0, 3, 1, 2, 3}) {
		t.Fatalf("unexpected bytes %v", got)
	}
	if p.Identity() != (Identity{}) {
		t.Fatalf("expected unknown identity, got %+v", p.Identity())
	}
}

func TestOpenPeerMissing(t *testing.T) {
	testlog.Start(t)
	p := NewProvider(filepath.Join(t.TempDir(), "missing"))
	if _, err := p.OpenPeer(context.Background(), link.Peer{ID: p.Path()}); err == nil {
		t.Fatalf("expected open error")
	}
}
