package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danmuck/aoalink/internal/accessory"
	"github.com/danmuck/aoalink/internal/config"
	"github.com/danmuck/aoalink/internal/netpeer"
	"github.com/danmuck/aoalink/internal/testutil/testlog"
)

func TestNewProviderSelection(t *testing.T) {
	testlog.Start(t)
	cfg := config.DefaultLinkdConfig()
	p, err := newProvider(cfg)
	if err != nil {
		t.Fatalf("accessory provider: %v", err)
	}
	if _, ok := p.(*accessory.Provider); !ok {
		t.Fatalf("expected accessory provider, got %T", p)
	}

	cfg.Provider = config.ProviderTCP
	cfg.PeerAddress = "127.0.0.1:7200"
	if p, err = newProvider(cfg); err != nil {
		t.Fatalf("tcp provider: %v", err)
	}
	if _, ok := p.(*netpeer.TCPProvider); !ok {
		t.Fatalf("expected tcp provider, got %T", p)
	}

	cfg.Provider = config.ProviderWS
	cfg.PeerAddress = "ws://127.0.0.1:7200/"
	if p, err = newProvider(cfg); err != nil {
		t.Fatalf("ws provider: %v", err)
	}
	if _, ok := p.(*netpeer.WSProvider); !ok {
		t.Fatalf("expected ws provider, got %T", p)
	}
}

func TestServiceReceivesFramesOverTCP(t *testing.T) {
	testlog.Start(t)
	l, err := netpeer.Listen(context.Background(), "127.0.0.1:0", 0)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()

	cfg := config.DefaultLinkdConfig()
	cfg.Provider = config.ProviderTCP
	cfg.PeerAddress = l.Addr().String()
	cfg.OutputDir = filepath.Join(t.TempDir(), "frames")
	cfg.Link.ConnectCooldown = 10 * time.Millisecond
	cfg.Link.ReadCooldown = 10 * time.Millisecond
	cfg.Link.Rearm = false
	svc, err := NewService(cfg)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- svc.serve(context.Background()) }()

	acceptCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	stream, err := l.Accept(acceptCtx)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	for _, p := range []string{"img-1", "img-2"} {
		if err := stream.WriteFrame([]byte(p)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := stream.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("service did not stop after the sentinel")
	}
	entries, err := os.ReadDir(cfg.OutputDir)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if len(entries) != 2 || svc.counter.Frames() != 2 || svc.counter.Links() != 1 {
		t.Fatalf("unexpected output files=%d frames=%d links=%d", len(entries), svc.counter.Frames(), svc.counter.Links())
	}
	if svc.files.Written() != 2 || svc.files.LastPath() == "" {
		t.Fatalf("unexpected sink state written=%d last=%q", svc.files.Written(), svc.files.LastPath())
	}
}

func TestNewServiceRejectsInvalidConfig(t *testing.T) {
	testlog.Start(t)
	cfg := config.DefaultLinkdConfig()
	cfg.Provider = config.ProviderTCP
	if _, err := NewService(cfg); err == nil {
		t.Fatalf("expected validation error")
	}
}
