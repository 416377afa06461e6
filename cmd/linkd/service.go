package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/danmuck/aoalink/internal/accessory"
	"github.com/danmuck/aoalink/internal/config"
	"github.com/danmuck/aoalink/internal/link"
	"github.com/danmuck/aoalink/internal/logging"
	"github.com/danmuck/aoalink/internal/netpeer"
	"github.com/danmuck/aoalink/internal/observability"
	"github.com/danmuck/aoalink/internal/sink"
)

// Service runs the accessory-side daemon: one controller re-arming link sessions
// into a directory sink, plus an optional metrics listener.
type Service struct {
	cfg        config.LinkdConfig
	provider   link.PeerProvider
	counter    *sink.Counter
	files      *sink.DirSink
	controller *link.Controller
}

func NewService(cfg config.LinkdConfig) (*Service, error) {
	if err := config.ValidateLinkdConfig(cfg); err != nil {
		return nil, err
	}
	provider, err := newProvider(cfg)
	if err != nil {
		return nil, err
	}
	dir, err := sink.NewDirSink(cfg.OutputDir)
	if err != nil {
		return nil, err
	}
	counter := &sink.Counter{Next: dir}
	return &Service{
		cfg:        cfg,
		provider:   provider,
		counter:    counter,
		files:      dir,
		controller: link.NewController(provider, counter, cfg.Link),
	}, nil
}

func newProvider(cfg config.LinkdConfig) (link.PeerProvider, error) {
	switch cfg.Provider {
	case config.ProviderAccessory:
		return accessory.NewProvider(cfg.AccessoryPath), nil
	case config.ProviderTCP:
		return netpeer.NewTCPProvider(cfg.PeerAddress, netpeer.DefaultDialTimeout), nil
	case config.ProviderWS:
		p, err := netpeer.NewWSProvider(cfg.PeerAddress, cfg.WSOrigin)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

// Run blocks until SIGINT or SIGTERM, or until the link ends when re-arming is off.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.serve(ctx)
}

func (s *Service) serve(ctx context.Context) error {
	observability.RegisterMetrics()
	var metricsSrv *http.Server
	if s.cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observability.Handler())
		metricsSrv = &http.Server{Addr: s.cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Errf("linkd.Service.serve metrics stopped err=%v", err)
			}
		}()
		logging.Infof("linkd.Service.serve metrics addr=%s", s.cfg.MetricsAddr)
	}

	logging.Infof(
		"linkd.Service.serve start provider=%s output=%s rearm=%v max_frame=%d",
		s.cfg.Provider,
		s.cfg.OutputDir,
		s.cfg.Link.Rearm,
		s.cfg.Link.Limits.MaxPayload,
	)

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.controller.Run(runCtx) }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		logging.Infof("linkd.Service.serve shutdown grace=%s", s.cfg.ShutdownGrace)
		cancel()
		select {
		case err = <-done:
		case <-time.After(s.cfg.ShutdownGrace):
			// A read blocked in the transport only returns when the peer sends or goes away.
			logging.Warnf("linkd.Service.serve session did not stop within grace state=%s", s.controller.State())
		}
	}
	if errors.Is(err, context.Canceled) {
		err = nil
	}

	if metricsSrv != nil {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), time.Second)
		_ = metricsSrv.Shutdown(shutdownCtx)
		cancelShutdown()
	}
	logging.Infof(
		"linkd.Service.serve stopped sessions=%d frames=%d bytes=%d files=%d last=%q",
		s.controller.Sessions(),
		s.counter.Frames(),
		s.counter.Bytes(),
		s.files.Written(),
		s.files.LastPath(),
	)
	return err
}
