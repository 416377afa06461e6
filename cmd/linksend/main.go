package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/aoalink/internal/aoa"
	"github.com/danmuck/aoalink/internal/aoa/usbfs"
	"github.com/danmuck/aoalink/internal/config"
	"github.com/danmuck/aoalink/internal/logging"
	"github.com/danmuck/aoalink/internal/netpeer"
)

func main() {
	logging.ConfigureRuntime()

	configPath := flag.String("config", "", "linksend config file (defaults apply when empty)")
	listen := flag.String("listen", "", "serve one TCP peer on this address instead of USB")
	step := flag.Bool("step", false, "wait for Enter before each file after the first")
	flag.Parse()

	cfg := config.DefaultLinksendConfig()
	if *configPath != "" {
		loaded, err := config.LoadLinksendConfig(*configPath)
		if err != nil {
			fatal(err)
		}
		cfg = loaded
	}
	if *listen != "" {
		cfg.ListenAddress = *listen
	}
	files := flag.Args()
	if len(files) == 0 {
		fatal(fmt.Errorf("usage: linksend [-config file] [-listen addr] [-step] file..."))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s, err := connect(ctx, cfg)
	if err != nil {
		fatal(err)
	}
	var prompt io.Reader
	if *step {
		prompt = os.Stdin
	}
	if err := send(ctx, s, files, prompt); err != nil {
		fatal(err)
	}
}

func connect(ctx context.Context, cfg config.LinksendConfig) (sender, error) {
	if cfg.ListenAddress != "" {
		l, err := netpeer.Listen(ctx, cfg.ListenAddress, cfg.AOA.TransferTimeout)
		if err != nil {
			return nil, err
		}
		defer l.Close()
		logging.Infof("linksend waiting for peer addr=%s", l.Addr())
		stream, err := l.Accept(ctx)
		if err != nil {
			return nil, err
		}
		return stream, nil
	}
	bridge, err := aoa.Connect(ctx, usbfs.NewBus(), cfg.AOA)
	if err != nil {
		return nil, err
	}
	return bridge, nil
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "linksend: %v\n", err)
	os.Exit(1)
}
