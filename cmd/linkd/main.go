package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/danmuck/aoalink/internal/config"
	"github.com/danmuck/aoalink/internal/logging"
)

func main() {
	logging.ConfigureRuntime()

	configPath := flag.String("config", "", "linkd config file (defaults apply when empty)")
	provider := flag.String("provider", "", "override provider: accessory|tcp|ws")
	peer := flag.String("peer", "", "override peer_address")
	output := flag.String("output", "", "override output_dir")
	metrics := flag.String("metrics", "", "override metrics_addr")
	flag.Parse()

	cfg := config.DefaultLinkdConfig()
	if *configPath != "" {
		loaded, err := config.LoadLinkdConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "linkd: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
		logging.Infof("linkd loaded config path=%s", *configPath)
	}
	if *provider != "" {
		cfg.Provider = *provider
	}
	if *peer != "" {
		cfg.PeerAddress = *peer
	}
	if *output != "" {
		cfg.OutputDir = *output
	}
	if *metrics != "" {
		cfg.MetricsAddr = *metrics
	}

	svc, err := NewService(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "linkd: %v\n", err)
		os.Exit(1)
	}
	if err := svc.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "linkd: %v\n", err)
		os.Exit(1)
	}
}
