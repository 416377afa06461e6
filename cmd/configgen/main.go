package main

import (
	"flag"
	"os"

	"github.com/danmuck/aoalink/internal/config"
	"github.com/danmuck/aoalink/internal/logging"
)

func defaultPath(kind string) string {
	switch kind {
	case "linkd":
		return "cmd/linkd/config.toml"
	case "linksend":
		return "cmd/linksend/config.toml"
	default:
		logging.Errf("configgen unknown kind=%s", kind)
		os.Exit(2)
		return ""
	}
}

func main() {
	logging.ConfigureRuntime()

	kind := flag.String("kind", "linkd", "config kind: linkd|linksend")
	output := flag.String("output", "", "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing config file")
	input := flag.String("input", "", "config path for validation (defaults to per-kind cmd path)")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	if *validate {
		path := *input
		if path == "" {
			path = defaultPath(*kind)
		}
		if err := config.Validate(path, *kind); err != nil {
			logging.Errf("configgen validate failed path=%s err=%v", path, err)
			os.Exit(1)
		}
		logging.Infof("configgen validated kind=%s path=%s", *kind, path)
		return
	}

	target := *output
	if target == "" {
		target = defaultPath(*kind)
	}
	if err := config.WriteTemplate(target, *kind, *force); err != nil {
		logging.Errf("configgen write failed path=%s err=%v", target, err)
		os.Exit(1)
	}
	logging.Infof("configgen wrote kind=%s path=%s", *kind, target)
}
