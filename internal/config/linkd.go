package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/danmuck/aoalink/internal/link"
	"github.com/danmuck/aoalink/internal/protocol/frame"
)

const (
	ProviderAccessory = "accessory"
	ProviderTCP       = "tcp"
	ProviderWS        = "ws"
)

type LinkdConfig struct {
	Provider      string
	AccessoryPath string
	PeerAddress   string
	WSOrigin      string
	Link          link.Config
	OutputDir     string
	MetricsAddr   string
	ShutdownGrace time.Duration
}

func DefaultLinkdConfig() LinkdConfig {
	return LinkdConfig{
		Provider:      ProviderAccessory,
		AccessoryPath: "/dev/usb_accessory",
		Link:          link.DefaultConfig(),
		OutputDir:     "frames",
		ShutdownGrace: 2 * time.Second,
	}
}

type linkdFile struct {
	Provider          string `toml:"provider"`
	AccessoryPath     string `toml:"accessory_path"`
	PeerAddress       string `toml:"peer_address"`
	WSOrigin          string `toml:"ws_origin"`
	ConnectCooldown   string `toml:"connect_cooldown"`
	ConnectCooldownMS int64  `toml:"connect_cooldown_ms"`
	ReadCooldown      string `toml:"read_cooldown"`
	ReadCooldownMS    int64  `toml:"read_cooldown_ms"`
	MaxFrameSize      int    `toml:"max_frame_size"`
	MaxStalls         int    `toml:"max_stalls"`
	Rearm             bool   `toml:"rearm"`
	OutputDir         string `toml:"output_dir"`
	MetricsAddr       string `toml:"metrics_addr"`
	ShutdownGrace     string `toml:"shutdown_grace"`
	ShutdownGraceMS   int64  `toml:"shutdown_grace_ms"`
}

func LoadLinkdConfig(path string) (LinkdConfig, error) {
	cfg := DefaultLinkdConfig()

	var raw linkdFile
	meta, err := decode(path, &raw)
	if err != nil {
		return LinkdConfig{}, err
	}

	if meta.IsDefined("provider") {
		cfg.Provider = strings.ToLower(strings.TrimSpace(raw.Provider))
	}
	stringKey(meta, "accessory_path", raw.AccessoryPath, &cfg.AccessoryPath)
	stringKey(meta, "peer_address", raw.PeerAddress, &cfg.PeerAddress)
	stringKey(meta, "ws_origin", raw.WSOrigin, &cfg.WSOrigin)
	stringKey(meta, "output_dir", raw.OutputDir, &cfg.OutputDir)
	stringKey(meta, "metrics_addr", raw.MetricsAddr, &cfg.MetricsAddr)

	if err := durationKey(meta, "connect_cooldown", raw.ConnectCooldown, raw.ConnectCooldownMS, &cfg.Link.ConnectCooldown); err != nil {
		return LinkdConfig{}, err
	}
	if err := durationKey(meta, "read_cooldown", raw.ReadCooldown, raw.ReadCooldownMS, &cfg.Link.ReadCooldown); err != nil {
		return LinkdConfig{}, err
	}
	if err := durationKey(meta, "shutdown_grace", raw.ShutdownGrace, raw.ShutdownGraceMS, &cfg.ShutdownGrace); err != nil {
		return LinkdConfig{}, err
	}
	if meta.IsDefined("max_frame_size") {
		cfg.Link.Limits.MaxPayload = raw.MaxFrameSize
	}
	if meta.IsDefined("max_stalls") {
		cfg.Link.Limits.MaxStalls = raw.MaxStalls
	}
	if meta.IsDefined("rearm") {
		cfg.Link.Rearm = raw.Rearm
	}

	if err := ValidateLinkdConfig(cfg); err != nil {
		return LinkdConfig{}, err
	}
	return cfg, nil
}

func ValidateLinkdConfig(cfg LinkdConfig) error {
	switch cfg.Provider {
	case ProviderAccessory:
		if cfg.AccessoryPath == "" {
			return fmt.Errorf("linkd config missing accessory_path")
		}
	case ProviderTCP, ProviderWS:
		if cfg.PeerAddress == "" {
			return fmt.Errorf("linkd config provider %q requires peer_address", cfg.Provider)
		}
	default:
		return fmt.Errorf("linkd config unknown provider %q", cfg.Provider)
	}
	if cfg.Link.ConnectCooldown <= 0 || cfg.Link.ReadCooldown <= 0 {
		return fmt.Errorf("linkd config cooldowns must be positive")
	}
	if cfg.Link.Limits.MaxPayload <= 0 || cfg.Link.Limits.MaxPayload > frame.MaxSize {
		return fmt.Errorf("linkd config max_frame_size must be in 1..%d", frame.MaxSize)
	}
	if cfg.Link.Limits.MaxStalls <= 0 {
		return fmt.Errorf("linkd config max_stalls must be positive")
	}
	if strings.TrimSpace(cfg.OutputDir) == "" {
		return fmt.Errorf("linkd config missing output_dir")
	}
	if cfg.ShutdownGrace < 0 {
		return fmt.Errorf("linkd config shutdown_grace must not be negative")
	}
	return nil
}
