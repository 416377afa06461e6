package config

import (
	"fmt"
	"strings"

	"github.com/danmuck/aoalink/internal/aoa"
)

type LinksendConfig struct {
	AOA aoa.Config
	// ListenAddress serves one TCP peer instead of USB when set.
	ListenAddress string
}

func DefaultLinksendConfig() LinksendConfig {
	return LinksendConfig{AOA: aoa.DefaultConfig()}
}

type linksendFile struct {
	VendorID           int64  `toml:"vendor_id"`
	ProductID          int64  `toml:"product_id"`
	AccessoryProductID int64  `toml:"accessory_product_id"`
	Manufacturer       string `toml:"manufacturer"`
	Model              string `toml:"model"`
	Description        string `toml:"description"`
	Version            string `toml:"version"`
	URI                string `toml:"uri"`
	Serial             string `toml:"serial"`
	DetectAttempts     int    `toml:"detect_attempts"`
	DetectInterval     string `toml:"detect_interval"`
	DetectIntervalMS   int64  `toml:"detect_interval_ms"`
	TransferTimeout    string `toml:"transfer_timeout"`
	TransferTimeoutMS  int64  `toml:"transfer_timeout_ms"`
	HeaderRetries      int    `toml:"header_retries"`
	ListenAddress      string `toml:"listen_address"`
}

func LoadLinksendConfig(path string) (LinksendConfig, error) {
	cfg := DefaultLinksendConfig()

	var raw linksendFile
	meta, err := decode(path, &raw)
	if err != nil {
		return LinksendConfig{}, err
	}

	if err := uint16Key(meta, "vendor_id", raw.VendorID, &cfg.AOA.VendorID); err != nil {
		return LinksendConfig{}, err
	}
	if err := uint16Key(meta, "product_id", raw.ProductID, &cfg.AOA.ProductID); err != nil {
		return LinksendConfig{}, err
	}
	if err := uint16Key(meta, "accessory_product_id", raw.AccessoryProductID, &cfg.AOA.AccessoryProductID); err != nil {
		return LinksendConfig{}, err
	}

	id := &cfg.AOA.Identity
	stringKey(meta, "manufacturer", raw.Manufacturer, &id.Manufacturer)
	stringKey(meta, "model", raw.Model, &id.Model)
	stringKey(meta, "description", raw.Description, &id.Description)
	stringKey(meta, "version", raw.Version, &id.Version)
	stringKey(meta, "uri", raw.URI, &id.URI)
	stringKey(meta, "serial", raw.Serial, &id.Serial)
	stringKey(meta, "listen_address", raw.ListenAddress, &cfg.ListenAddress)

	if meta.IsDefined("detect_attempts") {
		cfg.AOA.DetectAttempts = raw.DetectAttempts
	}
	if meta.IsDefined("header_retries") {
		cfg.AOA.HeaderRetries = raw.HeaderRetries
	}
	if err := durationKey(meta, "detect_interval", raw.DetectInterval, raw.DetectIntervalMS, &cfg.AOA.DetectInterval); err != nil {
		return LinksendConfig{}, err
	}
	if err := durationKey(meta, "transfer_timeout", raw.TransferTimeout, raw.TransferTimeoutMS, &cfg.AOA.TransferTimeout); err != nil {
		return LinksendConfig{}, err
	}

	if err := ValidateLinksendConfig(cfg); err != nil {
		return LinksendConfig{}, err
	}
	return cfg, nil
}

func ValidateLinksendConfig(cfg LinksendConfig) error {
	if cfg.AOA.VendorID == 0 || cfg.AOA.ProductID == 0 {
		return fmt.Errorf("linksend config requires vendor_id and product_id")
	}
	if cfg.AOA.DetectAttempts <= 0 {
		return fmt.Errorf("linksend config detect_attempts must be positive")
	}
	if cfg.AOA.HeaderRetries <= 0 {
		return fmt.Errorf("linksend config header_retries must be positive")
	}
	if cfg.AOA.DetectInterval <= 0 || cfg.AOA.TransferTimeout <= 0 {
		return fmt.Errorf("linksend config intervals must be positive")
	}
	if strings.TrimSpace(cfg.AOA.Identity.Manufacturer) == "" || strings.TrimSpace(cfg.AOA.Identity.Model) == "" {
		return fmt.Errorf("linksend config requires manufacturer and model")
	}
	return nil
}
