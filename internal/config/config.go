// Package config loads the TOML files of linkd and linksend. Every key is optional;
// keys present in the file override the defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// durationKey applies a duration given either as a Go duration string under key or
// as integer milliseconds under key+"_ms". The _ms form wins when both are set.
func durationKey(meta toml.MetaData, key, raw string, rawMS int64, dst *time.Duration) error {
	if meta.IsDefined(key) {
		d, err := time.ParseDuration(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("parse %s: %w", key, err)
		}
		*dst = d
	}
	if meta.IsDefined(key + "_ms") {
		*dst = time.Duration(rawMS) * time.Millisecond
	}
	return nil
}

func stringKey(meta toml.MetaData, key, raw string, dst *string) {
	if meta.IsDefined(key) {
		*dst = strings.TrimSpace(raw)
	}
}

func uint16Key(meta toml.MetaData, key string, raw int64, dst *uint16) error {
	if !meta.IsDefined(key) {
		return nil
	}
	if raw < 0 || raw > 0xFFFF {
		return fmt.Errorf("%s out of range: %d", key, raw)
	}
	*dst = uint16(raw)
	return nil
}

func decode(path string, out any) (toml.MetaData, error) {
	meta, err := toml.DecodeFile(path, out)
	if err != nil {
		return meta, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return meta, fmt.Errorf("config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return meta, nil
}
