package logging

import (
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

const (
	EnvLogLevel     = "AOALINK_LOG_LEVEL"
	EnvLogTimestamp = "AOALINK_LOG_TIMESTAMP"
	EnvLogNoColor   = "AOALINK_LOG_NOCOLOR"
	EnvLogBypass    = "AOALINK_LOG_BYPASS"
)

// Profile picks the baseline Config before environment overrides.
type Profile int

const (
	ProfileRuntime Profile = iota
	ProfileTest
)

func (p Profile) String() string {
	if p == ProfileTest {
		return "test"
	}
	return "runtime"
}

func (p Profile) config() Config {
	cfg := DefaultConfig()
	if p == ProfileTest {
		cfg.Level = zerolog.DebugLevel
		cfg.Timestamp = false
	}
	return cfg
}

var configured sync.Once

func ConfigureRuntime() { Configure(ProfileRuntime) }

func ConfigureTests() { Configure(ProfileTest) }

// Configure installs the process logger for profile. Only the first call in a
// process has any effect.
func Configure(profile Profile) {
	configured.Do(func() {
		cfg := profile.config()
		ignored := applyEnvOverrides(&cfg)

		l := New(cfg)
		mu.Lock()
		logger = l
		mu.Unlock()

		for _, key := range ignored {
			l.Warn().Str("env", key).Str("value", os.Getenv(key)).Msg("logging ignored invalid override")
		}
		l.Debug().Stringer("profile", profile).Stringer("level", cfg.Level).Msg("logging configured")
	})
}

type envOverride struct {
	key   string
	apply func(cfg *Config, raw string) bool
}

var envOverrides = []envOverride{
	{EnvLogLevel, func(cfg *Config, raw string) bool {
		lvl, ok := parseLevel(raw)
		if ok {
			cfg.Level = lvl
		}
		return ok
	}},
	{EnvLogTimestamp, boolField(func(cfg *Config) *bool { return &cfg.Timestamp })},
	{EnvLogNoColor, boolField(func(cfg *Config) *bool { return &cfg.NoColor })},
	{EnvLogBypass, boolField(func(cfg *Config) *bool { return &cfg.Bypass })},
}

func boolField(field func(*Config) *bool) func(*Config, string) bool {
	return func(cfg *Config, raw string) bool {
		v, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return false
		}
		*field(cfg) = v
		return true
	}
}

// applyEnvOverrides applies every set, non-empty override and returns the keys
// whose values could not be parsed.
func applyEnvOverrides(cfg *Config) []string {
	var ignored []string
	for _, o := range envOverrides {
		raw := os.Getenv(o.key)
		if strings.TrimSpace(raw) == "" {
			continue
		}
		if !o.apply(cfg, raw) {
			ignored = append(ignored, o.key)
		}
	}
	return ignored
}

var levelAliases = map[string]zerolog.Level{
	"diagnostics": zerolog.TraceLevel,
	"warning":     zerolog.WarnLevel,
	"off":         zerolog.Disabled,
	"none":        zerolog.Disabled,
	"disable":     zerolog.Disabled,
	"inactive":    zerolog.Disabled,
}

func parseLevel(raw string) (zerolog.Level, bool) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return zerolog.NoLevel, false
	}
	if lvl, ok := levelAliases[raw]; ok {
		return lvl, true
	}
	lvl, err := zerolog.ParseLevel(raw)
	if err != nil {
		return zerolog.NoLevel, false
	}
	return lvl, true
}
