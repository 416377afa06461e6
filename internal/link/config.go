package link

import (
	"time"

	"github.com/danmuck/aoalink/internal/protocol/frame"
)

const (
	DefaultConnectCooldown = 100 * time.Millisecond
	DefaultReadCooldown    = 100 * time.Millisecond
)

// Config defines link timing and decode limits.
type Config struct {
	ConnectCooldown time.Duration
	ReadCooldown    time.Duration
	Limits          frame.Limits
	// Rearm starts a new session after each closed one when driven by Controller.Run.
	Rearm bool
}

func DefaultConfig() Config {
	return Config{
		ConnectCooldown: DefaultConnectCooldown,
		ReadCooldown:    DefaultReadCooldown,
		Limits:          frame.DefaultLimits(),
		Rearm:           true,
	}
}

// WithDefaults fills unset fields.
func (c Config) WithDefaults() Config {
	if c.ConnectCooldown <= 0 {
		c.ConnectCooldown = DefaultConnectCooldown
	}
	if c.ReadCooldown <= 0 {
		c.ReadCooldown = DefaultReadCooldown
	}
	c.Limits = c.Limits.WithDefaults()
	return c
}
