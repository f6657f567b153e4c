package transfer

import (
	"time"

	"github.com/danmuck/edgedrop/internal/protocol"
	"github.com/danmuck/edgedrop/internal/protocol/codec"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config is shared read-only by every session of a process.
type Config struct {
	Limits protocol.Limits
	Codec  codec.Codec
	// IdleTimeout, when positive, bounds each protocol step by refreshing
	// the connection deadline before it.
	IdleTimeout time.Duration
	Logger      *zerolog.Logger
	Now         func() time.Time
}

func DefaultConfig() Config {
	limits := protocol.DefaultLimits()
	return Config{
		Limits: limits,
		Codec:  codec.NewFramed(limits),
	}
}

func (c Config) withDefaults() Config {
	c.Limits = c.Limits.WithDefaults()
	if c.Codec == nil {
		c.Codec = codec.NewFramed(c.Limits)
	}
	if c.Logger == nil {
		l := log.Logger
		c.Logger = &l
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}
