package config

import (
	"github.com/danmuck/edgedrop/internal/client"
	"github.com/danmuck/edgedrop/internal/protocol"
	"github.com/danmuck/edgedrop/internal/protocol/codec"
	"github.com/danmuck/edgedrop/internal/server"
	"github.com/danmuck/edgedrop/internal/transfer"
	"github.com/rs/zerolog"
)

// ServerOptions maps a loaded ServerConfig onto the server package.
func ServerOptions(cfg ServerConfig, logger *zerolog.Logger) (server.Config, error) {
	limits := cfg.Limits()
	c, err := codec.ByName(cfg.Framing, limits)
	if err != nil {
		return server.Config{}, err
	}
	out := server.DefaultConfig()
	out.Addr = cfg.Addr
	out.AdminAddr = cfg.AdminAddr
	out.CorsOrigins = cfg.CorsOrigins
	out.Transfer = transfer.Config{
		Limits:      limits,
		Codec:       c,
		IdleTimeout: cfg.IdleTimeout,
		Logger:      logger,
	}
	return out, nil
}

// ClientOptions maps a loaded ClientConfig onto the client package.
func ClientOptions(cfg ClientConfig, logger *zerolog.Logger) (client.Config, error) {
	limits := protocol.DefaultLimits()
	c, err := codec.ByName(cfg.Framing, limits)
	if err != nil {
		return client.Config{}, err
	}
	return client.Config{
		Addr:            cfg.Addr,
		DialTimeout:     cfg.DialTimeout,
		ConnectAttempts: cfg.ConnectAttempts,
		Backoff:         cfg.Backoff,
		Transfer: transfer.Config{
			Limits:      limits,
			Codec:       c,
			IdleTimeout: cfg.IdleTimeout,
			Logger:      logger,
		},
	}, nil
}
