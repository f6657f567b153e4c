package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/danmuck/edgedrop/internal/client"
	"github.com/danmuck/edgedrop/internal/ledger"
	"github.com/danmuck/edgedrop/internal/protocol"
	"github.com/danmuck/edgedrop/internal/protocol/codec"
	"github.com/danmuck/edgedrop/internal/server"
	"github.com/danmuck/edgedrop/internal/storage"
)

const (
	KindServer = "server"
	KindClient = "client"

	DefaultStorageDir  = "received"
	DefaultIdleTimeout = 30 * time.Second

	// SUCCESS:<timestamp>_ must fit in one control token with the name.
	storedNameOverhead = len(protocol.SuccessPrefix) + len(storage.TimestampLayout) + 1
)

// ServerConfig configures cmd/dropd.
type ServerConfig struct {
	Addr              string
	StorageDir        string
	Framing           string
	IdleTimeout       time.Duration
	MaxFileSize       uint64
	MaxFilenameLength int
	ReadChunk         int
	AdminAddr         string
	CorsOrigins       []string
	Ledger            ledger.Config
}

// ClientConfig configures cmd/drop.
type ClientConfig struct {
	Addr            string
	Framing         string
	DialTimeout     time.Duration
	IdleTimeout     time.Duration
	ConnectAttempts int
	Backoff         client.BackoffConfig
}

func DefaultServerConfig() ServerConfig {
	limits := protocol.DefaultLimits()
	return ServerConfig{
		Addr:              server.DefaultAddr,
		StorageDir:        DefaultStorageDir,
		Framing:           codec.NameFramed,
		IdleTimeout:       DefaultIdleTimeout,
		MaxFileSize:       limits.MaxFileSize,
		MaxFilenameLength: limits.MaxFilenameLength,
		ReadChunk:         limits.ReadChunk,
		Ledger:            ledger.DefaultConfig(),
	}
}

func DefaultClientConfig() ClientConfig {
	def := client.DefaultConfig()
	return ClientConfig{
		Addr:            def.Addr,
		Framing:         codec.NameFramed,
		DialTimeout:     def.DialTimeout,
		IdleTimeout:     DefaultIdleTimeout,
		ConnectAttempts: def.ConnectAttempts,
		Backoff:         def.Backoff,
	}
}

func (c ServerConfig) Limits() protocol.Limits {
	limits := protocol.DefaultLimits()
	limits.MaxFileSize = c.MaxFileSize
	limits.MaxFilenameLength = c.MaxFilenameLength
	limits.ReadChunk = c.ReadChunk
	return limits.WithDefaults()
}

func ValidateServerConfig(cfg ServerConfig) error {
	if strings.TrimSpace(cfg.Addr) == "" {
		return fmt.Errorf("server config missing addr")
	}
	if strings.TrimSpace(cfg.StorageDir) == "" {
		return fmt.Errorf("server config missing storage_dir")
	}
	if _, err := codec.ByName(cfg.Framing, protocol.DefaultLimits()); err != nil {
		return fmt.Errorf("server config framing: %w", err)
	}
	if cfg.IdleTimeout < 0 {
		return fmt.Errorf("server config idle_timeout must not be negative")
	}
	if cfg.MaxFileSize == 0 || cfg.MaxFilenameLength <= 0 || cfg.ReadChunk <= 0 {
		return fmt.Errorf("server config max_file_size, max_filename_length and read_chunk must be positive")
	}
	if err := cfg.Limits().Validate(); err != nil {
		return fmt.Errorf("server config limits: %w", err)
	}
	if max := protocol.MaxTokenLength - storedNameOverhead; cfg.MaxFilenameLength > max {
		return fmt.Errorf("server config max_filename_length %d exceeds %d", cfg.MaxFilenameLength, max)
	}
	if err := cfg.Ledger.Validate(); err != nil {
		return fmt.Errorf("server config ledger: %w", err)
	}
	return nil
}

func ValidateClientConfig(cfg ClientConfig) error {
	if strings.TrimSpace(cfg.Addr) == "" {
		return fmt.Errorf("client config missing addr")
	}
	if _, err := codec.ByName(cfg.Framing, protocol.DefaultLimits()); err != nil {
		return fmt.Errorf("client config framing: %w", err)
	}
	if cfg.DialTimeout < 0 || cfg.IdleTimeout < 0 {
		return fmt.Errorf("client config timeouts must not be negative")
	}
	if cfg.Backoff.Multiplier != 0 && cfg.Backoff.Multiplier < 1 {
		return fmt.Errorf("client config backoff multiplier must be >= 1")
	}
	return nil
}
