package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// serverFile is the on-disk shape of ServerConfig; durations are strings
// such as "30s".
type serverFile struct {
	Addr              string     `toml:"addr"`
	StorageDir        string     `toml:"storage_dir"`
	Framing           string     `toml:"framing"`
	IdleTimeout       string     `toml:"idle_timeout"`
	MaxFileSize       uint64     `toml:"max_file_size"`
	MaxFilenameLength int        `toml:"max_filename_length"`
	ReadChunk         int        `toml:"read_chunk"`
	AdminAddr         string     `toml:"admin_addr"`
	CorsOrigins       []string   `toml:"cors_origins"`
	Ledger            ledgerFile `toml:"ledger"`
}

type ledgerFile struct {
	Kind      string `toml:"kind"`
	DSN       string `toml:"dsn"`
	RedisAddr string `toml:"redis_addr"`
	RedisDB   int    `toml:"redis_db"`
	Key       string `toml:"key"`
	Capacity  int    `toml:"capacity"`
}

type clientFile struct {
	Addr            string      `toml:"addr"`
	Framing         string      `toml:"framing"`
	DialTimeout     string      `toml:"dial_timeout"`
	IdleTimeout     string      `toml:"idle_timeout"`
	ConnectAttempts int         `toml:"connect_attempts"`
	Backoff         backoffFile `toml:"backoff"`
}

type backoffFile struct {
	InitialDelay string  `toml:"initial_delay"`
	Multiplier   float64 `toml:"multiplier"`
	MaxDelay     string  `toml:"max_delay"`
	Jitter       bool    `toml:"jitter"`
}

// LoadServerConfig overlays the keys present in path onto
// DefaultServerConfig and validates the result.
func LoadServerConfig(path string) (ServerConfig, error) {
	cfg := DefaultServerConfig()

	var raw serverFile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return ServerConfig{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return ServerConfig{}, fmt.Errorf("config %s: unknown key %q", path, undecoded[0].String())
	}

	if meta.IsDefined("addr") {
		cfg.Addr = strings.TrimSpace(raw.Addr)
	}
	if meta.IsDefined("storage_dir") {
		cfg.StorageDir = strings.TrimSpace(raw.StorageDir)
	}
	if meta.IsDefined("framing") {
		cfg.Framing = strings.TrimSpace(raw.Framing)
	}
	if meta.IsDefined("idle_timeout") {
		d, err := parseDuration("idle_timeout", raw.IdleTimeout)
		if err != nil {
			return ServerConfig{}, err
		}
		cfg.IdleTimeout = d
	}
	if meta.IsDefined("max_file_size") {
		cfg.MaxFileSize = raw.MaxFileSize
	}
	if meta.IsDefined("max_filename_length") {
		cfg.MaxFilenameLength = raw.MaxFilenameLength
	}
	if meta.IsDefined("read_chunk") {
		cfg.ReadChunk = raw.ReadChunk
	}
	if meta.IsDefined("admin_addr") {
		cfg.AdminAddr = strings.TrimSpace(raw.AdminAddr)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = normalizeList(raw.CorsOrigins)
	}

	if meta.IsDefined("ledger", "kind") {
		cfg.Ledger.Kind = strings.ToLower(strings.TrimSpace(raw.Ledger.Kind))
	}
	if meta.IsDefined("ledger", "dsn") {
		cfg.Ledger.DSN = raw.Ledger.DSN
	}
	if meta.IsDefined("ledger", "redis_addr") {
		cfg.Ledger.RedisAddr = strings.TrimSpace(raw.Ledger.RedisAddr)
	}
	if meta.IsDefined("ledger", "redis_db") {
		cfg.Ledger.RedisDB = raw.Ledger.RedisDB
	}
	if meta.IsDefined("ledger", "key") {
		cfg.Ledger.Key = strings.TrimSpace(raw.Ledger.Key)
	}
	if meta.IsDefined("ledger", "capacity") {
		cfg.Ledger.Capacity = raw.Ledger.Capacity
	}

	if err := ValidateServerConfig(cfg); err != nil {
		return ServerConfig{}, err
	}
	return cfg, nil
}

// LoadClientConfig overlays the keys present in path onto
// DefaultClientConfig and validates the result.
func LoadClientConfig(path string) (ClientConfig, error) {
	cfg := DefaultClientConfig()

	var raw clientFile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return ClientConfig{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return ClientConfig{}, fmt.Errorf("config %s: unknown key %q", path, undecoded[0].String())
	}

	if meta.IsDefined("addr") {
		cfg.Addr = strings.TrimSpace(raw.Addr)
	}
	if meta.IsDefined("framing") {
		cfg.Framing = strings.TrimSpace(raw.Framing)
	}
	if meta.IsDefined("dial_timeout") {
		d, err := parseDuration("dial_timeout", raw.DialTimeout)
		if err != nil {
			return ClientConfig{}, err
		}
		cfg.DialTimeout = d
	}
	if meta.IsDefined("idle_timeout") {
		d, err := parseDuration("idle_timeout", raw.IdleTimeout)
		if err != nil {
			return ClientConfig{}, err
		}
		cfg.IdleTimeout = d
	}
	if meta.IsDefined("connect_attempts") {
		cfg.ConnectAttempts = raw.ConnectAttempts
	}
	if meta.IsDefined("backoff", "initial_delay") {
		d, err := parseDuration("backoff.initial_delay", raw.Backoff.InitialDelay)
		if err != nil {
			return ClientConfig{}, err
		}
		cfg.Backoff.InitialDelay = d
	}
	if meta.IsDefined("backoff", "multiplier") {
		cfg.Backoff.Multiplier = raw.Backoff.Multiplier
	}
	if meta.IsDefined("backoff", "max_delay") {
		d, err := parseDuration("backoff.max_delay", raw.Backoff.MaxDelay)
		if err != nil {
			return ClientConfig{}, err
		}
		cfg.Backoff.MaxDelay = d
	}
	if meta.IsDefined("backoff", "jitter") {
		cfg.Backoff.Jitter = raw.Backoff.Jitter
	}

	if err := ValidateClientConfig(cfg); err != nil {
		return ClientConfig{}, err
	}
	return cfg, nil
}

func parseDuration(key, raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
