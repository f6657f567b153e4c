package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Template renders the default config of kind as TOML.
func Template(kind string) (string, error) {
	var (
		header string
		doc    any
	)
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case KindServer:
		header = "# dropd receiver config; durations use Go syntax (\"30s\"), \"0\" disables.\n" +
			"# ledger.kind: none | memory | sqlite | mysql | redis\n"
		doc = serverFileFrom(DefaultServerConfig())
	case KindClient:
		header = "# drop sender config; durations use Go syntax (\"30s\"), \"0\" disables.\n"
		doc = clientFileFrom(DefaultClientConfig())
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
	body, err := toml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("render %s template: %w", kind, err)
	}
	return header + string(body), nil
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

// Validate loads path as kind and reports the first problem.
func Validate(path, kind string) error {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case KindServer:
		_, err := LoadServerConfig(path)
		return err
	case KindClient:
		_, err := LoadClientConfig(path)
		return err
	default:
		return fmt.Errorf("unknown config kind: %s", kind)
	}
}

func serverFileFrom(cfg ServerConfig) serverFile {
	origins := cfg.CorsOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	return serverFile{
		Addr:              cfg.Addr,
		StorageDir:        cfg.StorageDir,
		Framing:           cfg.Framing,
		IdleTimeout:       formatDuration(cfg.IdleTimeout),
		MaxFileSize:       cfg.MaxFileSize,
		MaxFilenameLength: cfg.MaxFilenameLength,
		ReadChunk:         cfg.ReadChunk,
		AdminAddr:         cfg.AdminAddr,
		CorsOrigins:       origins,
		Ledger: ledgerFile{
			Kind:      cfg.Ledger.Kind,
			DSN:       cfg.Ledger.DSN,
			RedisAddr: cfg.Ledger.RedisAddr,
			RedisDB:   cfg.Ledger.RedisDB,
			Key:       cfg.Ledger.Key,
			Capacity:  cfg.Ledger.Capacity,
		},
	}
}

func clientFileFrom(cfg ClientConfig) clientFile {
	return clientFile{
		Addr:            cfg.Addr,
		Framing:         cfg.Framing,
		DialTimeout:     formatDuration(cfg.DialTimeout),
		IdleTimeout:     formatDuration(cfg.IdleTimeout),
		ConnectAttempts: cfg.ConnectAttempts,
		Backoff: backoffFile{
			InitialDelay: formatDuration(cfg.Backoff.InitialDelay),
			Multiplier:   cfg.Backoff.Multiplier,
			MaxDelay:     formatDuration(cfg.Backoff.MaxDelay),
			Jitter:       cfg.Backoff.Jitter,
		},
	}
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return "0"
	}
	return d.String()
}
