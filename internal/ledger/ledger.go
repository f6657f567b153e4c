// Package ledger keeps a history of finished receiver sessions.
//
// Backends:
// - memory: bounded ring, the default
// - sqlite, mysql: one row per session through gorm
// - redis: JSON entries in a capped list
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/danmuck/edgedrop/internal/transfer"
)

const (
	KindNone   = "none"
	KindMemory = "memory"
	KindSQLite = "sqlite"
	KindMySQL  = "mysql"
	KindRedis  = "redis"

	DefaultCapacity = 1000
	DefaultRedisKey = "edgedrop:transfers"
)

var (
	ErrUnknownKind = errors.New("ledger: unknown kind")
	ErrMissingDSN  = errors.New("ledger: missing dsn")
)

// Record is one finished transfer as stored by every backend.
type Record struct {
	ID         uint      `gorm:"primaryKey" json:"-"`
	SessionID  string    `gorm:"size:36;index" json:"session_id"`
	Role       string    `gorm:"size:16" json:"role"`
	Remote     string    `gorm:"size:64" json:"remote"`
	Framing    string    `gorm:"size:16" json:"framing"`
	Filename   string    `gorm:"size:255" json:"filename"`
	StoredName string    `gorm:"size:300" json:"stored_name,omitempty"`
	Size       uint64    `json:"size"`
	Bytes      uint64    `json:"bytes"`
	Outcome    string    `gorm:"size:16;index" json:"outcome"`
	Reason     string    `gorm:"size:255" json:"reason,omitempty"`
	Error      string    `gorm:"size:1024" json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `gorm:"index" json:"finished_at"`
	DurationMS int64     `json:"duration_ms"`
}

func (Record) TableName() string { return "transfers" }

// FromResult flattens a session result into a Record.
func FromResult(res transfer.Result, framing string) Record {
	rec := Record{
		SessionID:  res.SessionID.String(),
		Role:       string(res.Role),
		Remote:     res.Remote,
		Framing:    framing,
		Filename:   res.Filename,
		StoredName: res.StoredName,
		Size:       res.Size,
		Bytes:      res.Bytes,
		Outcome:    string(res.Outcome),
		Reason:     res.Reason,
		StartedAt:  res.Started,
		FinishedAt: res.Finished,
		DurationMS: res.Duration().Milliseconds(),
	}
	if res.Err != nil {
		rec.Error = res.Err.Error()
	}
	return rec
}

// Ledger is safe for concurrent use by all sessions of a server.
type Ledger interface {
	Append(ctx context.Context, rec Record) error
	// Recent returns up to limit records, newest first.
	Recent(ctx context.Context, limit int) ([]Record, error)
	Close() error
}

type Config struct {
	Kind      string `toml:"kind"`
	DSN       string `toml:"dsn"`
	RedisAddr string `toml:"redis_addr"`
	RedisDB   int    `toml:"redis_db"`
	Key       string `toml:"key"`
	Capacity  int    `toml:"capacity"`
}

func DefaultConfig() Config {
	return Config{Kind: KindMemory, Key: DefaultRedisKey, Capacity: DefaultCapacity}
}

func (c Config) Validate() error {
	switch strings.ToLower(c.Kind) {
	case "", KindNone, KindMemory:
		return nil
	case KindSQLite, KindMySQL:
		if strings.TrimSpace(c.DSN) == "" {
			return fmt.Errorf("%w: %s ledger", ErrMissingDSN, c.Kind)
		}
		return nil
	case KindRedis:
		if strings.TrimSpace(c.RedisAddr) == "" {
			return fmt.Errorf("ledger: redis ledger requires redis_addr")
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, c.Kind)
	}
}

// Open builds the configured backend. KindNone yields a ledger that drops
// every record.
func Open(ctx context.Context, cfg Config) (Ledger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	switch strings.ToLower(cfg.Kind) {
	case KindNone:
		return Discard{}, nil
	case "", KindMemory:
		return NewMemory(cfg.Capacity), nil
	case KindSQLite, KindMySQL:
		return OpenSQL(strings.ToLower(cfg.Kind), cfg.DSN)
	case KindRedis:
		return OpenRedis(ctx, cfg)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, cfg.Kind)
}

// Discard drops every record.
type Discard struct{}

func (Discard) Append(context.Context, Record) error          { return nil }
func (Discard) Recent(context.Context, int) ([]Record, error) { return nil, nil }
func (Discard) Close() error                                  { return nil }
