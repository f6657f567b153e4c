// Package client dials a receiver and runs one sender session.
package client

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"strings"
	"time"

	"github.com/danmuck/edgedrop/internal/observability"
	"github.com/danmuck/edgedrop/internal/storage"
	"github.com/danmuck/edgedrop/internal/transfer"
	"github.com/rs/zerolog/log"
)

var ErrDial = errors.New("client: dial failed")

type Config struct {
	Addr        string
	DialTimeout time.Duration
	// ConnectAttempts bounds dialing; <= 0 means a single attempt.
	ConnectAttempts int
	Backoff         BackoffConfig
	Transfer        transfer.Config
}

func DefaultConfig() Config {
	return Config{
		Addr:            "127.0.0.1:8888",
		DialTimeout:     5 * time.Second,
		ConnectAttempts: 3,
		Backoff:         DefaultBackoff(),
		Transfer:        transfer.DefaultConfig(),
	}
}

// SendFile opens path and sends it with Send.
func SendFile(ctx context.Context, cfg Config, path string) (transfer.Result, error) {
	src, err := storage.OpenFile(path)
	if err != nil {
		return transfer.Result{}, err
	}
	defer src.Close()
	return Send(ctx, cfg, src)
}

// Send dials cfg.Addr, retrying with backoff, and runs one sender session.
// The returned error reports only dial failure; session failures are in
// the Result. A started session is never retried.
func Send(ctx context.Context, cfg Config, src transfer.Source) (transfer.Result, error) {
	conn, err := dial(ctx, cfg)
	if err != nil {
		return transfer.Result{}, err
	}
	done := observability.SessionStarted()
	defer done()
	res := transfer.NewSender(conn, src, cfg.Transfer).Run(ctx)
	observability.RecordTransfer(string(res.Role), string(res.Outcome), res.Reason, res.Bytes, res.Duration())
	return res, nil
}

func dial(ctx context.Context, cfg Config) (net.Conn, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, fmt.Errorf("%w: empty address", ErrDial)
	}
	attempts := cfg.ConnectAttempts
	if attempts <= 0 {
		attempts = 1
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	dialer := net.Dialer{Timeout: cfg.DialTimeout}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		if ctx.Err() != nil || attempt == attempts {
			break
		}
		delay := NextBackoffDelay(cfg.Backoff, attempt, rng)
		log.Warn().Err(err).Str("addr", addr).Int("attempt", attempt).Dur("retry_in", delay).Msg("dial")
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%w: %s: %w", ErrDial, addr, ctx.Err())
		case <-timer.C:
		}
	}
	return nil, fmt.Errorf("%w: %s after %d attempt(s): %w", ErrDial, addr, attempts, lastErr)
}
