// Package server accepts transfer connections and runs one receiver
// session per connection.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/danmuck/edgedrop/internal/ledger"
	"github.com/danmuck/edgedrop/internal/observability"
	"github.com/danmuck/edgedrop/internal/protocol/codec"
	"github.com/danmuck/edgedrop/internal/transfer"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	DefaultAddr = "127.0.0.1:8888"

	ledgerTimeout   = 5 * time.Second
	shutdownTimeout = 5 * time.Second
)

var ErrNoSink = errors.New("server: nil sink")

type Config struct {
	// Name labels admin HTTP metrics and logs.
	Name        string
	Addr        string
	AdminAddr   string
	CorsOrigins []string
	Transfer    transfer.Config
}

func DefaultConfig() Config {
	return Config{
		Name:     "dropd",
		Addr:     DefaultAddr,
		Transfer: transfer.DefaultConfig(),
	}
}

// Server is the receiver daemon. Sessions share only the sink, the ledger
// and counters; each owns its connection.
type Server struct {
	cfg     Config
	sink    transfer.Sink
	ledger  ledger.Ledger
	log     zerolog.Logger
	started time.Time

	ready    atomic.Bool
	active   atomic.Int64
	sessions atomic.Uint64
	wg       sync.WaitGroup

	mu   sync.Mutex
	addr net.Addr
}

func New(cfg Config, sink transfer.Sink, l ledger.Ledger) (*Server, error) {
	if sink == nil {
		return nil, ErrNoSink
	}
	if l == nil {
		l = ledger.Discard{}
	}
	if strings.TrimSpace(cfg.Name) == "" {
		cfg.Name = "dropd"
	}
	if cfg.Transfer.Codec == nil {
		cfg.Transfer.Limits = cfg.Transfer.Limits.WithDefaults()
		cfg.Transfer.Codec = codec.NewFramed(cfg.Transfer.Limits)
	}
	if cfg.Transfer.Logger == nil {
		logger := log.Logger
		cfg.Transfer.Logger = &logger
	}
	observability.RegisterMetrics()
	return &Server{
		cfg:     cfg,
		sink:    sink,
		ledger:  l,
		log:     cfg.Transfer.Logger.With().Str("component", "server").Logger(),
		started: time.Now(),
	}, nil
}

// Addr reports the transfer listener address once serving.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

func (s *Server) Ready() bool { return s.ready.Load() }

// ListenAndServe listens on cfg.Addr, starts the admin HTTP server when
// configured, and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", strings.TrimSpace(s.cfg.Addr))
	if err != nil {
		return err
	}
	if strings.TrimSpace(s.cfg.AdminAddr) != "" {
		admin := &http.Server{
			Addr:              s.cfg.AdminAddr,
			Handler:           s.AdminHandler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			s.log.Info().Str("addr", admin.Addr).Msg("admin listening")
			if err := admin.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.log.Error().Err(err).Msg("admin server stopped")
			}
		}()
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = admin.Shutdown(shutdownCtx)
		}()
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done or ln fails. A failed
// session never stops the loop. On return every session has finished.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()
	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	s.ready.Store(true)
	defer s.ready.Store(false)
	s.log.Info().
		Str("addr", ln.Addr().String()).
		Str("framing", s.cfg.Transfer.Codec.Name()).
		Msg("server started")

	var tempDelay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.wg.Wait()
				s.log.Info().Uint64("sessions", s.sessions.Load()).Msg("server stopped")
				return nil
			}
			if retryableAccept(err) {
				tempDelay = nextAcceptDelay(tempDelay)
				s.log.Warn().Err(err).Dur("retry_in", tempDelay).Msg("accept")
				time.Sleep(tempDelay)
				continue
			}
			s.wg.Wait()
			return err
		}
		tempDelay = 0
		s.wg.Add(1)
		go s.handleConn(ctx, conn)
	}
}

// retryableAccept reports transient accept errors, descriptor exhaustion
// included, that must not stop the loop.
func retryableAccept(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	for _, errno := range []syscall.Errno{syscall.EMFILE, syscall.ENFILE, syscall.ENOBUFS, syscall.ENOMEM, syscall.ECONNABORTED} {
		if errors.Is(err, errno) {
			return true
		}
	}
	return false
}

func nextAcceptDelay(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	d *= 2
	if d > time.Second {
		d = time.Second
	}
	return d
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()
	remote := conn.RemoteAddr().String()
	active := s.active.Add(1)
	s.sessions.Add(1)
	done := observability.SessionStarted()
	s.log.Info().Str("remote", remote).Int64("active_clients", active).Msg("client connected")
	defer func() {
		done()
		remaining := s.active.Add(-1)
		s.log.Info().Str("remote", remote).Int64("active_clients", remaining).Msg("client disconnected")
	}()

	res := transfer.NewReceiver(conn, s.sink, s.cfg.Transfer).Run(ctx)
	observability.RecordTransfer(string(res.Role), string(res.Outcome), res.Reason, res.Bytes, res.Duration())

	lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ledgerTimeout)
	defer cancel()
	if err := s.ledger.Append(lctx, ledger.FromResult(res, s.cfg.Transfer.Codec.Name())); err != nil {
		s.log.Warn().Err(err).Str("session", res.SessionID.String()).Msg("ledger append")
	}
}
