package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/danmuck/edgedrop/internal/protocol"
	"github.com/danmuck/edgedrop/internal/protocol/codec"
	"github.com/danmuck/edgedrop/internal/protocol/stream"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Session executes one role's state machine over one connection.
// It is not safe for concurrent use and is never shared.
type Session struct {
	id    uuid.UUID
	role  Role
	state State
	conn  net.Conn
	r     *stream.Reader
	codec codec.Codec
	cfg   Config
	log   zerolog.Logger

	src  Source
	sink Sink

	result   Result
	finished bool
}

func NewSender(conn net.Conn, src Source, cfg Config) *Session {
	s := newSession(conn, RoleSender, cfg)
	s.src = src
	return s
}

func NewReceiver(conn net.Conn, sink Sink, cfg Config) *Session {
	s := newSession(conn, RoleReceiver, cfg)
	s.sink = sink
	return s
}

func newSession(conn net.Conn, role Role, cfg Config) *Session {
	cfg = cfg.withDefaults()
	id := uuid.New()
	remote := ""
	if addr := conn.RemoteAddr(); addr != nil {
		remote = addr.String()
	}
	return &Session{
		id:    id,
		role:  role,
		conn:  conn,
		r:     stream.NewReader(conn, cfg.Limits.ReadChunk),
		codec: cfg.Codec,
		cfg:   cfg,
		log: cfg.Logger.With().
			Str("session", id.String()).
			Str("role", string(role)).
			Str("remote", remote).
			Logger(),
		result: Result{Role: role, SessionID: id, Remote: remote},
	}
}

func (s *Session) ID() uuid.UUID { return s.id }
func (s *Session) Role() Role    { return s.role }
func (s *Session) State() State  { return s.state }

// Run drives the session to DONE or FAILED and returns its Result. The
// connection is closed before Run returns, including when ctx is cancelled
// mid-step or the session panics. Later calls return the same Result.
func (s *Session) Run(ctx context.Context) (res Result) {
	if s.finished {
		return s.result
	}
	s.result.Started = s.cfg.Now()
	stop := context.AfterFunc(ctx, func() { _ = s.conn.Close() })

	defer func() {
		stop()
		if p := recover(); p != nil {
			s.fail(ctx, protocol.MsgConnectionLost, fmt.Errorf("%w: %v", ErrPanic, p))
		}
		_ = s.conn.Close()
		s.finish()
		res = s.result
	}()

	if s.role == RoleSender {
		if s.src == nil {
			s.fail(ctx, protocol.MsgNotReady, ErrNilEndpoint)
			return
		}
		s.runSender(ctx)
		return
	}
	if s.sink == nil {
		s.fail(ctx, protocol.MsgSaveFailed, ErrNilEndpoint)
		return
	}
	s.runReceiver(ctx)
	return
}

// advance moves to next and refreshes the idle deadline.
func (s *Session) advance(next State) {
	if next <= s.state {
		panic(fmt.Sprintf("transfer: state regression %s -> %s", s.state, next))
	}
	s.state = next
	s.result.State = next
	s.touch()
	s.log.Trace().Str("state", next.String()).Msg("transfer state")
}

// touch pushes the idle deadline forward; payload loops call it per chunk.
func (s *Session) touch() {
	if s.cfg.IdleTimeout > 0 {
		_ = s.conn.SetDeadline(time.Now().Add(s.cfg.IdleTimeout))
	}
}

// touchWriter refreshes the idle deadline after every payload write.
type touchWriter struct {
	w io.Writer
	s *Session
}

func (t touchWriter) Write(p []byte) (int, error) {
	n, err := t.w.Write(p)
	t.s.touch()
	return n, err
}

func (s *Session) succeed(storedName string) {
	s.state = StateDone
	s.result.Outcome = OutcomeSuccess
	s.result.StoredName = storedName
}

func (s *Session) fail(ctx context.Context, reason string, err error) {
	if s.state.Terminal() {
		return
	}
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
		err = fmt.Errorf("%w: %w", ctxErr, err)
	}
	s.state = StateFailed
	s.result.Outcome = OutcomeFailure
	s.result.Reason = reason
	s.result.Err = err
}

// reject sends ERROR: <msg> when the write side is still usable, then fails.
func (s *Session) reject(ctx context.Context, msg string, err error) {
	if werr := s.codec.WriteToken(s.conn, protocol.Failure(msg)); werr != nil {
		s.log.Debug().Err(werr).Str("message", msg).Msg("error token not delivered")
	}
	if cw, ok := s.conn.(interface{ CloseWrite() error }); ok {
		_ = cw.CloseWrite()
	}
	s.fail(ctx, msg, err)
}

func (s *Session) finish() {
	s.finished = true
	s.result.Finished = s.cfg.Now()
	if s.state != StateDone && s.state != StateFailed {
		s.fail(context.Background(), protocol.MsgConnectionLost, errors.New("transfer: session ended without result"))
	}

	event := s.log.Info()
	if !s.result.Success() {
		event = s.log.Warn().Err(s.result.Err).Str("reason", s.result.Reason).Str("state", s.result.State.String())
	}
	event.
		Str("outcome", string(s.result.Outcome)).
		Str("file", s.result.Filename).
		Str("stored", s.result.StoredName).
		Uint64("size", s.result.Size).
		Uint64("bytes", s.result.Bytes).
		Dur("duration", s.result.Duration()).
		Msg("transfer finished")
}
