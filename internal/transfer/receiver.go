package transfer

import (
	"context"
	"errors"
	"fmt"

	"github.com/danmuck/edgedrop/internal/protocol"
)

func (s *Session) runReceiver(ctx context.Context) {
	limits := s.cfg.Limits

	s.advance(StateSendReady)
	if err := s.codec.WriteToken(s.conn, protocol.Ready()); err != nil {
		s.fail(ctx, protocol.MsgConnectionLost, fmt.Errorf("%w: write ready: %w", protocol.ErrConnectionClosed, err))
		return
	}

	s.advance(StateRecvFilename)
	raw, err := s.codec.ReadFilename(s.r)
	if err != nil {
		s.failField(ctx, protocol.MsgInvalidFilename, err)
		return
	}
	name, err := protocol.ValidateFilename(raw, limits)
	if err != nil {
		s.reject(ctx, protocol.MsgInvalidFilename, err)
		return
	}
	s.result.Filename = name
	if name != raw {
		s.log.Debug().Str("raw", raw).Str("file", name).Msg("filename reduced to basename")
	}

	s.advance(StateRecvSize)
	size, err := s.codec.ReadSize(s.r)
	if err != nil {
		s.failField(ctx, protocol.MsgInvalidSize, err)
		return
	}
	if err := protocol.ValidateSize(size, limits); err != nil {
		s.result.Size = size
		s.reject(ctx, protocol.MsgInvalidSize, err)
		return
	}
	s.result.Size = size

	upload, err := s.sink.Begin(name, size)
	if err != nil {
		s.reject(ctx, protocol.MsgSaveFailed, fmt.Errorf("%w: begin upload: %w", protocol.ErrPersistenceFailure, err))
		return
	}
	committed := false
	defer func() {
		if !committed {
			if aerr := upload.Abort(); aerr != nil {
				s.log.Warn().Err(aerr).Msg("abort upload")
			}
		}
	}()

	s.advance(StateSendStart)
	if err := s.codec.WriteToken(s.conn, protocol.Start()); err != nil {
		s.fail(ctx, protocol.MsgConnectionLost, fmt.Errorf("%w: write start: %w", protocol.ErrConnectionClosed, err))
		return
	}

	s.advance(StateRecvPayload)
	n, err := s.r.CopyExact(touchWriter{w: upload, s: s}, size)
	s.result.Bytes = n
	if err != nil {
		if errors.Is(err, protocol.ErrPersistenceFailure) {
			s.reject(ctx, protocol.MsgSaveFailed, err)
			return
		}
		s.reject(ctx, protocol.MsgIncomplete, err)
		return
	}

	s.advance(StatePersist)
	stored, err := upload.Commit()
	if err != nil {
		s.reject(ctx, protocol.MsgSaveFailed, fmt.Errorf("%w: commit: %w", protocol.ErrPersistenceFailure, err))
		return
	}
	committed = true

	s.advance(StateSendResult)
	if err := s.codec.WriteToken(s.conn, protocol.Success(stored)); err != nil {
		// the artifact is durable; only the acknowledgement was lost
		s.log.Warn().Err(err).Str("stored", stored).Msg("success token not delivered")
	}
	s.succeed(stored)
}

// failField handles a field that could not be decoded: malformed input is
// rejected with msg, a closed connection just fails.
func (s *Session) failField(ctx context.Context, msg string, err error) {
	if errors.Is(err, protocol.ErrConnectionClosed) {
		s.fail(ctx, protocol.MsgConnectionLost, err)
		return
	}
	if errors.Is(err, protocol.ErrSizeLimitExceeded) || errors.Is(err, protocol.ErrProtocolViolation) {
		s.reject(ctx, msg, err)
		return
	}
	s.fail(ctx, protocol.MsgConnectionLost, err)
}
