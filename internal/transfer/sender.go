package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/danmuck/edgedrop/internal/protocol"
)

func (s *Session) runSender(ctx context.Context) {
	name := s.src.Name()
	size := s.src.Size()
	s.result.Filename = name
	s.result.Size = size

	s.advance(StateAwaitReady)
	tok, err := s.codec.ReadToken(s.r, protocol.KindReady)
	if err != nil || tok.Kind != protocol.KindReady {
		s.fail(ctx, protocol.MsgNotReady, tokenErr(ErrNotReady, tok, err))
		return
	}

	s.advance(StateSendFilename)
	if err := s.codec.WriteFilename(s.conn, name); err != nil {
		s.fail(ctx, protocol.MsgConnectionLost, fmt.Errorf("%w: write filename: %w", protocol.ErrConnectionClosed, err))
		return
	}

	s.advance(StateSendSize)
	if err := s.codec.WriteSize(s.conn, size); err != nil {
		s.fail(ctx, protocol.MsgConnectionLost, fmt.Errorf("%w: write size: %w", protocol.ErrConnectionClosed, err))
		return
	}

	s.advance(StateAwaitStart)
	tok, err = s.codec.ReadToken(s.r, protocol.KindStart)
	if err != nil || tok.Kind != protocol.KindStart {
		s.fail(ctx, protocol.MsgNotApproved, tokenErr(ErrNotApproved, tok, err))
		return
	}

	s.advance(StateStreamPayload)
	if err := s.streamPayload(size); err != nil {
		reason := protocol.MsgIncomplete
		if errors.Is(err, protocol.ErrConnectionClosed) {
			reason = protocol.MsgConnectionLost
		}
		s.fail(ctx, reason, err)
		return
	}

	s.advance(StateAwaitResult)
	tok, err = s.codec.ReadToken(s.r, protocol.KindSuccess)
	switch {
	case err != nil && tok.Kind == protocol.KindUnknown && tok.Text != "":
		s.fail(ctx, tok.String(), err)
	case err != nil:
		s.fail(ctx, protocol.MsgConnectionLost, err)
	case tok.Kind != protocol.KindSuccess:
		s.fail(ctx, tok.String(), fmt.Errorf("%w: %s", ErrRemoteFailure, tok))
	default:
		s.succeed(tok.Text)
	}
}

// streamPayload writes exactly size bytes from the source in pieces of at
// most ReadChunk bytes.
func (s *Session) streamPayload(size uint64) error {
	buf := make([]byte, s.cfg.Limits.ReadChunk)
	for s.result.Bytes < size {
		want := uint64(len(buf))
		if remaining := size - s.result.Bytes; remaining < want {
			want = remaining
		}
		n, rerr := s.src.Read(buf[:want])
		if n > 0 {
			wn, werr := s.conn.Write(buf[:n])
			s.result.Bytes += uint64(wn)
			s.touch()
			if werr != nil {
				return fmt.Errorf("%w: sent %d of %d bytes: %w", protocol.ErrConnectionClosed, s.result.Bytes, size, werr)
			}
		}
		if rerr != nil {
			if s.result.Bytes == size {
				return nil
			}
			if errors.Is(rerr, io.EOF) {
				return fmt.Errorf("%w: read %d of %d bytes", ErrShortSource, s.result.Bytes, size)
			}
			return fmt.Errorf("transfer: read source: %w", rerr)
		}
	}
	return nil
}

func tokenErr(base error, tok protocol.Token, err error) error {
	if err != nil {
		return fmt.Errorf("%w: %w", base, err)
	}
	return fmt.Errorf("%w: peer sent %q", base, tok.String())
}
