// Package stream buffers reads from a byte-oriented transport that may
// deliver data in arbitrary fragments or close early.
package stream

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/danmuck/edgedrop/internal/protocol"
)

var (
	ErrFieldTooLong = fmt.Errorf("%w: field exceeds scan bound", protocol.ErrProtocolViolation)
	ErrShortWrite   = fmt.Errorf("%w: short write", protocol.ErrPersistenceFailure)
)

// Reader exposes delimiter and exact-count reads over one transport.
// Bytes buffered past a delimiter stay available to the next call.
type Reader struct {
	br    *bufio.Reader
	chunk int
}

// NewReader wraps r; chunk bounds the size of each payload read.
func NewReader(r io.Reader, chunk int) *Reader {
	if chunk <= 0 {
		chunk = protocol.ReadChunk
	}
	return &Reader{br: bufio.NewReaderSize(r, chunk), chunk: chunk}
}

// Read satisfies io.Reader so framed codecs can use io.ReadFull directly.
func (r *Reader) Read(p []byte) (int, error) {
	return r.br.Read(p)
}

func (r *Reader) ReadByte() (byte, error) {
	return r.br.ReadByte()
}

// ReadUntil accumulates bytes until the accumulator ends with delim and
// returns them with delim stripped. At most max+len(delim) bytes are
// accumulated before failing with ErrFieldTooLong.
func (r *Reader) ReadUntil(delim []byte, max int) ([]byte, error) {
	if len(delim) == 0 {
		return nil, fmt.Errorf("stream: empty delimiter")
	}
	bound := max + len(delim)
	acc := make([]byte, 0, min(bound, 64))
	for {
		c, err := r.br.ReadByte()
		if err != nil {
			return nil, closedErr(err, "delimiter %q not seen after %d bytes", delim, len(acc))
		}
		acc = append(acc, c)
		if bytes.HasSuffix(acc, delim) {
			return acc[:len(acc)-len(delim)], nil
		}
		if len(acc) >= bound {
			return nil, fmt.Errorf("%w: %d bytes without %q", ErrFieldTooLong, len(acc), delim)
		}
	}
}

// ReadExact returns exactly n bytes, issuing further transport reads as needed.
func (r *Reader) ReadExact(n int) ([]byte, error) {
	buf := make([]byte, n)
	got, err := io.ReadFull(r.br, buf)
	if err != nil {
		return nil, closedErr(err, "read %d of %d bytes", got, n)
	}
	return buf, nil
}

// CopyExact streams exactly n bytes into dst, requesting at most
// min(chunk, remaining) bytes per read so nothing past n is consumed.
// It returns the number of bytes delivered to dst.
func (r *Reader) CopyExact(dst io.Writer, n uint64) (uint64, error) {
	buf := make([]byte, r.chunk)
	var done uint64
	for done < n {
		want := uint64(len(buf))
		if remaining := n - done; remaining < want {
			want = remaining
		}
		got, err := r.br.Read(buf[:want])
		if got > 0 {
			wn, werr := dst.Write(buf[:got])
			done += uint64(wn)
			if werr != nil {
				return done, fmt.Errorf("%w: %v", protocol.ErrPersistenceFailure, werr)
			}
			if wn != got {
				return done, ErrShortWrite
			}
		}
		if err != nil {
			if done == n {
				return done, nil
			}
			return done, closedErr(err, "received %d of %d bytes", done, n)
		}
	}
	return done, nil
}

// ReadRest reads until the peer closes, failing once more than max bytes arrive.
func (r *Reader) ReadRest(max int) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r.br, int64(max)+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", protocol.ErrConnectionClosed, err)
	}
	if len(data) > max {
		return nil, fmt.Errorf("%w: more than %d bytes before close", ErrFieldTooLong, max)
	}
	return data, nil
}

// Buffered reports bytes already read from the transport but not consumed.
func (r *Reader) Buffered() int {
	return r.br.Buffered()
}

func closedErr(err error, format string, args ...any) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %s", protocol.ErrConnectionClosed, fmt.Sprintf(format, args...))
	}
	return fmt.Errorf("%w: %s: %w", protocol.ErrConnectionClosed, fmt.Sprintf(format, args...), err)
}
