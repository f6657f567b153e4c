// Package codec encodes and decodes the handshake fields and control tokens.
//
// Two wire variants share one interface:
// - delimited: marker-terminated text fields and raw token writes
// - framed: length-prefixed frames carrying TLV fields and token text
//
// Payload bytes are never encoded; they follow START_TRANSFER raw.
package codec

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/danmuck/edgedrop/internal/protocol"
	"github.com/danmuck/edgedrop/internal/protocol/stream"
)

const (
	NameFramed    = "framed"
	NameDelimited = "delimited"
)

var ErrUnknownCodec = errors.New("codec: unknown framing")

// Codec is the stateless field/token contract used by both session roles.
type Codec interface {
	Name() string
	WriteFilename(w io.Writer, name string) error
	ReadFilename(r *stream.Reader) (string, error)
	WriteSize(w io.Writer, size uint64) error
	ReadSize(r *stream.Reader) (uint64, error)
	WriteToken(w io.Writer, tok protocol.Token) error
	// ReadToken reads the next control token. A well-formed token of a kind
	// other than expect is returned without error; the caller decides.
	ReadToken(r *stream.Reader, expect protocol.TokenKind) (protocol.Token, error)
}

// ByName resolves a configured framing name.
func ByName(name string, limits protocol.Limits) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", NameFramed:
		return NewFramed(limits), nil
	case NameDelimited:
		return NewDelimited(limits), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
}

// Names lists supported framing names.
func Names() []string {
	return []string{NameFramed, NameDelimited}
}
