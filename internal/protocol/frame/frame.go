package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/danmuck/edgedrop/internal/protocol"
)

const (
	HeaderLen        = 12
	Magic     uint32 = 0xEDD0F11E
	Version   uint16 = 1
)

// Kind identifies one handshake message.
type Kind uint16

const (
	KindReady    Kind = 1
	KindFilename Kind = 2
	KindSize     Kind = 3
	KindStart    Kind = 4
	KindSuccess  Kind = 5
	KindError    Kind = 6
)

func (k Kind) String() string {
	switch k {
	case KindReady:
		return "ready"
	case KindFilename:
		return "filename"
	case KindSize:
		return "size"
	case KindStart:
		return "start"
	case KindSuccess:
		return "success"
	case KindError:
		return "error"
	default:
		return fmt.Sprintf("kind(%d)", uint16(k))
	}
}

var (
	ErrShortHeader        = fmt.Errorf("%w: frame: short header", protocol.ErrConnectionClosed)
	ErrTruncated          = fmt.Errorf("%w: frame: truncated payload", protocol.ErrConnectionClosed)
	ErrInvalidMagic       = fmt.Errorf("%w: frame: invalid magic", protocol.ErrProtocolViolation)
	ErrUnsupportedVersion = fmt.Errorf("%w: frame: unsupported version", protocol.ErrProtocolViolation)
	ErrPayloadTooLarge    = fmt.Errorf("%w: frame: payload too large", protocol.ErrProtocolViolation)
)

// Header is the fixed wire header, big-endian:
// magic(4) version(2) kind(2) length(4).
type Header struct {
	Magic   uint32
	Version uint16
	Kind    Kind
	Length  uint32
}

// Frame is one complete handshake message.
type Frame struct {
	Kind    Kind
	Payload []byte
}

// Limits constrains frame decode/encode memory use.
type Limits struct {
	MaxPayloadBytes uint32
}

func DefaultLimits() Limits {
	return Limits{MaxPayloadBytes: protocol.MaxTokenLength}
}

func ReadFrame(r io.Reader, limits Limits) (Frame, error) {
	var fixed [HeaderLen]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return Frame{}, ErrShortHeader
		}
		return Frame{}, fmt.Errorf("%w: %w", protocol.ErrConnectionClosed, err)
	}

	h := DecodeHeader(fixed[:])
	if h.Magic != Magic {
		return Frame{}, fmt.Errorf("%w: 0x%08X", ErrInvalidMagic, h.Magic)
	}
	if h.Version != Version {
		return Frame{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.Version)
	}
	if h.Length > limits.MaxPayloadBytes {
		return Frame{}, fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, h.Length, limits.MaxPayloadBytes)
	}

	payload := make([]byte, h.Length)
	if h.Length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return Frame{}, ErrTruncated
		}
	}
	return Frame{Kind: h.Kind, Payload: payload}, nil
}

// WriteFrame emits header and payload with a single Write call.
func WriteFrame(w io.Writer, f Frame, limits Limits) error {
	if uint64(len(f.Payload)) > uint64(limits.MaxPayloadBytes) {
		return fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, len(f.Payload), limits.MaxPayloadBytes)
	}
	buf := make([]byte, HeaderLen, HeaderLen+len(f.Payload))
	EncodeHeaderTo(buf, Header{
		Magic:   Magic,
		Version: Version,
		Kind:    f.Kind,
		Length:  uint32(len(f.Payload)),
	})
	buf = append(buf, f.Payload...)
	_, err := w.Write(buf)
	return err
}

func EncodeHeader(h Header) []byte {
	buf := make([]byte, HeaderLen)
	EncodeHeaderTo(buf, h)
	return buf
}

func EncodeHeaderTo(buf []byte, h Header) {
	binary.BigEndian.PutUint32(buf[0:4], h.Magic)
	binary.BigEndian.PutUint16(buf[4:6], h.Version)
	binary.BigEndian.PutUint16(buf[6:8], uint16(h.Kind))
	binary.BigEndian.PutUint32(buf[8:12], h.Length)
}

func DecodeHeader(b []byte) Header {
	return Header{
		Magic:   binary.BigEndian.Uint32(b[0:4]),
		Version: binary.BigEndian.Uint16(b[4:6]),
		Kind:    Kind(binary.BigEndian.Uint16(b[6:8])),
		Length:  binary.BigEndian.Uint32(b[8:12]),
	}
}
