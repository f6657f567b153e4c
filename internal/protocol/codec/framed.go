package codec

import (
	"fmt"
	"io"
	"math"

	"github.com/danmuck/edgedrop/internal/protocol"
	"github.com/danmuck/edgedrop/internal/protocol/frame"
	"github.com/danmuck/edgedrop/internal/protocol/stream"
	"github.com/danmuck/edgedrop/internal/protocol/tlv"
)

// TLV field ids carried by filename and size frames.
const (
	FieldFilename uint16 = 1
	FieldSize     uint16 = 2
)

// Framed speaks the length-prefixed wire format. Every handshake field and
// token is one frame, so filenames may contain any marker text.
type Framed struct {
	limits protocol.Limits
	write  frame.Limits
}

func NewFramed(limits protocol.Limits) *Framed {
	return &Framed{
		limits: limits.WithDefaults(),
		// writes are bounded by the frame length field; the peer enforces its own limits
		write: frame.Limits{MaxPayloadBytes: math.MaxUint32},
	}
}

func (f *Framed) Name() string { return NameFramed }

func (f *Framed) WriteFilename(w io.Writer, name string) error {
	payload := tlv.Encode(tlv.String(FieldFilename, name))
	return frame.WriteFrame(w, frame.Frame{Kind: frame.KindFilename, Payload: payload}, f.write)
}

func (f *Framed) ReadFilename(r *stream.Reader) (string, error) {
	fields, err := f.readFields(r, frame.KindFilename, f.limits.MaxFilenameLength)
	if err != nil {
		return "", err
	}
	name, err := tlv.StringField(fields, FieldFilename)
	if err != nil {
		return "", fmt.Errorf("%w: %v", protocol.ErrInvalidFilename, err)
	}
	return name, nil
}

func (f *Framed) WriteSize(w io.Writer, size uint64) error {
	payload := tlv.Encode(tlv.U64(FieldSize, size))
	return frame.WriteFrame(w, frame.Frame{Kind: frame.KindSize, Payload: payload}, f.write)
}

func (f *Framed) ReadSize(r *stream.Reader) (uint64, error) {
	fields, err := f.readFields(r, frame.KindSize, 8)
	if err != nil {
		return 0, err
	}
	size, err := tlv.U64Field(fields, FieldSize)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", protocol.ErrInvalidSize, err)
	}
	return size, nil
}

func (f *Framed) WriteToken(w io.Writer, tok protocol.Token) error {
	var kind frame.Kind
	var payload []byte
	switch tok.Kind {
	case protocol.KindReady:
		kind = frame.KindReady
	case protocol.KindStart:
		kind = frame.KindStart
	case protocol.KindSuccess:
		kind, payload = frame.KindSuccess, []byte(tok.Text)
	case protocol.KindError:
		kind, payload = frame.KindError, []byte(tok.Text)
	default:
		return fmt.Errorf("codec: cannot encode token kind %s", tok.Kind)
	}
	if len(payload) > f.limits.MaxTokenLength {
		return fmt.Errorf("%w: %d bytes", protocol.ErrTokenTooLarge, len(payload))
	}
	return frame.WriteFrame(w, frame.Frame{Kind: kind, Payload: payload}, f.write)
}

func (f *Framed) ReadToken(r *stream.Reader, expect protocol.TokenKind) (protocol.Token, error) {
	fr, err := frame.ReadFrame(r, frame.Limits{MaxPayloadBytes: uint32(f.limits.MaxTokenLength)})
	if err != nil {
		return protocol.Token{}, err
	}
	switch fr.Kind {
	case frame.KindReady:
		return protocol.Ready(), nil
	case frame.KindStart:
		return protocol.Start(), nil
	case frame.KindSuccess:
		if len(fr.Payload) == 0 {
			return protocol.Token{}, fmt.Errorf("%w: empty stored name", protocol.ErrUnexpectedToken)
		}
		return protocol.Success(string(fr.Payload)), nil
	case frame.KindError:
		return protocol.Failure(string(fr.Payload)), nil
	default:
		return protocol.Token{}, fmt.Errorf("%w: %s frame while awaiting %s", protocol.ErrUnexpectedToken, fr.Kind, expect)
	}
}

// readFields reads one frame of kind want whose single field value may be
// at most maxValue bytes.
func (f *Framed) readFields(r *stream.Reader, want frame.Kind, maxValue int) ([]tlv.Field, error) {
	limits := frame.Limits{MaxPayloadBytes: uint32(maxValue + tlv.HeaderLen)}
	fr, err := frame.ReadFrame(r, limits)
	if err != nil {
		return nil, err
	}
	if fr.Kind != want {
		return nil, fmt.Errorf("%w: got %s frame, want %s", protocol.ErrProtocolViolation, fr.Kind, want)
	}
	fields, err := tlv.Decode(fr.Payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", protocol.ErrProtocolViolation, err)
	}
	return fields, nil
}
