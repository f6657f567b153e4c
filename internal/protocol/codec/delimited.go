package codec

import (
	"fmt"
	"io"

	"github.com/danmuck/edgedrop/internal/protocol"
	"github.com/danmuck/edgedrop/internal/protocol/stream"
)

var (
	filenameMarker = []byte(protocol.FilenameMarker)
	sizeMarker     = []byte(protocol.SizeMarker)
)

// Delimited speaks the marker-terminated wire format.
// A filename containing ":FILENAME_END:" is split at the marker by the peer.
type Delimited struct {
	limits protocol.Limits
}

func NewDelimited(limits protocol.Limits) *Delimited {
	return &Delimited{limits: limits.WithDefaults()}
}

func (d *Delimited) Name() string { return NameDelimited }

func (d *Delimited) WriteFilename(w io.Writer, name string) error {
	buf := make([]byte, 0, len(name)+len(filenameMarker))
	buf = append(buf, name...)
	buf = append(buf, filenameMarker...)
	_, err := w.Write(buf)
	return err
}

func (d *Delimited) ReadFilename(r *stream.Reader) (string, error) {
	raw, err := r.ReadUntil(filenameMarker, d.limits.MaxFilenameLength)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func (d *Delimited) WriteSize(w io.Writer, size uint64) error {
	buf := protocol.FormatSize(size)
	buf = append(buf, sizeMarker...)
	_, err := w.Write(buf)
	return err
}

func (d *Delimited) ReadSize(r *stream.Reader) (uint64, error) {
	raw, err := r.ReadUntil(sizeMarker, d.limits.MaxSizeField)
	if err != nil {
		return 0, err
	}
	return protocol.ParseSize(raw)
}

func (d *Delimited) WriteToken(w io.Writer, tok protocol.Token) error {
	b := tok.Bytes()
	if len(b) > d.limits.MaxTokenLength {
		return fmt.Errorf("%w: %d bytes", protocol.ErrTokenTooLarge, len(b))
	}
	_, err := w.Write(b)
	return err
}

// ReadToken matches fixed tokens byte by byte so no following field bytes
// are consumed. On divergence, or when a result token is expected, the
// remainder up to peer close is read and parsed as one token.
func (d *Delimited) ReadToken(r *stream.Reader, expect protocol.TokenKind) (protocol.Token, error) {
	if expect.IsResult() {
		return d.readToClose(r, nil)
	}
	if expect != protocol.KindReady && expect != protocol.KindStart {
		return protocol.Token{}, fmt.Errorf("codec: cannot expect token kind %s", expect)
	}
	literal := protocol.Token{Kind: expect}.String()
	acc := make([]byte, 0, len(literal))
	for len(acc) < len(literal) {
		c, err := r.ReadByte()
		if err != nil {
			return protocol.Token{}, fmt.Errorf("%w: awaiting %s after %q: %v", protocol.ErrConnectionClosed, literal, acc, err)
		}
		acc = append(acc, c)
		if c != literal[len(acc)-1] {
			return d.readToClose(r, acc)
		}
	}
	return protocol.Token{Kind: expect}, nil
}

func (d *Delimited) readToClose(r *stream.Reader, prefix []byte) (protocol.Token, error) {
	rest, err := r.ReadRest(d.limits.MaxTokenLength - len(prefix))
	if err != nil {
		return protocol.Token{}, err
	}
	data := append(prefix, rest...)
	if len(data) == 0 {
		return protocol.Token{}, fmt.Errorf("%w: no token before close", protocol.ErrConnectionClosed)
	}
	return protocol.ParseToken(data)
}
