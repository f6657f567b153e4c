// Package tlv encodes the typed fields carried inside filename and size frames.
package tlv

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// HeaderLen is id(2) + type(1) + length(4).
const HeaderLen = 7

var (
	ErrShortFieldHeader = errors.New("tlv: short field header")
	ErrShortFieldValue  = errors.New("tlv: short field value")
	ErrMissingField     = errors.New("tlv: missing field")
	ErrDuplicateField   = errors.New("tlv: duplicate field")
	ErrTypeMismatch     = errors.New("tlv: type mismatch")
	ErrValueWidth       = errors.New("tlv: invalid value width")
)

// Value types understood by the transfer codec. Unknown types decode as opaque bytes.
const (
	TypeU64    uint8 = 4
	TypeString uint8 = 6
	TypeBytes  uint8 = 7
)

type Field struct {
	ID    uint16
	Type  uint8
	Value []byte
}

func String(id uint16, v string) Field {
	return Field{ID: id, Type: TypeString, Value: []byte(v)}
}

func U64(id uint16, v uint64) Field {
	return Field{ID: id, Type: TypeU64, Value: binary.BigEndian.AppendUint64(nil, v)}
}

// Append writes f to dst and returns the extended slice.
func Append(dst []byte, f Field) []byte {
	dst = binary.BigEndian.AppendUint16(dst, f.ID)
	dst = append(dst, f.Type)
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(f.Value)))
	return append(dst, f.Value...)
}

func Encode(fields ...Field) []byte {
	size := 0
	for _, f := range fields {
		size += HeaderLen + len(f.Value)
	}
	out := make([]byte, 0, size)
	for _, f := range fields {
		out = Append(out, f)
	}
	return out
}

// Decode parses payload into fields in wire order. A repeated id is rejected so a
// peer cannot smuggle a second filename or size past the first.
func Decode(payload []byte) ([]Field, error) {
	var fields []Field
	seen := make(map[uint16]struct{})
	for rest := payload; len(rest) > 0; {
		if len(rest) < HeaderLen {
			return nil, ErrShortFieldHeader
		}
		id := binary.BigEndian.Uint16(rest[0:2])
		typ := rest[2]
		n := binary.BigEndian.Uint32(rest[3:7])
		rest = rest[HeaderLen:]
		if uint64(len(rest)) < uint64(n) {
			return nil, fmt.Errorf("%w: id=%d want=%d have=%d", ErrShortFieldValue, id, n, len(rest))
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: id=%d", ErrDuplicateField, id)
		}
		seen[id] = struct{}{}
		val := make([]byte, n)
		copy(val, rest[:n])
		rest = rest[n:]
		fields = append(fields, Field{ID: id, Type: typ, Value: val})
	}
	return fields, nil
}

func lookup(fields []Field, id uint16, typ uint8) (Field, error) {
	for _, f := range fields {
		if f.ID != id {
			continue
		}
		if f.Type != typ {
			return Field{}, fmt.Errorf("%w: id=%d got=%d want=%d", ErrTypeMismatch, id, f.Type, typ)
		}
		return f, nil
	}
	return Field{}, fmt.Errorf("%w: id=%d", ErrMissingField, id)
}

func StringField(fields []Field, id uint16) (string, error) {
	f, err := lookup(fields, id, TypeString)
	if err != nil {
		return "", err
	}
	return string(f.Value), nil
}

func U64Field(fields []Field, id uint16) (uint64, error) {
	f, err := lookup(fields, id, TypeU64)
	if err != nil {
		return 0, err
	}
	if len(f.Value) != 8 {
		return 0, fmt.Errorf("%w: id=%d len=%d", ErrValueWidth, id, len(f.Value))
	}
	return binary.BigEndian.Uint64(f.Value), nil
}
