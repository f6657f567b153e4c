package protocol

import (
	"errors"
	"fmt"
)

const (
	MaxFilenameLength = 255
	MaxFileSize       = 10 * 1024 * 1024
	ReadChunk         = 4096

	// MaxSizeField bounds the decimal size field scan.
	MaxSizeField = 32
	// MaxTokenLength bounds any control token, including SUCCESS/ERROR text.
	MaxTokenLength = 512
)

var ErrInvalidLimits = errors.New("protocol: invalid limits")

// Limits constrains field scans, declared sizes and payload read granularity.
type Limits struct {
	MaxFilenameLength int
	MaxFileSize       uint64
	ReadChunk         int
	MaxSizeField      int
	MaxTokenLength    int
}

func DefaultLimits() Limits {
	return Limits{
		MaxFilenameLength: MaxFilenameLength,
		MaxFileSize:       MaxFileSize,
		ReadChunk:         ReadChunk,
		MaxSizeField:      MaxSizeField,
		MaxTokenLength:    MaxTokenLength,
	}
}

// WithDefaults fills zero-valued fields from DefaultLimits.
func (l Limits) WithDefaults() Limits {
	def := DefaultLimits()
	if l.MaxFilenameLength <= 0 {
		l.MaxFilenameLength = def.MaxFilenameLength
	}
	if l.MaxFileSize == 0 {
		l.MaxFileSize = def.MaxFileSize
	}
	if l.ReadChunk <= 0 {
		l.ReadChunk = def.ReadChunk
	}
	if l.MaxSizeField <= 0 {
		l.MaxSizeField = def.MaxSizeField
	}
	if l.MaxTokenLength <= 0 {
		l.MaxTokenLength = def.MaxTokenLength
	}
	return l
}

func (l Limits) Validate() error {
	if l.MaxFilenameLength <= 0 {
		return fmt.Errorf("%w: max filename length must be positive", ErrInvalidLimits)
	}
	if l.MaxFileSize == 0 {
		return fmt.Errorf("%w: max file size must be positive", ErrInvalidLimits)
	}
	if l.ReadChunk <= 0 {
		return fmt.Errorf("%w: read chunk must be positive", ErrInvalidLimits)
	}
	if l.MaxSizeField <= 0 {
		return fmt.Errorf("%w: max size field must be positive", ErrInvalidLimits)
	}
	if l.MaxTokenLength < len(TokenStartTransfer) {
		return fmt.Errorf("%w: max token length too small", ErrInvalidLimits)
	}
	return nil
}
