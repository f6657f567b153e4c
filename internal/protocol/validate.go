package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// TransferRequest is the sender's declared filename and payload size.
type TransferRequest struct {
	Filename string
	Size     uint64
}

// Validate checks the request against limits and returns it with the filename
// reduced to its basename.
func (r TransferRequest) Validate(limits Limits) (TransferRequest, error) {
	name, err := ValidateFilename(r.Filename, limits)
	if err != nil {
		return TransferRequest{}, err
	}
	if err := ValidateSize(r.Size, limits); err != nil {
		return TransferRequest{}, err
	}
	return TransferRequest{Filename: name, Size: r.Size}, nil
}

// SanitizeFilename reduces raw to its final path element. Both '/' and '\'
// count as separators regardless of host OS. Returns "" when nothing usable
// remains ("", ".", "..", trailing separator).
func SanitizeFilename(raw string) string {
	name := strings.ReplaceAll(raw, `\`, "/")
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	switch name {
	case "", ".", "..":
		return ""
	}
	return name
}

// ValidateFilename sanitizes raw and enforces non-empty, bounded, NUL-free UTF-8.
func ValidateFilename(raw string, limits Limits) (string, error) {
	limits = limits.WithDefaults()
	if raw == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidFilename)
	}
	if len(raw) > limits.MaxFilenameLength {
		return "", fmt.Errorf("%w: length %d exceeds %d", ErrInvalidFilename, len(raw), limits.MaxFilenameLength)
	}
	if !utf8.ValidString(raw) {
		return "", fmt.Errorf("%w: not utf-8", ErrInvalidFilename)
	}
	if strings.IndexByte(raw, 0) >= 0 {
		return "", fmt.Errorf("%w: contains NUL", ErrInvalidFilename)
	}
	name := SanitizeFilename(raw)
	if name == "" {
		return "", fmt.Errorf("%w: no basename in %q", ErrInvalidFilename, raw)
	}
	return name, nil
}

// ParseSize decodes an unsigned base-10 size field. Only ASCII digits are
// accepted: no sign, whitespace, grouping or embedded markers.
func ParseSize(field []byte) (uint64, error) {
	if len(field) == 0 {
		return 0, fmt.Errorf("%w: empty", ErrInvalidSize)
	}
	for _, c := range field {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("%w: non-digit in %q", ErrInvalidSize, field)
		}
	}
	size, err := strconv.ParseUint(string(field), 10, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return 0, fmt.Errorf("%w: %s", ErrSizeLimitExceeded, field)
		}
		return 0, fmt.Errorf("%w: %v", ErrInvalidSize, err)
	}
	return size, nil
}

// FormatSize is the inverse of ParseSize.
func FormatSize(size uint64) []byte {
	return strconv.AppendUint(nil, size, 10)
}

// ValidateSize enforces 0 < size <= limits.MaxFileSize.
func ValidateSize(size uint64, limits Limits) error {
	limits = limits.WithDefaults()
	if size == 0 || size > limits.MaxFileSize {
		return fmt.Errorf("%w: %d not in (0, %d]", ErrSizeLimitExceeded, size, limits.MaxFileSize)
	}
	return nil
}
