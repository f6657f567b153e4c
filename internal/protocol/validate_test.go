package protocol

import (
	"errors"
	"strings"
	"testing"

	"github.com/danmuck/edgedrop/internal/testutil/testlog"
)

func TestSanitizeFilenameStripsDirectories(t *testing.T) {
	testlog.Start(t)
	cases := map[string]string{
		"report.txt":               "report.txt",
		"../../etc/passwd":         "passwd",
		`..\..\windows\system.ini`: "system.ini",
		"/abs/path/data.bin":       "data.bin",
		`C:\Users\me\notes.md`:     "notes.md",
		"mixed/dir\\name.txt":      "name.txt",
		"..":                       "",
		"dir/":                     "",
		"./.":                      "",
		"with space and:colon.txt": "with space and:colon.txt",
	}
	for in, want := range cases {
		if got := SanitizeFilename(in); got != want {
			t.Fatalf("SanitizeFilename(%q) got=%q want=%q", in, got, want)
		}
	}
}

func TestValidateFilenameBounds(t *testing.T) {
	testlog.Start(t)
	limits := DefaultLimits()

	if _, err := ValidateFilename("", limits); !errors.Is(err, ErrInvalidFilename) {
		t.Fatalf("expected ErrInvalidFilename for empty name, got %v", err)
	}
	if _, err := ValidateFilename(strings.Repeat("a", MaxFilenameLength+1), limits); !errors.Is(err, ErrInvalidFilename) {
		t.Fatalf("expected ErrInvalidFilename for long name, got %v", err)
	}
	if _, err := ValidateFilename("a\x00b", limits); !errors.Is(err, ErrProtocolViolation) {
		t.Fatalf("expected ErrProtocolViolation for NUL, got %v", err)
	}
	if _, err := ValidateFilename("../", limits); !errors.Is(err, ErrInvalidFilename) {
		t.Fatalf("expected ErrInvalidFilename for traversal-only name, got %v", err)
	}

	name, err := ValidateFilename(strings.Repeat("a", MaxFilenameLength), limits)
	if err != nil {
		t.Fatalf("max length name rejected: %v", err)
	}
	if len(name) != MaxFilenameLength {
		t.Fatalf("unexpected name length: %d", len(name))
	}
}

func TestParseSizeStrictDecimal(t *testing.T) {
	testlog.Start(t)
	good := map[string]uint64{
		"1":        1,
		"13":       13,
		"0":        0,
		"10485760": MaxFileSize,
		"0007":     7,
	}
	for in, want := range good {
		got, err := ParseSize([]byte(in))
		if err != nil || got != want {
			t.Fatalf("ParseSize(%q) got=%d err=%v want=%d", in, got, err, want)
		}
	}

	bad := []string{"", "+5", "-1", " 5", "5 ", "   ", "1,024", "1_024", "0x10", "5:SIZE_END:5", "1e3"}
	for _, in := range bad {
		if _, err := ParseSize([]byte(in)); !errors.Is(err, ErrProtocolViolation) {
			t.Fatalf("ParseSize(%q) expected ErrProtocolViolation, got %v", in, err)
		}
	}

	if _, err := ParseSize([]byte("99999999999999999999999")); !errors.Is(err, ErrSizeLimitExceeded) {
		t.Fatalf("expected ErrSizeLimitExceeded on overflow, got %v", err)
	}
}

func TestFormatSizeRoundTrip(t *testing.T) {
	testlog.Start(t)
	for _, size := range []uint64{1, 13, 4096, MaxFileSize, 1<<64 - 1} {
		got, err := ParseSize(FormatSize(size))
		if err != nil || got != size {
			t.Fatalf("round trip %d got=%d err=%v", size, got, err)
		}
	}
}

func TestValidateSizeBounds(t *testing.T) {
	testlog.Start(t)
	limits := DefaultLimits()
	for _, size := range []uint64{0, MaxFileSize + 1, 11000000} {
		if err := ValidateSize(size, limits); !errors.Is(err, ErrSizeLimitExceeded) {
			t.Fatalf("size %d expected ErrSizeLimitExceeded, got %v", size, err)
		}
	}
	for _, size := range []uint64{1, 13, MaxFileSize} {
		if err := ValidateSize(size, limits); err != nil {
			t.Fatalf("size %d rejected: %v", size, err)
		}
	}
}

func TestTransferRequestValidateReturnsBasename(t *testing.T) {
	testlog.Start(t)
	req, err := TransferRequest{Filename: "../../etc/passwd", Size: 4}.Validate(DefaultLimits())
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if req.Filename != "passwd" || req.Size != 4 {
		t.Fatalf("unexpected request: %+v", req)
	}
}

func TestLimitsWithDefaultsAndValidate(t *testing.T) {
	testlog.Start(t)
	l := Limits{MaxFileSize: 64}.WithDefaults()
	if l.MaxFileSize != 64 || l.ReadChunk != ReadChunk || l.MaxFilenameLength != MaxFilenameLength {
		t.Fatalf("unexpected limits: %+v", l)
	}
	if err := l.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := (Limits{}).Validate(); !errors.Is(err, ErrInvalidLimits) {
		t.Fatalf("expected ErrInvalidLimits, got %v", err)
	}
}
