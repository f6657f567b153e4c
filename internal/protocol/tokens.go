package protocol

import (
	"fmt"
	"strings"
)

// Wire literals.
const (
	TokenReady         = "READY"
	TokenStartTransfer = "START_TRANSFER"
	SuccessPrefix      = "SUCCESS:"
	ErrorPrefix        = "ERROR:"

	FilenameMarker = ":FILENAME_END:"
	SizeMarker     = ":SIZE_END:"
)

// Canonical ERROR token messages and failure reasons.
const (
	MsgInvalidFilename = "Invalid filename format"
	MsgInvalidSize     = "Invalid file size"
	MsgSaveFailed      = "file save failed"
	MsgIncomplete      = "incomplete file transfer"
	MsgNotReady        = "server not ready"
	MsgNotApproved     = "transfer not approved"
	MsgConnectionLost  = "connection lost"
)

var canonicalMessages = map[string]bool{
	MsgInvalidFilename: true,
	MsgInvalidSize:     true,
	MsgSaveFailed:      true,
	MsgIncomplete:      true,
	MsgNotReady:        true,
	MsgNotApproved:     true,
	MsgConnectionLost:  true,
}

// ReasonLabel maps a failure reason onto a bounded set of values. Reasons
// quoting peer text keep only a canonical message, or become "peer: other".
func ReasonLabel(reason string) string {
	switch {
	case reason == "" || canonicalMessages[reason]:
		return reason
	case strings.HasPrefix(reason, ErrorPrefix):
		msg := strings.TrimSpace(strings.TrimPrefix(reason, ErrorPrefix))
		if canonicalMessages[msg] {
			return "peer: " + msg
		}
		return "peer: other"
	default:
		return "other"
	}
}

// TokenKind identifies one control token.
type TokenKind uint8

const (
	KindUnknown TokenKind = iota
	KindReady
	KindStart
	KindSuccess
	KindError
)

func (k TokenKind) String() string {
	switch k {
	case KindReady:
		return "ready"
	case KindStart:
		return "start"
	case KindSuccess:
		return "success"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// IsResult reports whether the kind terminates a session.
func (k TokenKind) IsResult() bool {
	return k == KindSuccess || k == KindError
}

// Token is one decoded control token. Text holds the stored name for
// KindSuccess and the message for KindError.
type Token struct {
	Kind TokenKind
	Text string
}

func Ready() Token                    { return Token{Kind: KindReady} }
func Start() Token                    { return Token{Kind: KindStart} }
func Success(storedName string) Token { return Token{Kind: KindSuccess, Text: storedName} }
func Failure(message string) Token    { return Token{Kind: KindError, Text: message} }

// Bytes encodes the token's wire text.
func (t Token) Bytes() []byte {
	return []byte(t.String())
}

func (t Token) String() string {
	switch t.Kind {
	case KindReady:
		return TokenReady
	case KindStart:
		return TokenStartTransfer
	case KindSuccess:
		return SuccessPrefix + t.Text
	case KindError:
		return ErrorPrefix + " " + t.Text
	default:
		return t.Text
	}
}

// ParseToken decodes one complete control token. Unrecognized text is
// returned as a KindUnknown token together with ErrUnexpectedToken.
func ParseToken(b []byte) (Token, error) {
	s := string(b)
	switch {
	case s == TokenReady:
		return Ready(), nil
	case s == TokenStartTransfer:
		return Start(), nil
	case strings.HasPrefix(s, SuccessPrefix):
		name := strings.TrimPrefix(s, SuccessPrefix)
		if name == "" {
			return Token{Kind: KindUnknown, Text: s}, fmt.Errorf("%w: empty stored name", ErrUnexpectedToken)
		}
		return Success(name), nil
	case strings.HasPrefix(s, ErrorPrefix):
		return Failure(strings.TrimPrefix(strings.TrimPrefix(s, ErrorPrefix), " ")), nil
	default:
		return Token{Kind: KindUnknown, Text: s}, fmt.Errorf("%w: %q", ErrUnexpectedToken, truncate(s, 64))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
