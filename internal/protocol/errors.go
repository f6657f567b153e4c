package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrProtocolViolation  = errors.New("protocol: violation")
	ErrSizeLimitExceeded  = errors.New("protocol: declared size out of bounds")
	ErrConnectionClosed   = errors.New("protocol: connection closed prematurely")
	ErrPersistenceFailure = errors.New("protocol: persistence failure")
)

var (
	ErrInvalidFilename = fmt.Errorf("%w: invalid filename", ErrProtocolViolation)
	ErrInvalidSize     = fmt.Errorf("%w: invalid size field", ErrProtocolViolation)
	ErrUnexpectedToken = fmt.Errorf("%w: unexpected control token", ErrProtocolViolation)
	ErrTokenTooLarge   = fmt.Errorf("%w: control token too large", ErrProtocolViolation)
)
