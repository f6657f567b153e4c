package transfer

import "errors"

var (
	ErrNotReady      = errors.New("transfer: peer not ready")
	ErrNotApproved   = errors.New("transfer: transfer not approved")
	ErrRemoteFailure = errors.New("transfer: peer reported failure")
	ErrShortSource   = errors.New("transfer: source ended before declared size")
	ErrPanic         = errors.New("transfer: session panicked")
	ErrNilEndpoint   = errors.New("transfer: nil source or sink")
)
