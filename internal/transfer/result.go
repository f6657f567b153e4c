package transfer

import (
	"time"

	"github.com/google/uuid"
)

type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Result is produced exactly once per session.
type Result struct {
	Outcome    Outcome
	StoredName string // set on success
	Reason     string // set on failure
	Err        error

	Role      Role
	SessionID uuid.UUID
	Remote    string
	Filename  string
	Size      uint64
	Bytes     uint64
	State     State // last non-terminal state reached
	Started   time.Time
	Finished  time.Time
}

func (r Result) Success() bool {
	return r.Outcome == OutcomeSuccess
}

func (r Result) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}
