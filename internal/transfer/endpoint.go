package transfer

import "io"

// Source is the sender's file: a basename, a size and its bytes.
type Source interface {
	io.Reader
	Name() string
	Size() uint64
}

// Sink receives validated uploads. Begin is called only after the filename
// and size passed validation, and before START_TRANSFER is sent.
type Sink interface {
	Begin(name string, size uint64) (Upload, error)
}

// Upload is one in-progress stored artifact. Exactly one of Commit or
// Abort ends it; an aborted upload leaves nothing visible.
type Upload interface {
	io.Writer
	Commit() (storedName string, err error)
	Abort() error
}
