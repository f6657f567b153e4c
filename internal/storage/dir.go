package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/danmuck/edgedrop/internal/protocol"
	"github.com/danmuck/edgedrop/internal/transfer"
)

const (
	tempPrefix      = ".upload-"
	publishAttempts = 1000
)

var (
	ErrOutsideRoot   = errors.New("storage: path escapes destination directory")
	ErrNameExhausted = errors.New("storage: no free stored name")
	ErrUploadSize    = errors.New("storage: upload size mismatch")
	ErrUploadClosed  = errors.New("storage: upload already finished")
)

// Dir is a transfer.Sink rooted at one directory. Uploads are written to
// a hidden temp file, synced, then hard-linked under their stored name, so
// an existing artifact is never overwritten and partial data is never
// visible under a stored name.
type Dir struct {
	root  string
	namer TimestampNamer
}

var _ transfer.Sink = (*Dir)(nil)

func NewDir(root string, namer TimestampNamer) (*Dir, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("storage: empty destination directory")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create %s: %w", abs, err)
	}
	return &Dir{root: abs, namer: namer}, nil
}

func (d *Dir) Root() string { return d.root }

func (d *Dir) Begin(name string, size uint64) (transfer.Upload, error) {
	if name == "" || protocol.SanitizeFilename(name) != name {
		return nil, fmt.Errorf("%w: %q", ErrOutsideRoot, name)
	}
	f, err := os.CreateTemp(d.root, tempPrefix+"*")
	if err != nil {
		return nil, err
	}
	return &upload{dir: d, f: f, name: name, size: size}, nil
}

// Path resolves a stored name inside the root.
func (d *Dir) Path(storedName string) (string, error) {
	p := filepath.Join(d.root, storedName)
	if !isWithin(p, d.root) || filepath.Dir(p) != d.root {
		return "", fmt.Errorf("%w: %q", ErrOutsideRoot, storedName)
	}
	return p, nil
}

func (d *Dir) publish(tmp, basename string) (string, error) {
	for _, candidate := range d.namer.Candidates(basename, publishAttempts) {
		target, err := d.Path(candidate)
		if err != nil {
			return "", err
		}
		err = os.Link(tmp, target)
		if err == nil {
			return candidate, nil
		}
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		return "", err
	}
	return "", fmt.Errorf("%w: %s", ErrNameExhausted, basename)
}

type upload struct {
	dir     *Dir
	f       *os.File
	name    string
	size    uint64
	written uint64
	done    bool
}

func (u *upload) Write(p []byte) (int, error) {
	if u.done {
		return 0, ErrUploadClosed
	}
	if u.written+uint64(len(p)) > u.size {
		return 0, fmt.Errorf("%w: %d bytes past declared %d", ErrUploadSize, u.written+uint64(len(p))-u.size, u.size)
	}
	n, err := u.f.Write(p)
	u.written += uint64(n)
	return n, err
}

func (u *upload) Commit() (string, error) {
	if u.done {
		return "", ErrUploadClosed
	}
	u.done = true
	tmp := u.f.Name()
	defer os.Remove(tmp)

	if u.written != u.size {
		_ = u.f.Close()
		return "", fmt.Errorf("%w: wrote %d of %d", ErrUploadSize, u.written, u.size)
	}
	if err := u.f.Sync(); err != nil {
		_ = u.f.Close()
		return "", err
	}
	if err := u.f.Close(); err != nil {
		return "", err
	}
	return u.dir.publish(tmp, u.name)
}

func (u *upload) Abort() error {
	if u.done {
		return nil
	}
	u.done = true
	cerr := u.f.Close()
	rerr := os.Remove(u.f.Name())
	if rerr != nil && !errors.Is(rerr, fs.ErrNotExist) {
		return rerr
	}
	return cerr
}

func isWithin(path string, root string) bool {
	p := filepath.Clean(path)
	r := filepath.Clean(root)
	if p == r {
		return true
	}
	return strings.HasPrefix(p, r+string(os.PathSeparator))
}
