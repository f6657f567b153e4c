package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/danmuck/edgedrop/internal/transfer"
)

// FileSource is a transfer.Source backed by a regular file. The size is
// taken once at open time.
type FileSource struct {
	f    *os.File
	name string
	size uint64
}

var _ transfer.Source = (*FileSource)(nil)

func OpenFile(path string) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if !info.Mode().IsRegular() {
		_ = f.Close()
		return nil, fmt.Errorf("storage: %s is not a regular file", path)
	}
	return &FileSource{f: f, name: filepath.Base(path), size: uint64(info.Size())}, nil
}

func (s *FileSource) Read(p []byte) (int, error) { return s.f.Read(p) }
func (s *FileSource) Name() string               { return s.name }
func (s *FileSource) Size() uint64               { return s.size }
func (s *FileSource) Close() error               { return s.f.Close() }
