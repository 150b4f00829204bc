package fs

import (
	"bytes"
	"io"
	"os"

	"github.com/natefinch/atomic"
)

// File is an open file addressed by offset.
type File interface {
	io.ReaderAt
	io.WriterAt
	io.Closer
	Sync() error
	Stat() (os.FileInfo, error)
	Truncate(size int64) error
}

// FileSystem abstracts the file operations used by the index file and the
// file block store.
type FileSystem interface {
	OpenFile(name string, flag int, perm os.FileMode) (File, error)
	Remove(name string) error
	Stat(name string) (os.FileInfo, error)
	MkdirAll(path string, perm os.FileMode) error
	// WriteFile replaces name with data atomically: readers see either the
	// old or the new content.
	WriteFile(name string, data []byte) error
}

// LocalFS implements FileSystem using the local os package.
type LocalFS struct{}

func (LocalFS) OpenFile(name string, flag int, perm os.FileMode) (File, error) {
	return os.OpenFile(name, flag, perm) //nolint:gosec // G304: caller-controlled path
}

func (LocalFS) Remove(name string) error              { return os.Remove(name) }
func (LocalFS) Stat(name string) (os.FileInfo, error) { return os.Stat(name) }
func (LocalFS) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

func (LocalFS) WriteFile(name string, data []byte) error {
	return atomic.WriteFile(name, bytes.NewReader(data))
}

// Default is the default local file system.
var Default FileSystem = LocalFS{}
