package mmap

import (
	"errors"
	"io"
	"os"
)

// File is a read-only memory-mapped file.
type File struct {
	data []byte
	f    *os.File
}

// Open maps the file at path into memory as read-only. Empty files are not
// mapped; they read as EOF.
func Open(path string) (*File, error) {
	f, err := os.Open(path) //nolint:gosec // G304: caller-controlled path
	if err != nil {
		return nil, err
	}

	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	size := fi.Size()
	if size == 0 {
		return &File{f: f}, nil
	}
	if size < 0 || int64(int(size)) != size {
		_ = f.Close()
		return nil, errors.New("mmap: file size out of range")
	}

	data, err := mmap(f, int(size))
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	return &File{data: data, f: f}, nil
}

// Bytes returns the mapped contents. The slice is invalid after Close.
func (m *File) Bytes() []byte { return m.data }

// Size returns the mapped length.
func (m *File) Size() int { return len(m.data) }

// ReadAt implements io.ReaderAt.
func (m *File) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Close unmaps the memory and closes the underlying file. It is safe to call
// more than once.
func (m *File) Close() error {
	if m == nil {
		return nil
	}
	var err error
	if m.data != nil {
		err = munmap(m.data)
		m.data = nil
	}
	if m.f != nil {
		if closeErr := m.f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		m.f = nil
	}
	return err
}
