package fs

import (
	"errors"
	"os"
	"strings"
	"sync"
)

// ErrInjected is the default error returned by injected faults.
var ErrInjected = errors.New("injected fault error")

// Fault defines the failure behavior of files whose name matches a rule.
type Fault struct {
	FailAfterBytes int64 // fail writes once this many bytes were written to the file; -1 disables
	FailReads      bool
	FailOnSync     bool
	Err            error
}

// FaultyFS wraps a FileSystem and injects errors into matching files.
type FaultyFS struct {
	FS FileSystem

	mu    sync.Mutex
	rules map[string]Fault
}

// NewFaultyFS creates a FaultyFS over fs (or Default if nil).
func NewFaultyFS(fs FileSystem) *FaultyFS {
	if fs == nil {
		fs = Default
	}
	return &FaultyFS{
		FS:    fs,
		rules: make(map[string]Fault),
	}
}

// AddRule injects fault into every file whose name contains pattern. Files
// that are already open pick up the rule immediately.
func (f *FaultyFS) AddRule(pattern string, fault Fault) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if fault.Err == nil {
		fault.Err = ErrInjected
	}
	f.rules[pattern] = fault
}

// ClearRules removes every rule.
func (f *FaultyFS) ClearRules() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = make(map[string]Fault)
}

func (f *FaultyFS) fault(name string) (Fault, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for pattern, rule := range f.rules {
		if strings.Contains(name, pattern) {
			return rule, true
		}
	}
	return Fault{}, false
}

func (f *FaultyFS) OpenFile(name string, flag int, perm os.FileMode) (File, error) {
	if fault, ok := f.fault(name); ok && fault.FailReads && flag&(os.O_WRONLY|os.O_RDWR) == 0 {
		return nil, fault.Err
	}
	file, err := f.FS.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	return &faultyFile{File: file, fs: f, name: name}, nil
}

func (f *FaultyFS) Remove(name string) error              { return f.FS.Remove(name) }
func (f *FaultyFS) Stat(name string) (os.FileInfo, error) { return f.FS.Stat(name) }
func (f *FaultyFS) MkdirAll(path string, perm os.FileMode) error {
	return f.FS.MkdirAll(path, perm)
}

// WriteFile fails like a write to a matching file would, before anything
// reaches the underlying file system.
func (f *FaultyFS) WriteFile(name string, data []byte) error {
	if fault, ok := f.fault(name); ok {
		if fault.FailAfterBytes >= 0 && int64(len(data)) > fault.FailAfterBytes {
			return fault.Err
		}
		if fault.FailOnSync {
			return fault.Err
		}
	}
	return f.FS.WriteFile(name, data)
}

type faultyFile struct {
	File
	fs   *FaultyFS
	name string

	mu      sync.Mutex
	written int64
}

func (ff *faultyFile) WriteAt(p []byte, off int64) (int, error) {
	if fault, ok := ff.fs.fault(ff.name); ok && fault.FailAfterBytes >= 0 {
		ff.mu.Lock()
		exceeded := ff.written+int64(len(p)) > fault.FailAfterBytes
		ff.mu.Unlock()
		if exceeded {
			return 0, fault.Err
		}
	}
	n, err := ff.File.WriteAt(p, off)
	ff.mu.Lock()
	ff.written += int64(n)
	ff.mu.Unlock()
	return n, err
}

func (ff *faultyFile) ReadAt(p []byte, off int64) (int, error) {
	if fault, ok := ff.fs.fault(ff.name); ok && fault.FailReads {
		return 0, fault.Err
	}
	return ff.File.ReadAt(p, off)
}

func (ff *faultyFile) Sync() error {
	if fault, ok := ff.fs.fault(ff.name); ok && fault.FailOnSync {
		return fault.Err
	}
	return ff.File.Sync()
}
