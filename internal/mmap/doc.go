// Package mmap maps files read-only into memory.
//
// The local blob store reads block blobs through it, so a block read is a
// copy out of the page cache rather than a read syscall per call.
//
//	m, err := mmap.Open(path)
//	if err != nil { ... }
//	defer m.Close()
//	data := m.Bytes()
//
// Unix uses mmap(2) via golang.org/x/sys/unix; Windows uses
// CreateFileMapping/MapViewOfFile via golang.org/x/sys/windows.
package mmap
