// Package fs provides the file abstraction used by index files and file
// block stores, so tests can inject I/O failures.
//
//   - [LocalFS]: production implementation over the os package
//   - [FaultyFS]: wraps another FileSystem and fails reads, writes or syncs
//     of files matching a name pattern
//
// Whole-file replacement goes through FileSystem.WriteFile, which is atomic
// on LocalFS.
//
// Files are addressed by offset only (ReadAt/WriteAt); nothing here keeps a
// seek position.
package fs
