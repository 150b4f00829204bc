// Package resource implements a budget shared by several value arrays.
//
//   - Memory: a hard cap on the cached bytes of all arrays sharing the
//     controller (non-blocking, fail-fast).
//   - Readers: a cap on concurrent background block reads.
//   - IO: a token bucket throttling background reads, so that warming a cache
//     does not starve foreground lookups.
//
//	rc := resource.NewController(resource.Config{
//	    MemoryLimitBytes:   256 << 20,
//	    MaxReaders:         4,
//	    IOLimitBytesPerSec: 64 << 20,
//	})
//
// All methods are safe for concurrent use and treat a nil *Controller as
// "no limits".
package resource
