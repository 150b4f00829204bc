package resource

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrMemoryLimitExceeded is returned when a reservation would exceed the
// shared memory budget.
var ErrMemoryLimitExceeded = errors.New("memory limit exceeded")

// Config holds the shared limits.
type Config struct {
	// MemoryLimitBytes caps the cached bytes of every array sharing the
	// controller. 0 means tracking only.
	MemoryLimitBytes int64

	// MaxReaders caps concurrent background block reads (preload).
	// Defaults to 1.
	MaxReaders int64

	// IOLimitBytesPerSec throttles background reads. 0 means unlimited.
	IOLimitBytesPerSec int64
}

// Controller is a budget shared by several value arrays.
type Controller struct {
	cfg Config

	memSem  *semaphore.Weighted // nil if unlimited
	memUsed atomic.Int64

	readSem *semaphore.Weighted

	ioLimiter *rate.Limiter
}

// NewController creates a new controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxReaders <= 0 {
		cfg.MaxReaders = 1
	}

	c := &Controller{
		cfg:     cfg,
		readSem: semaphore.NewWeighted(cfg.MaxReaders),
	}

	if cfg.MemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}

	if cfg.IOLimitBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}

	return c
}

// TryAcquireMemory reserves bytes without blocking. It reports false when the
// budget is exhausted.
func (c *Controller) TryAcquireMemory(bytes int64) bool {
	if c == nil || bytes <= 0 {
		return true
	}
	if c.memSem != nil && !c.memSem.TryAcquire(bytes) {
		return false
	}
	c.memUsed.Add(bytes)
	return true
}

// AcquireMemory is TryAcquireMemory returning ErrMemoryLimitExceeded on
// failure.
func (c *Controller) AcquireMemory(bytes int64) error {
	if !c.TryAcquireMemory(bytes) {
		return ErrMemoryLimitExceeded
	}
	return nil
}

// ReleaseMemory returns a reservation.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}
	if c.memSem != nil {
		c.memSem.Release(bytes)
	}
	c.memUsed.Add(-bytes)
}

// MemoryUsage returns the reserved bytes.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// MemoryLimit returns the budget in bytes (0 if unlimited).
func (c *Controller) MemoryLimit() int64 {
	if c == nil {
		return 0
	}
	return c.cfg.MemoryLimitBytes
}

// AcquireReader blocks until a background read slot is free.
func (c *Controller) AcquireReader(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.readSem.Acquire(ctx, 1)
}

// TryAcquireReader reserves a background read slot without blocking.
func (c *Controller) TryAcquireReader() bool {
	if c == nil {
		return true
	}
	return c.readSem.TryAcquire(1)
}

// ReleaseReader returns a background read slot.
func (c *Controller) ReleaseReader() {
	if c == nil {
		return
	}
	c.readSem.Release(1)
}

// AcquireIO waits until the limiter admits bytes. Requests larger than the
// limiter's burst are admitted in burst-sized steps.
func (c *Controller) AcquireIO(ctx context.Context, bytes int) error {
	if c == nil || c.ioLimiter == nil || bytes <= 0 {
		return nil
	}
	burst := c.ioLimiter.Burst()
	for bytes > 0 {
		n := min(bytes, burst)
		if err := c.ioLimiter.WaitN(ctx, n); err != nil {
			return err
		}
		bytes -= n
	}
	return nil
}
