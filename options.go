package ivarray

import (
	"log/slog"
	"math"

	"github.com/hupe1980/ivarray/blockstore"
	"github.com/hupe1980/ivarray/internal/clock"
	"github.com/hupe1980/ivarray/internal/fs"
	"github.com/hupe1980/ivarray/internal/resource"
)

const (
	// MinCapacity is the smallest capacity of an array, and the granularity
	// capacities are rounded up to.
	MinCapacity = 1024

	// DefaultMaxCacheBytes is the default cache budget.
	DefaultMaxCacheBytes = 64 << 20

	// DefaultMaxKeyID is the default exclusive upper bound for keys.
	DefaultMaxKeyID = 1 << 31

	// MaxCapacity is the largest capacity, the biggest multiple of
	// MinCapacity that fits a uint32. Larger key bounds are lowered to it.
	MaxCapacity = math.MaxUint32 &^ (MinCapacity - 1)

	// DefaultGrowthIncrement is the default minimum capacity growth.
	DefaultGrowthIncrement = 1024

	// DefaultPreloadConcurrency is the default number of parallel reads
	// during preload.
	DefaultPreloadConcurrency = 4
)

// Clock is the time source of the LRU index. Now must never decrease.
type Clock = clock.Clock

// FileSystem abstracts the file operations used for the index file and the
// default block store.
type FileSystem = fs.FileSystem

// ResourceController is a memory and I/O budget that can be shared by
// several arrays.
type ResourceController = resource.Controller

// ResourceConfig configures a ResourceController.
type ResourceConfig = resource.Config

// NewResourceController creates a controller to pass to
// WithResourceController.
func NewResourceController(cfg ResourceConfig) *ResourceController {
	return resource.NewController(cfg)
}

type options struct {
	store              blockstore.Store
	maxCacheBytes      uint64
	isLong             func(int) bool
	maxKeyID           uint32
	growthIncrement    uint32
	clock              clock.Clock
	controller         *resource.Controller
	fsys               fs.FileSystem
	preload            bool
	preloadConcurrency int
	logger             *Logger
	metricsCollector   MetricsCollector
}

// Option configures Build and Open.
type Option func(*options)

func applyOptions(opts []Option) options {
	o := options{
		maxCacheBytes:      DefaultMaxCacheBytes,
		isLong:             blockstore.IsLongValue,
		maxKeyID:           DefaultMaxKeyID,
		growthIncrement:    DefaultGrowthIncrement,
		fsys:               fs.Default,
		preloadConcurrency: DefaultPreloadConcurrency,
	}
	for _, fn := range opts {
		fn(&o)
	}

	if o.clock == nil {
		o.clock = clock.NewLogical()
	}
	if o.isLong == nil {
		o.isLong = blockstore.IsLongValue
	}
	if o.fsys == nil {
		o.fsys = fs.Default
	}
	if o.growthIncrement == 0 {
		o.growthIncrement = DefaultGrowthIncrement
	}
	if o.preloadConcurrency <= 0 {
		o.preloadConcurrency = 1
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	return o
}

// WithBlockStore makes the array persist values in store instead of the
// default file store at <dir>/<name>. Once Build or Open succeeds the array
// owns the store and closes it on Close; when they fail, the caller keeps it.
//
// Example with compressed blocks in S3:
//
//	blobs := s3.NewStore(client, "my-bucket", "kv/")
//	objects, _ := blockstore.NewObjectStore(ctx, blobs, "subject_values")
//	arr, _ := ivarray.Open(dir, "subject",
//	    ivarray.WithBlockStore(blockstore.NewCompressed(objects, blockstore.CompressionZSTD)))
func WithBlockStore(store blockstore.Store) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithMaxCacheBytes sets the cache budget. It is fixed for the lifetime of
// the array.
func WithMaxCacheBytes(n uint64) Option {
	return func(o *options) {
		o.maxCacheBytes = n
	}
}

// WithLongValuePolicy decides which values are long: written straight to
// the block store and never cached. Defaults to blockstore.IsLongValue.
func WithLongValuePolicy(isLong func(n int) bool) Option {
	return func(o *options) {
		o.isLong = isLong
	}
}

// WithMaxKeyID sets the exclusive upper bound for inserted keys. Bounds
// above MaxCapacity are lowered to MaxCapacity.
func WithMaxKeyID(id uint32) Option {
	return func(o *options) {
		o.maxKeyID = min(id, MaxCapacity)
	}
}

// WithGrowthIncrement sets the minimum number of slots added when an insert
// grows the array.
func WithGrowthIncrement(n uint32) Option {
	return func(o *options) {
		o.growthIncrement = n
	}
}

// WithClock sets the time source of the LRU index.
func WithClock(c Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithMonotonicClock stamps cache accesses with wall-clock nanoseconds
// instead of a logical counter.
func WithMonotonicClock() Option {
	return func(o *options) {
		o.clock = clock.NewMonotonic()
	}
}

// WithResourceController shares a memory budget and preload I/O limits with
// other arrays. Admission evicts until the controller grants the bytes.
func WithResourceController(c *ResourceController) Option {
	return func(o *options) {
		o.controller = c
	}
}

// WithFileSystem sets the file system used for the index file and the
// default block store.
func WithFileSystem(fsys FileSystem) Option {
	return func(o *options) {
		o.fsys = fsys
	}
}

// WithPreload makes Open warm the cache with Preload.
func WithPreload() Option {
	return func(o *options) {
		o.preload = true
	}
}

// WithPreloadConcurrency sets the number of block reads preload keeps in
// flight.
func WithPreloadConcurrency(n int) Option {
	return func(o *options) {
		o.preloadConcurrency = n
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := ivarray.NewJSONLogger(slog.LevelInfo)
//	arr, _ := ivarray.Build(dir, "subject", 0, ivarray.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel enables text logging to stderr at the given level.
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &ivarray.BasicMetricsCollector{}
//	arr, _ := ivarray.Open(dir, "subject", ivarray.WithMetricsCollector(metrics))
//	// ... use arr ...
//	stats := metrics.GetStats()
//	fmt.Printf("Searches: %d, hit ratio: %.2f\n", stats.SearchCount, stats.HitRatio())
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}
