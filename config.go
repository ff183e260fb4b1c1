package tlfu

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cachekit/tlfu/internal/clock"
)

// EvictionListener is notified once per removal, synchronously, in the
// maintenance task's goroutine (spec.md §4.7 step 5, §6). It must not block
// for long — the maintenance cycle cannot proceed to expiration/capacity
// enforcement for other entries until it returns.
type EvictionListener[K comparable, V any] func(key K, value V, cause Cause)

// Config mirrors the teacher's flat bicache.Config — a plain struct with
// documented zero-value defaults, not a functional-options builder (the
// builder-style outer facade is explicitly out of this engine's scope).
type Config[K comparable, V any] struct {
	// MaxCapacity caps the cache's weighted size. Required; zero is
	// rejected with CapacityZeroError.
	MaxCapacity int64

	// InitialCapacity hints the per-shard map's initial bucket count.
	InitialCapacity int

	// TimeToLive, if non-zero, sets each entry's write-time deadline to
	// the insertion or update time plus this duration.
	TimeToLive time.Duration

	// TimeToIdle, if non-zero, sets each entry's idle deadline to the
	// last access time plus this duration, refreshed on every read.
	TimeToIdle time.Duration

	// Weigher computes a positive per-entry weight. Defaults to a
	// constant weight of 1 for every entry.
	Weigher func(K, V) uint32

	// EvictionListener, if set, is called once per removal.
	EvictionListener EvictionListener[K, V]

	// InvalidatorEnabled turns on InvalidateEntriesIf; it is a no-op
	// returning an error when left false, since the lazy predicate scan
	// is not free and most callers don't need it.
	InvalidatorEnabled bool

	// ShardCount is the number of concurrent-map shards, rounded up to a
	// power of two. Defaults to 16.
	ShardCount int

	// WindowRatio is the admission window's share of MaxCapacity. Defaults
	// to 0.01, the value spec.md §4.5 names.
	WindowRatio float64

	// ProtectedRatio is the protected region's share of the *main* (non
	// window) capacity. Defaults to 0.8, the value spec.md §4.5 names.
	ProtectedRatio float64

	// Hasher computes a 64-bit hash of a key for shard routing and for the
	// frequency sketch. Defaults to formatting the key with fmt.Sprintf
	// and hashing that with the teacher's FNV-1a — callers on a hot path
	// with a cheaply hashable key type should supply a typed Hasher
	// instead.
	Hasher func(K) uint64

	// Logger receives maintenance diagnostics. Defaults to a no-op
	// logger.
	Logger *zap.Logger

	// Clock is the monotonic time source deadline math is computed
	// against. Defaults to the real wall clock; tests inject a mock.
	Clock clock.Clock

	// Background, if true, runs the maintenance task on a dedicated
	// goroutine woken by buffer-threshold triggers, rather than inline on
	// the calling party that crossed a threshold.
	Background bool

	// ReadBufferStripes is the number of Read Buffer stripes. Defaults to
	// ShardCount.
	ReadBufferStripes int

	// ReadBufferCapacityPerStripe bounds how many read traces a stripe
	// holds before new ones are dropped. Defaults to 128.
	ReadBufferCapacityPerStripe int

	// WriteBufferCapacity bounds the write-buffer channel. Defaults to
	// 1024.
	WriteBufferCapacity int
}

func (c *Config[K, V]) setDefaults() {
	if c.Weigher == nil {
		c.Weigher = func(K, V) uint32 { return 1 }
	}
	if c.ShardCount <= 0 {
		c.ShardCount = 16
	}
	if c.WindowRatio <= 0 {
		c.WindowRatio = 0.01
	}
	if c.ProtectedRatio <= 0 {
		c.ProtectedRatio = 0.8
	}
	if c.Hasher == nil {
		c.Hasher = defaultHasher[K]
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.Clock == nil {
		c.Clock = clock.Real{}
	}
	if c.ReadBufferStripes <= 0 {
		c.ReadBufferStripes = c.ShardCount
	}
	if c.ReadBufferCapacityPerStripe <= 0 {
		c.ReadBufferCapacityPerStripe = 128
	}
	if c.WriteBufferCapacity <= 0 {
		c.WriteBufferCapacity = 1024
	}
}

func (c *Config[K, V]) validate() error {
	if c.MaxCapacity == 0 {
		return CapacityZeroError{}
	}
	if c.MaxCapacity < 0 {
		return &InvalidConfigError{Reason: "max capacity must be positive"}
	}
	if c.TimeToIdle > 0 && c.TimeToLive > 0 && c.TimeToIdle > c.TimeToLive {
		return &InvalidConfigError{Reason: "time-to-idle must not exceed time-to-live"}
	}
	return nil
}

func defaultHasher[K comparable](key K) uint64 {
	return fnvHash64a(fmt.Sprintf("%v", key))
}
