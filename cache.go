package tlfu

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/jamiealquiza/tachymeter"
	"go.uber.org/zap"

	"github.com/cachekit/tlfu/internal/clock"
	"github.com/cachekit/tlfu/internal/deque"
	"github.com/cachekit/tlfu/internal/ringbuf"
	"github.com/cachekit/tlfu/internal/sketch"
	"github.com/cachekit/tlfu/internal/wheel"
)

// Cache is a bounded, concurrent key-value store with W-TinyLFU admission
// and size/TTL/TTI-driven eviction (spec.md §1-§4). Reads and writes on the
// concurrent map proceed without ever blocking on the policy structures
// (the frequency sketch, the three region deques, and the timer wheel);
// those are touched exclusively by the maintenance task, generalizing the
// teacher's bicache.Shard/promoteEvict split into a cache-wide, un-sharded
// policy owner (spec.md §5).
type Cache[K comparable, V any] struct {
	cfg Config[K, V]

	shards *shardMap[K, V]

	// maintenanceMu serializes actual execution of the maintenance body.
	// The scheduler types coalesce redundant *requests* to run, but a
	// caller that finds the write buffer momentarily full runs a pass
	// directly rather than going through the scheduler (see
	// Cache.enqueueWrite) — maintenanceMu is what keeps that path from
	// ever overlapping with a scheduler-driven pass on another goroutine.
	maintenanceMu sync.Mutex

	// The following fields are touched only while maintenanceMu is held.
	sketch    *sketch.Sketch
	window    *deque.List[*entry[K, V]]
	protected *deque.List[*entry[K, V]]
	probation *deque.List[*entry[K, V]]
	wheel     *wheel.Wheel
	lastTick  time.Time

	windowCapacity    int64
	mainCapacity      int64
	protectedCapacity int64

	// windowWeight and protectedWeight track the sum of Config.Weigher over
	// the entries currently in each region, so rebalanceWindow and
	// demoteProtectedOverflow can compare the weighted quantity the ratios
	// actually bound rather than raw entry counts (spec.md §4.5, §8's
	// weighted-admission scenario). Touched only while maintenanceMu is
	// held, same as the region deques they shadow.
	windowWeight    int64
	protectedWeight int64

	jitter atomic.Uint32 // flips the sketch's admission tie-break bit per contest

	readBuf  *ringbuf.Striped[readRecord[K, V]]
	writeBuf chan writeRecord[K, V]

	init *initializer[K, V]

	weightedSize atomic.Int64
	entryCount   atomic.Int64

	hits   atomic.Uint64
	misses atomic.Uint64

	sched   scheduler
	bgSched *backgroundScheduler

	closed atomic.Bool

	tach *tachymeter.Tachymeter

	logger *zap.Logger
	clock  clock.Clock
}

// New constructs a Cache from cfg, applying defaults and validating the
// result before allocating any policy structure, mirroring the teacher's
// bicache.New fail-fast validation (spec.md §6, §7).
func New[K comparable, V any](cfg Config[K, V]) (*Cache[K, V], error) {
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	windowCapacity := int64(float64(cfg.MaxCapacity) * cfg.WindowRatio)
	if windowCapacity < 1 {
		windowCapacity = 1
	}
	mainCapacity := cfg.MaxCapacity - windowCapacity
	if mainCapacity < 1 {
		mainCapacity = 1
	}
	protectedCapacity := int64(float64(mainCapacity) * cfg.ProtectedRatio)

	c := &Cache[K, V]{
		cfg:               cfg,
		shards:            newShardMap[K, V](cfg.ShardCount, cfg.InitialCapacity, cfg.Hasher),
		sketch:            sketch.New(uint64(cfg.MaxCapacity)),
		window:            deque.New[*entry[K, V]](),
		protected:         deque.New[*entry[K, V]](),
		probation:         deque.New[*entry[K, V]](),
		wheel:             wheel.New(cfg.Clock.Now()),
		lastTick:          cfg.Clock.Now(),
		windowCapacity:    windowCapacity,
		mainCapacity:      mainCapacity,
		protectedCapacity: protectedCapacity,
		readBuf:           ringbuf.New[readRecord[K, V]](cfg.ReadBufferStripes, cfg.ReadBufferCapacityPerStripe, cfg.ReadBufferCapacityPerStripe/2),
		writeBuf:          make(chan writeRecord[K, V], cfg.WriteBufferCapacity),
		logger:            cfg.Logger,
		clock:             cfg.Clock,
		tach:              tachymeter.New(&tachymeter.Config{Size: 300}),
	}
	c.init = newInitializer[K, V](cfg.ShardCount)

	if cfg.Background {
		bg := newBackgroundScheduler()
		bg.start(c.runMaintenance)
		c.bgSched = bg
		c.sched = bg
	} else {
		c.sched = &inlineScheduler{}
	}

	return c, nil
}

// Close stops the background maintenance goroutine, if any. It does not
// drain pending buffers; call RunPendingTasks first if that matters.
func (c *Cache[K, V]) Close() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	c.sched.close()
}

// EntryCount returns the number of live entries across all shards.
func (c *Cache[K, V]) EntryCount() int64 {
	return c.entryCount.Load()
}

// WeightedSize returns the sum of Config.Weigher over every live entry.
func (c *Cache[K, V]) WeightedSize() int64 {
	return c.weightedSize.Load()
}

// triggerMaintenance asks the scheduler to run (or coalesce into an
// already-running) maintenance pass.
func (c *Cache[K, V]) triggerMaintenance() {
	c.sched.trigger(c.runMaintenance)
}
