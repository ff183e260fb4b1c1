package tlfu

import (
	"time"

	"go.uber.org/zap"

	"github.com/cachekit/tlfu/internal/wheel"
)

// runMaintenance is the cache's single non-reentrant maintenance task
// (spec.md §4.7, §5). Exactly one invocation runs at a time per cache —
// maintenanceMu guarantees that — so everything it touches below (the
// sketch, the three region deques, the timer wheel) needs no lock. It
// drains both buffers, advances the timer wheel, runs the TinyLFU
// admission contest, and enforces the weighted-size bound, timing the
// whole pass with the teacher's own tachymeter.
func (c *Cache[K, V]) runMaintenance() {
	c.maintenanceMu.Lock()
	defer c.maintenanceMu.Unlock()

	start := time.Now()
	defer func() { c.tach.AddTime(time.Since(start)) }()

	c.drainWriteBuffer()
	c.drainReadBuffer()
	expired := c.processExpirations()

	sizeEvicted := 0
	for _, e := range c.rebalanceWindow() {
		c.finalizeRemoval(e, CauseSize)
		sizeEvicted++
	}
	for _, e := range c.enforceCapacity(c.weightedSize.Load(), c.cfg.MaxCapacity) {
		c.finalizeRemoval(e, CauseSize)
		sizeEvicted++
	}

	if ce := c.logger.Check(zap.DebugLevel, "maintenance cycle"); ce != nil {
		ce.Write(
			zap.Duration("took", time.Since(start)),
			zap.Int("expired", expired),
			zap.Int("sizeEvicted", sizeEvicted),
			zap.Int64("entryCount", c.entryCount.Load()),
			zap.Int64("weightedSize", c.weightedSize.Load()),
		)
	}
}

// drainWriteBuffer applies every pending structural change in FIFO order.
// The concurrent map itself was already updated synchronously by the
// caller (Insert/Invalidate); this only updates the policy structures and
// fires the eviction listener for whatever the write displaced.
func (c *Cache[K, V]) drainWriteBuffer() {
	for {
		select {
		case rec := <-c.writeBuf:
			c.applyWrite(rec)
		default:
			return
		}
	}
}

func (c *Cache[K, V]) applyWrite(rec writeRecord[K, V]) {
	switch rec.op {
	case writeUpsert:
		if rec.replaced != nil {
			c.retireEntry(rec.replaced)
			c.weightedSize.Add(int64(rec.entry.weight) - int64(rec.replaced.weight))
			c.invokeListener(rec.replaced.key, rec.replaced.value, CauseReplaced)
		} else {
			c.entryCount.Add(1)
			c.weightedSize.Add(int64(rec.entry.weight))
		}
		c.admit(rec.entry)
		c.scheduleDeadline(rec.entry)

	case writeRemove:
		c.retireEntry(rec.entry)
		c.entryCount.Add(-1)
		c.weightedSize.Add(-int64(rec.entry.weight))
		c.invokeListener(rec.entry.key, rec.entry.value, rec.cause)
	}
}

// retireEntry detaches e from its region list and cancels its wheel timer
// without touching the shard map or the weighted-size/entry-count counters
// — callers that already know those bookkeeping steps are needed do them
// separately, since the reason an entry is retired (replaced, expired,
// evicted, explicitly removed) determines which of those steps apply.
func (c *Cache[K, V]) retireEntry(e *entry[K, V]) {
	c.removeFromRegion(e)
	if e.timer != nil {
		c.wheel.Cancel(e.timer)
		e.timer = nil
	}
}

func (c *Cache[K, V]) scheduleDeadline(e *entry[K, V]) {
	now := c.clock.Now()
	if c.cfg.TimeToLive > 0 {
		e.hasWriteDeadline = true
		e.writeDeadline = now.Add(c.cfg.TimeToLive)
	}
	if c.cfg.TimeToIdle > 0 {
		e.idleTTL = c.cfg.TimeToIdle
		e.hasIdleDeadline = true
		e.idleDeadline = now.Add(c.cfg.TimeToIdle)
	}
	deadline, ok := e.effectiveDeadline()
	if !ok {
		return
	}
	e.timer = &wheel.Timer{Deadline: deadline, Entry: e}
	c.wheel.Schedule(e.timer)
}

// drainReadBuffer feeds every buffered read trace to the policy and
// refreshes idle deadlines, discarding traces whose entry is no longer the
// live entry at its key (it was since replaced, removed, or evicted).
func (c *Cache[K, V]) drainReadBuffer() {
	for _, rec := range c.readBuf.DrainAll() {
		e := rec.Value.entry
		if c.shards.shardFor(e.hash).get(e.key) != e {
			continue // stale trace; the slot was overwritten or emptied after this read
		}
		c.onRead(e)
		c.refreshIdleDeadline(e)
	}
}

func (c *Cache[K, V]) refreshIdleDeadline(e *entry[K, V]) {
	if !e.hasIdleDeadline {
		return
	}
	e.lastAccess = c.clock.Now()
	e.idleDeadline = e.lastAccess.Add(e.idleTTL)
	if e.timer != nil {
		e.timer.Deadline, _ = e.effectiveDeadline()
		c.wheel.Reschedule(e.timer)
	}
}

// processExpirations advances the timer wheel to the current time and
// fully evicts every entry whose deadline has passed, per spec.md §4.6. It
// returns the number of entries expired, for the cycle-summary log line.
func (c *Cache[K, V]) processExpirations() int {
	now := c.clock.Now()
	if !now.After(c.lastTick) {
		return 0
	}
	fired := c.wheel.Advance(now)
	c.lastTick = now

	expired := 0
	for _, t := range fired {
		e, ok := t.Entry.(*entry[K, V])
		if !ok || !e.expired(now) {
			continue
		}
		e.timer = nil
		c.removeFromRegion(e)
		c.finalizeRemoval(e, CauseExpired)
		expired++
	}
	return expired
}

// finalizeRemoval removes e from the shard map (only if it's still the
// live entry for its key — a concurrent write may have already replaced
// it), updates the size counters, and invokes the eviction listener. It
// assumes e has already been detached from its region list and timer.
func (c *Cache[K, V]) finalizeRemoval(e *entry[K, V], cause Cause) {
	if e.timer != nil {
		c.wheel.Cancel(e.timer)
		e.timer = nil
	}
	if !c.shards.removeIfSame(e.hash, e.key, e) {
		return
	}
	c.entryCount.Add(-1)
	c.weightedSize.Add(-int64(e.weight))
	c.invokeListener(e.key, e.value, cause)
}

// invokeListener calls the configured EvictionListener, recovering and
// logging a panic instead of letting it escape the maintenance task — a
// misbehaving listener must not stall every other entry's eviction
// (spec.md §7).
func (c *Cache[K, V]) invokeListener(key K, value V, cause Cause) {
	if c.cfg.EvictionListener == nil {
		return
	}
	hash := c.cfg.Hasher(key)
	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn("eviction listener panicked",
				zap.Uint64("keyHash", hash),
				zap.Any("recovered", r),
				zap.String("cause", cause.String()))
		}
	}()
	c.cfg.EvictionListener(key, value, cause)
}
