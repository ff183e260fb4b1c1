package tlfu

import "github.com/jamiealquiza/tachymeter"

// Stats is a snapshot of a Cache's running counters, structured after the
// teacher's own *bicache.Stats return value, generalized from its fixed
// MRU/MFU fields to this engine's window/protected/probation regions.
type Stats struct {
	Hits     uint64
	Misses   uint64
	HitRatio float64

	EntryCount   int64
	WeightedSize int64

	WindowSize    int
	ProtectedSize int
	ProbationSize int

	// MaintenanceLatency is computed over the most recent maintenance
	// passes by the teacher's own tachymeter dependency.
	MaintenanceLatency *tachymeter.Metrics
}

// Stats returns a point-in-time snapshot of the cache's counters. It takes
// maintenanceMu to read the region sizes consistently with whatever the
// maintenance task currently owns — the only reason anything outside the
// maintenance task ever touches that lock.
func (c *Cache[K, V]) Stats() Stats {
	hits, misses := c.hits.Load(), c.misses.Load()
	var ratio float64
	if total := hits + misses; total > 0 {
		ratio = float64(hits) / float64(total)
	}

	c.maintenanceMu.Lock()
	windowSize, protectedSize, probationSize := c.window.Len(), c.protected.Len(), c.probation.Len()
	latency := c.tach.Calc()
	c.maintenanceMu.Unlock()

	return Stats{
		Hits:               hits,
		Misses:             misses,
		HitRatio:           ratio,
		EntryCount:         c.entryCount.Load(),
		WeightedSize:       c.weightedSize.Load(),
		WindowSize:         windowSize,
		ProtectedSize:      protectedSize,
		ProbationSize:      probationSize,
		MaintenanceLatency: latency,
	}
}
