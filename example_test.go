package tlfu_test

import (
	"strconv"
	"testing"

	"github.com/cachekit/tlfu"
)

// TestWarmupGetStatsWorkflow exercises the cache the way the teacher's own
// bicache-example demo does: warm it with a batch of keys, read a handful
// of them repeatedly to bias the frequency sketch, then inspect Stats() —
// adapted here into an assertion-driven test rather than a printed report,
// since this repo carries no cmd/ demo facade of its own.
func TestWarmupGetStatsWorkflow(t *testing.T) {
	const keyCount = 2000

	c, err := tlfu.New(tlfu.Config[string, []byte]{
		MaxCapacity: 1000,
		ShardCount:  64,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	for i := 0; i < keyCount; i++ {
		c.Insert(strconv.Itoa(i), []byte{0})
	}
	c.RunPendingTasks()

	for i := 0; i < 5; i++ {
		c.Get("3")
		c.Get("2")
	}
	c.RunPendingTasks()

	stats := c.Stats()
	if stats.Hits == 0 {
		t.Error("expected at least one recorded hit after warming hot keys")
	}
	if stats.WeightedSize > 1000 {
		t.Errorf("WeightedSize() = %d, want at most the configured MaxCapacity of 1000", stats.WeightedSize)
	}
	if stats.MaintenanceLatency == nil {
		t.Error("expected a non-nil maintenance latency snapshot after RunPendingTasks")
	}
}
