package tlfu_test

import (
	"strconv"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cachekit/tlfu"
)

// TestAdmissionContestFavorsFrequentKeys builds up frequency for a small
// set of "hot" keys via repeated Get calls, then floods the cache with a
// much larger set of keys seen only once. A correct TinyLFU admission
// contest should keep the hot keys alive far more often than the
// one-shot flood, even though the flood vastly outnumbers them.
func TestAdmissionContestFavorsFrequentKeys(t *testing.T) {
	c, _ := tlfu.New(tlfu.Config[string, int]{
		MaxCapacity: 200,
		ShardCount:  8,
	})

	hotKeys := []string{"hot-0", "hot-1", "hot-2", "hot-3"}
	for _, k := range hotKeys {
		c.Insert(k, 1)
	}
	c.RunPendingTasks()

	for round := 0; round < 50; round++ {
		for _, k := range hotKeys {
			c.Get(k)
		}
		c.RunPendingTasks()
	}

	for i := 0; i < 5000; i++ {
		c.Insert("flood-"+strconv.Itoa(i), 1)
	}
	c.RunPendingTasks()

	survivors := 0
	for _, k := range hotKeys {
		if _, ok := c.Get(k); ok {
			survivors++
		}
	}

	if survivors == 0 {
		t.Error("none of the frequently-read hot keys survived the flood; admission contest favored one-shot keys")
	}
}

func TestRunPendingTasksLogsOneCycleSummaryAtDebug(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	c, _ := tlfu.New(tlfu.Config[string, string]{
		MaxCapacity: 100,
		Logger:      zap.New(core),
	})

	c.Insert("key", "value")
	// The inline scheduler already ran (and logged) one cycle for the
	// Insert; count only what RunPendingTasks itself logs.
	logs.TakeAll()
	c.RunPendingTasks()

	entries := logs.FilterMessage("maintenance cycle").All()
	if len(entries) != 1 {
		t.Fatalf("got %d \"maintenance cycle\" log entries, want 1", len(entries))
	}
	if entries[0].Level != zapcore.DebugLevel {
		t.Errorf("cycle summary logged at %v, want Debug", entries[0].Level)
	}
}

func TestRunPendingTasksIsIdempotentWhenNothingPending(t *testing.T) {
	c, _ := tlfu.New(tlfu.Config[string, string]{MaxCapacity: 100})

	c.Insert("key", "value")
	c.RunPendingTasks()
	c.RunPendingTasks()
	c.RunPendingTasks()

	v, ok := c.Get("key")
	if !ok || v != "value" {
		t.Errorf("Get after repeated RunPendingTasks returned (%q, %v), want (\"value\", true)", v, ok)
	}
}
