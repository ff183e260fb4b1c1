package tlfu

import "testing"

// TestOnReadToleratesUnadmittedEntry exercises the window where a concurrent
// Get observes a key that Insert has already published into the shard map
// but that maintenance has not yet admitted into a region (e.node is still
// nil). onRead must fold the read into the frequency sketch and return,
// rather than dereferencing the nil region node.
func TestOnReadToleratesUnadmittedEntry(t *testing.T) {
	c, err := New(Config[string, string]{MaxCapacity: 100})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer c.Close()

	e := &entry[string, string]{key: "k", value: "v", hash: c.cfg.Hasher("k")}

	c.onRead(e)

	if e.node != nil {
		t.Errorf("onRead on an unadmitted entry unexpectedly set e.node")
	}
}

func TestRecordReadToleratesUnadmittedEntry(t *testing.T) {
	c, err := New(Config[string, string]{MaxCapacity: 100})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer c.Close()

	hash := c.cfg.Hasher("k")
	e := &entry[string, string]{key: "k", value: "v", hash: hash}
	s := c.shards.shardFor(hash)
	s.upsert("k", e)

	c.recordRead(e)
	c.RunPendingTasks()
}

// TestRebalanceWindowComparesWeightedSizeNotCount guards against
// rebalanceWindow comparing the window deque's entry count against
// windowCapacity, a weighted quantity under a non-default Weigher
// (spec.md §4.5, §8's weighted-admission scenario). Two entries of weight
// 30 each fit comfortably under an entry-count threshold but overflow a
// windowCapacity of 50; a count-based check would never rebalance them.
func TestRebalanceWindowComparesWeightedSizeNotCount(t *testing.T) {
	c, err := New(Config[string, int]{
		MaxCapacity: 100,
		WindowRatio: 0.5,
		Weigher:     func(_ string, v int) uint32 { return uint32(v) },
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer c.Close()

	e1 := &entry[string, int]{key: "a", value: 30, hash: c.cfg.Hasher("a"), weight: 30}
	e2 := &entry[string, int]{key: "b", value: 30, hash: c.cfg.Hasher("b"), weight: 30}
	c.admit(e1)
	c.admit(e2)

	if c.windowWeight != 60 {
		t.Fatalf("windowWeight after admitting two weight-30 entries = %d, want 60", c.windowWeight)
	}
	if c.window.Len() != 2 {
		t.Fatalf("window.Len() = %d, want 2", c.window.Len())
	}

	rejected := c.rebalanceWindow()

	if c.windowWeight > c.windowCapacity {
		t.Errorf("windowWeight = %d still exceeds windowCapacity = %d after rebalanceWindow", c.windowWeight, c.windowCapacity)
	}
	if len(rejected) != 0 {
		t.Errorf("rebalanceWindow rejected %d entries against an empty probation, want 0 (candidate should just move to probation)", len(rejected))
	}
	if c.window.Len() != 1 {
		t.Errorf("window.Len() after rebalance = %d, want 1", c.window.Len())
	}
	if c.probation.Len() != 1 {
		t.Errorf("probation.Len() after rebalance = %d, want 1", c.probation.Len())
	}
}
