package tlfu_test

import (
	"testing"

	"github.com/cachekit/tlfu"
)

func TestInsertRejectsZeroWeight(t *testing.T) {
	c, _ := tlfu.New(tlfu.Config[string, string]{
		MaxCapacity: 100,
		Weigher:     func(string, string) uint32 { return 0 },
	})

	err := c.Insert("key", "value")
	if _, ok := err.(*tlfu.InvalidConfigError); !ok {
		t.Errorf("Insert with a zero-weight entry returned %v, want *InvalidConfigError", err)
	}
}

func TestInvalidateEntriesIfRequiresOptIn(t *testing.T) {
	c, _ := tlfu.New(tlfu.Config[string, string]{MaxCapacity: 100})

	err := c.InvalidateEntriesIf(func(string, string) bool { return true })
	if _, ok := err.(*tlfu.InvalidConfigError); !ok {
		t.Errorf("InvalidateEntriesIf without InvalidatorEnabled returned %v, want *InvalidConfigError", err)
	}
}

func TestInvalidateEntriesIfRemovesMatching(t *testing.T) {
	c, _ := tlfu.New(tlfu.Config[int, int]{
		MaxCapacity:        100,
		InvalidatorEnabled: true,
	})

	for i := 0; i < 10; i++ {
		c.Insert(i, i)
	}
	c.RunPendingTasks()

	if err := c.InvalidateEntriesIf(func(key, value int) bool { return key%2 == 0 }); err != nil {
		t.Fatalf("InvalidateEntriesIf failed: %v", err)
	}
	c.RunPendingTasks()

	for i := 0; i < 10; i++ {
		_, ok := c.Get(i)
		wantOK := i%2 != 0
		if ok != wantOK {
			t.Errorf("Get(%d) ok=%v, want %v", i, ok, wantOK)
		}
	}
}

func TestIterateVisitsEveryLiveEntry(t *testing.T) {
	c, _ := tlfu.New(tlfu.Config[int, int]{MaxCapacity: 100})

	want := map[int]int{}
	for i := 0; i < 20; i++ {
		c.Insert(i, i*10)
		want[i] = i * 10
	}
	c.RunPendingTasks()

	got := map[int]int{}
	c.Iterate(func(key, value int) bool {
		got[key] = value
		return true
	})

	if len(got) != len(want) {
		t.Fatalf("Iterate visited %d entries, want %d", len(got), len(want))
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("Iterate observed (%d, %d), want (%d, %d)", k, got[k], k, v)
		}
	}
}

func TestIterateStopsWhenFnReturnsFalse(t *testing.T) {
	c, _ := tlfu.New(tlfu.Config[int, int]{MaxCapacity: 100})
	for i := 0; i < 20; i++ {
		c.Insert(i, i)
	}
	c.RunPendingTasks()

	visited := 0
	c.Iterate(func(key, value int) bool {
		visited++
		return false
	})

	if visited != 1 {
		t.Errorf("Iterate visited %d entries after a false return, want exactly 1", visited)
	}
}

func TestEntryCountTracksInsertAndInvalidate(t *testing.T) {
	c, _ := tlfu.New(tlfu.Config[string, string]{MaxCapacity: 100})

	c.Insert("a", "1")
	c.Insert("b", "2")
	c.RunPendingTasks()

	if got := c.EntryCount(); got != 2 {
		t.Errorf("EntryCount() = %d, want 2", got)
	}

	c.Invalidate("a")
	c.RunPendingTasks()

	if got := c.EntryCount(); got != 1 {
		t.Errorf("EntryCount() = %d after Invalidate, want 1", got)
	}
}
