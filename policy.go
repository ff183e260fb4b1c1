package tlfu

// admit places a freshly written entry at the head of the admission window
// — every new key starts in the window regardless of its eventual
// frequency (spec.md §4.5).
func (c *Cache[K, V]) admit(e *entry[K, V]) {
	e.region = regionWindow
	e.node = c.window.PushFront(e)
	c.windowWeight += int64(e.weight)
}

// onRead applies one buffered read trace to the policy structures: the
// frequency sketch always learns from it, and the entry's region list
// reacts the way an SLRU's does — window and protected hits simply refresh
// recency, a probation hit is promoted into protected (spec.md §4.5,
// grounded in samber-hot's promoteToProtected and the teacher's
// promoteEvict access-order bump).
//
// A read trace can reach here for an entry that the write buffer hasn't
// admitted yet — the map is updated synchronously by Insert, so a
// concurrent Get can observe and read a brand-new key before maintenance
// ever runs admit() on it. e.node is still nil in that case; the sketch
// still learns from the read, but there is no region list to touch yet.
func (c *Cache[K, V]) onRead(e *entry[K, V]) {
	c.sketch.Increment(e.hash)

	if e.node == nil {
		return
	}

	switch e.region {
	case regionWindow:
		c.window.MoveToFront(e.node)
	case regionProbation:
		c.promoteFromProbation(e)
	case regionProtected:
		c.protected.MoveToFront(e.node)
	}
}

func (c *Cache[K, V]) promoteFromProbation(e *entry[K, V]) {
	node := e.node
	c.probation.Remove(node)
	e.region = regionProtected
	c.protected.PushNodeFront(node)
	c.protectedWeight += int64(e.weight)
	c.demoteProtectedOverflow()
}

// demoteProtectedOverflow pushes the coldest protected entries back onto
// probation until the protected region's weighted size fits its capacity
// share of main (spec.md §4.5's "protected is capped at protected_ratio of
// main" — a weighted bound under config.go's Weigher, not an entry count).
func (c *Cache[K, V]) demoteProtectedOverflow() {
	for c.protectedWeight > c.protectedCapacity {
		back := c.protected.Back()
		if back == nil {
			return
		}
		c.protected.Remove(back)
		victim := back.Value
		c.protectedWeight -= int64(victim.weight)
		victim.region = regionProbation
		c.probation.PushNodeFront(back)
	}
}

// rebalanceWindow moves entries that have overflowed the admission window
// into probation. While the cache's weighted size is within MaxCapacity an
// overflowing entry simply moves; once it exceeds MaxCapacity, each move is
// subject to a TinyLFU admission contest against the coldest probation
// entry: the sketch picks whichever of the two has the higher estimated
// frequency, with a jitter bit breaking ties so two equally hot keys don't
// perpetually evict each other (spec.md §4.4). The loser of each contest is
// returned for the maintenance task to fully evict with CauseSize —
// grounded in ristretto's WLFU.Add admission test and godaddy's
// tinyLFU.Admit/Victim pairing.
func (c *Cache[K, V]) rebalanceWindow() []*entry[K, V] {
	var rejected []*entry[K, V]
	size := c.weightedSize.Load()
	for c.windowWeight > c.windowCapacity {
		back := c.window.Back()
		if back == nil {
			break
		}
		c.window.Remove(back)
		candidate := back.Value
		c.windowWeight -= int64(candidate.weight)

		victimNode := c.probation.Back()
		if victimNode == nil || size <= c.cfg.MaxCapacity {
			candidate.region = regionProbation
			c.probation.PushNodeFront(back)
			continue
		}
		victim := victimNode.Value

		jitter := (c.jitter.Add(1) & 1) == 1
		if c.sketch.Admits(candidate.hash, victim.hash, jitter) {
			c.probation.Remove(victimNode)
			candidate.region = regionProbation
			c.probation.PushNodeFront(back)
			rejected = append(rejected, victim)
			size -= int64(victim.weight)
		} else {
			rejected = append(rejected, candidate)
			size -= int64(candidate.weight)
		}
	}
	return rejected
}

// enforceCapacity evicts entries by recency — probation's coldest first,
// then protected's, then the window's as a last resort — until
// currentWeightedSize minus the evicted entries' weights would no longer
// exceed maxCapacity (spec.md §4.5's size-eviction order). It does not
// itself touch the weighted-size counter; the maintenance task does that
// once per evicted entry, just before invoking the eviction listener.
func (c *Cache[K, V]) enforceCapacity(currentWeightedSize, maxCapacity int64) []*entry[K, V] {
	var evicted []*entry[K, V]
	size := currentWeightedSize
	for size > maxCapacity {
		node := c.probation.Back()
		if node == nil {
			node = c.protected.Back()
		}
		if node == nil {
			node = c.window.Back()
		}
		if node == nil {
			break
		}

		e := node.Value
		switch e.region {
		case regionWindow:
			c.window.Remove(node)
			c.windowWeight -= int64(e.weight)
		case regionProtected:
			c.protected.Remove(node)
			c.protectedWeight -= int64(e.weight)
		case regionProbation:
			c.probation.Remove(node)
		}
		size -= int64(e.weight)
		evicted = append(evicted, e)
	}
	return evicted
}

// removeFromRegion detaches e from whichever region list currently holds
// it, used when an entry is explicitly invalidated or expires before ever
// overflowing out of its region naturally.
func (c *Cache[K, V]) removeFromRegion(e *entry[K, V]) {
	if e.node == nil {
		return
	}
	switch e.region {
	case regionWindow:
		c.window.Remove(e.node)
		c.windowWeight -= int64(e.weight)
	case regionProtected:
		c.protected.Remove(e.node)
		c.protectedWeight -= int64(e.weight)
	case regionProbation:
		c.probation.Remove(e.node)
	}
	e.node = nil
}
