package tlfu

import (
	"time"

	"github.com/cachekit/tlfu/internal/deque"
	"github.com/cachekit/tlfu/internal/wheel"
)

// region identifies which of the three W-TinyLFU regions an entry
// currently occupies (spec.md §4.5).
type region uint8

const (
	regionWindow region = iota
	regionProtected
	regionProbation
)

// entry is the cache's unit of storage. It is referenced simultaneously by
// the concurrent map (by key) and, once admitted, by exactly one region
// deque and at most one timer-wheel Timer (spec.md §3). The map and the
// policy structures share this one allocation; there is no copying between
// them.
type entry[K comparable, V any] struct {
	key    K
	value  V
	hash   uint64
	weight uint32

	region region

	// stamp is bumped every time this key slot is replaced by a new
	// entry. Buffered read records capture it when enqueued; maintenance
	// discards a read record whose entry is no longer the live entry at
	// that key, per the "Intrusive linked structures" design note.
	stamp uint64

	lastAccess time.Time

	hasWriteDeadline bool
	writeDeadline    time.Time

	idleTTL         time.Duration
	hasIdleDeadline bool
	idleDeadline    time.Time

	// epoch is the owning shard's invalidate_all() generation captured at
	// insertion time; a mismatch against the shard's current epoch makes
	// the entry a lazy miss (spec.md SPEC_FULL §4 EXPANDED item 2).
	epoch uint64

	// node links this entry into whichever region deque currently owns
	// it. nil until the first maintenance cycle admits the entry.
	node *deque.Node[*entry[K, V]]

	// timer links this entry into the timer wheel, or nil if it has
	// neither a write nor an idle deadline.
	timer *wheel.Timer
}

// effectiveDeadline returns the earlier of the write and idle deadlines,
// and whether either is set at all (spec.md §3 "Deadlines").
func (e *entry[K, V]) effectiveDeadline() (time.Time, bool) {
	switch {
	case e.hasWriteDeadline && e.hasIdleDeadline:
		if e.writeDeadline.Before(e.idleDeadline) {
			return e.writeDeadline, true
		}
		return e.idleDeadline, true
	case e.hasWriteDeadline:
		return e.writeDeadline, true
	case e.hasIdleDeadline:
		return e.idleDeadline, true
	default:
		return time.Time{}, false
	}
}

// expired reports whether now has reached or passed the entry's effective
// deadline.
func (e *entry[K, V]) expired(now time.Time) bool {
	deadline, ok := e.effectiveDeadline()
	return ok && !now.Before(deadline)
}
