// Package wheel implements a hierarchical timer wheel for per-entry
// expiration deadlines (spec.md §4.6). Each level is a fixed-size ring of
// buckets covering a span of time; lower levels cover shorter spans at
// finer resolution, and entries cascade down from coarser levels into finer
// ones as their deadline approaches. Schedule and Cancel are both O(1);
// Advance is amortized O(1) per elapsed tick plus the work of actually
// expiring entries.
package wheel

import "time"

// Each level's bucket covers 64 times the span of the level below it: 1s,
// 64s (~1.07m), 4096s (~1.14h), 262144s (~3.03d), and a top level of
// 16777216s (~194d), each level built from 64 buckets so that a shift-by-6
// steps one level up.
const (
	bucketsPerLevel = 64
	levelCount      = 5
)

var tickDuration = [levelCount]time.Duration{
	time.Second,
	time.Second * bucketsPerLevel,
	time.Second * bucketsPerLevel * bucketsPerLevel,
	time.Second * bucketsPerLevel * bucketsPerLevel * bucketsPerLevel,
	time.Second * bucketsPerLevel * bucketsPerLevel * bucketsPerLevel * bucketsPerLevel,
}

// Timer is the handle a caller keeps to later Cancel a scheduled deadline.
// It is intrusive: the same struct is linked into exactly one bucket at a
// time, and carries the caller's opaque Entry pointer so Wheel.Advance can
// report which entries expired without a second lookup.
type Timer struct {
	next, prev *Timer
	bucket     *bucket
	Deadline   time.Time
	Entry      interface{}
}

type bucket struct {
	root Timer // sentinel; root.next/root.prev form the ring
}

func newBucket() *bucket {
	b := &bucket{}
	b.root.next, b.root.prev = &b.root, &b.root
	return b
}

func (b *bucket) pushBack(t *Timer) {
	t.bucket = b
	t.prev = b.root.prev
	t.next = &b.root
	b.root.prev.next = t
	b.root.prev = t
}

func unlink(t *Timer) {
	if t.bucket == nil {
		return
	}
	t.prev.next = t.next
	t.next.prev = t.prev
	t.next, t.prev, t.bucket = nil, nil, nil
}

func (b *bucket) drainInto(out []*Timer) []*Timer {
	for t := b.root.next; t != &b.root; {
		next := t.next
		t.next, t.prev, t.bucket = nil, nil, nil
		out = append(out, t)
		t = next
	}
	b.root.next, b.root.prev = &b.root, &b.root
	return out
}

type level struct {
	buckets [bucketsPerLevel]*bucket
	cursor  int
}

func newLevel() *level {
	l := &level{}
	for i := range l.buckets {
		l.buckets[i] = newBucket()
	}
	return l
}

// Wheel schedules Timers against a logical "current time" that advances via
// Advance. Wheel itself does not read a clock — the maintenance task
// decides how far to advance it (now - last_tick, per spec.md §4.6) using
// the injected internal/clock.Clock.
type Wheel struct {
	levels [levelCount]*level
	now    time.Time
}

// New returns a Wheel whose logical clock starts at start.
func New(start time.Time) *Wheel {
	w := &Wheel{now: start}
	for i := range w.levels {
		w.levels[i] = newLevel()
	}
	return w
}

// Schedule places t into the bucket matching its Deadline relative to the
// wheel's current logical time, choosing the finest level whose 64 buckets
// together cover the remaining duration. t must not already be
// scheduled in this or another wheel.
func (w *Wheel) Schedule(t *Timer) {
	remaining := t.Deadline.Sub(w.now)
	if remaining < 0 {
		remaining = 0
	}

	levelIdx := 0
	for levelIdx < levelCount-1 && remaining >= tickDuration[levelIdx]*bucketsPerLevel {
		levelIdx++
	}

	lvl := w.levels[levelIdx]
	span := tickDuration[levelIdx]
	offset := int(remaining/span) % bucketsPerLevel
	bucketIdx := (lvl.cursor + offset) % bucketsPerLevel
	lvl.buckets[bucketIdx].pushBack(t)
}

// Cancel removes t from whichever bucket currently holds it. Safe to call
// on a Timer that was already fired or never scheduled.
func (w *Wheel) Cancel(t *Timer) {
	unlink(t)
}

// Reschedule cancels t (if scheduled) and re-schedules it against its
// current Deadline field — callers update Deadline before calling this,
// e.g. on an idle-deadline refresh coalesced by maintenance.
func (w *Wheel) Reschedule(t *Timer) {
	w.Cancel(t)
	w.Schedule(t)
}

// Advance moves the wheel's logical time forward to now, cascading coarser
// levels into finer ones as their spans elapse, and returns every Timer
// whose Deadline is now at or before now. The wheel's own bucket pointers
// for those Timers are cleared; Deadline is left untouched for inspection.
func (w *Wheel) Advance(now time.Time) []*Timer {
	var expired []*Timer
	if !now.After(w.now) {
		return expired
	}

	base := w.now
	for levelIdx := 0; levelIdx < levelCount; levelIdx++ {
		lvl := w.levels[levelIdx]
		span := tickDuration[levelIdx]
		// Count the span boundaries crossed between w.now and now, so that
		// a series of short Advance steps still adds up to whole ticks.
		ticks := int(now.UnixNano()/int64(span) - w.now.UnixNano()/int64(span))
		if levelIdx > 0 {
			// A coarser level only advances once its own span has fully
			// elapsed; otherwise leave its cursor alone so entries that
			// cascaded down aren't visited twice.
			if ticks == 0 {
				continue
			}
		}
		for i := 0; i < ticks && i < bucketsPerLevel; i++ {
			b := lvl.buckets[lvl.cursor]
			drained := b.drainInto(nil)
			lvl.cursor = (lvl.cursor + 1) % bucketsPerLevel

			// tickBase is the real time this particular bucket's slot
			// represents, not the wheel's time at the start of this whole
			// Advance call — needed so a cascaded timer's remaining time is
			// measured from where it actually sits, not from however far
			// back Advance started.
			tickBase := base.Add(span * time.Duration(i+1))
			for _, t := range drained {
				w.settleOrCascade(t, levelIdx, now, tickBase, &expired)
			}
		}
		if ticks >= bucketsPerLevel {
			// We've wrapped this level entirely; every remaining bucket's
			// contents are at least due for a look — most are genuinely
			// expired, but anything whose deadline still lies ahead must
			// still cascade down rather than being reported as fired.
			for i := 0; i < bucketsPerLevel; i++ {
				drained := lvl.buckets[i].drainInto(nil)
				for _, t := range drained {
					w.settleOrCascade(t, levelIdx, now, now, &expired)
				}
			}
		}
	}

	w.now = now
	return expired
}

// settleOrCascade decides whether a timer drained from levelIdx has
// actually reached its deadline. A timer fires only if its deadline is
// already at or before now. Otherwise a timer drained from a coarser level
// moves down exactly one level (relative to base, the real time their
// draining bucket represents) rather than jumping straight to level 0, so
// repeated Advance calls walk it down however many levels it started at;
// a not-yet-due timer drained from level 0 is placed back into level 0.
func (w *Wheel) settleOrCascade(t *Timer, levelIdx int, now, base time.Time, expired *[]*Timer) {
	if !t.Deadline.After(now) {
		*expired = append(*expired, t)
		return
	}
	dest := levelIdx - 1
	if dest < 0 {
		dest = 0
	}
	w.cascade(t, dest, base)
}

// cascade re-inserts t into destLevel relative to base, used only
// internally by Advance to walk a timer one level finer at a time.
func (w *Wheel) cascade(t *Timer, destLevel int, base time.Time) {
	lvl := w.levels[destLevel]
	remaining := t.Deadline.Sub(base)
	if remaining < 0 {
		remaining = 0
	}
	span := tickDuration[destLevel]
	offset := int(remaining/span) % bucketsPerLevel
	bucketIdx := (lvl.cursor + offset) % bucketsPerLevel
	lvl.buckets[bucketIdx].pushBack(t)
}
