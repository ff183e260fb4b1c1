package tlfu

// writeOp identifies the structural change a writeRecord describes
// (spec.md §4.3).
type writeOp uint8

const (
	writeUpsert writeOp = iota
	writeRemove
)

// writeRecord is one entry in the Write Buffer. Ordering of records for
// the same key defines the authoritative policy view (spec.md §4.3), which
// is why the write buffer is a single FIFO channel rather than sharded —
// all writers append, and only the maintenance task ever drains it.
//
// spec.md's own write-buffer vocabulary also names a third shape,
// UpdateWeight(entry, old, new), for adjusting an entry's weight in place.
// This implementation never needs it: Insert always replaces a key's whole
// entry (a new weight always arrives attached to a new value via a fresh
// writeUpsert, with the displaced entry's weight subtracted in
// applyWrite), and nothing else computes a weight for an existing entry
// independent of a value change. A dedicated record kind with no producer
// is dead code, so it is left out rather than kept unreachable.
type writeRecord[K comparable, V any] struct {
	op       writeOp
	entry    *entry[K, V]
	replaced *entry[K, V] // for writeUpsert: the entry being overwritten, if any
	cause    Cause        // for writeRemove
}

// readRecord is one entry in a Read Buffer stripe (spec.md §4.2): a
// pointer to the entry that was read and the stamp it carried at read
// time. During drain a stale record (its entry is no longer the live entry
// at its key) is dropped instead of corrupting policy state.
type readRecord[K comparable, V any] struct {
	entry *entry[K, V]
	stamp uint64
}
