// Package sketch implements a count-min sketch with periodic aging, used by
// the cache engine to estimate per-key access frequency without storing a
// counter per key. It overestimates but never underestimates a key's true
// access count (see GLOSSARY "Count-min sketch" in the project spec).
package sketch

import (
	"github.com/cespare/xxhash/v2"
	"github.com/jamiealquiza/fnv"
)

const (
	// rows is the number of independent hash lanes (hash functions). Four
	// lanes is the standard TinyLFU configuration.
	rows = 4

	counterBits = 4
	counterMax  = (1 << counterBits) - 1
	slotsPerWord = 64 / counterBits
)

// Sketch is a 4-bit-counter, 4-row count-min sketch sized relative to a
// cache's capacity, with aging: every sampleSize increments, all counters
// are halved so frequency tracks recent load rather than lifetime totals.
type Sketch struct {
	table      [][]uint64 // rows, each a slice of packed 4-bit counters
	width      uint64     // counters per row (power of two)
	widthMask  uint64
	additions  uint64
	sampleSize uint64
}

// New returns a Sketch sized for the given cache capacity. Per spec.md
// §4.4, the table holds roughly 4x capacity counters per row and ages out
// after 10x capacity increments.
func New(capacity uint64) *Sketch {
	if capacity < 1 {
		capacity = 1
	}

	width := nextPowerOfTwo(capacity * 4)
	s := &Sketch{
		table:      make([][]uint64, rows),
		width:      width,
		widthMask:  width - 1,
		sampleSize: capacity * 10,
	}
	words := (width + slotsPerWord - 1) / slotsPerWord
	for r := 0; r < rows; r++ {
		s.table[r] = make([]uint64, words)
	}
	if s.sampleSize == 0 {
		s.sampleSize = width
	}
	return s
}

// lanes returns the rows distinct row indexes for hash h, one per hash lane.
func (s *Sketch) lanes(hash uint64) [rows]uint64 {
	h1 := fnv.Hash64a(string(uint64ToBytes(hash)))
	h2 := xxhash.Sum64(uint64ToBytes(hash))
	var out [rows]uint64
	out[0] = h1 & s.widthMask
	out[1] = h2 & s.widthMask
	out[2] = (h1 >> 32) & s.widthMask
	out[3] = (h2 >> 32) & s.widthMask
	return out
}

// Increment records one observed access for hash, aging the whole sketch
// first if the sample budget has been exhausted.
func (s *Sketch) Increment(hash uint64) {
	lanes := s.lanes(hash)
	for r := 0; r < rows; r++ {
		s.incrementAt(r, lanes[r])
	}

	s.additions++
	if s.additions >= s.sampleSize {
		s.reset()
	}
}

// Estimate returns the minimum counter across all rows for hash — the
// count-min sketch's frequency estimate.
func (s *Sketch) Estimate(hash uint64) uint8 {
	lanes := s.lanes(hash)
	min := uint8(counterMax)
	for r := 0; r < rows; r++ {
		if v := s.counterAt(r, lanes[r]); v < min {
			min = v
		}
	}
	return min
}

// Admits reports whether candidateHash should be admitted over
// victimHash: true when the candidate's estimated frequency is strictly
// higher, or when frequencies tie and the candidate's hash parity matches
// the supplied jitter bit — this tie-break keeps two equally "hot" keys
// from perpetually evicting each other (spec.md §4.4).
func (s *Sketch) Admits(candidateHash, victimHash uint64, jitterBit bool) bool {
	candidate, victim := s.Estimate(candidateHash), s.Estimate(victimHash)
	if candidate != victim {
		return candidate > victim
	}
	return (candidateHash&1 == 1) == jitterBit
}

// Reset halves every counter in the sketch and clears the addition budget.
// Exported so callers (e.g. a full cache Clear()) can force a re-age.
func (s *Sketch) Reset() {
	s.reset()
}

func (s *Sketch) reset() {
	for r := 0; r < rows; r++ {
		row := s.table[r]
		for i := range row {
			// Halve each of the 16 packed 4-bit counters in the word by
			// masking off the low bit of every nibble, then shifting right.
			row[i] = (row[i] >> 1) & 0x7777777777777777
		}
	}
	s.additions = 0
}

func (s *Sketch) incrementAt(row int, idx uint64) {
	wordIdx, shift := idx/slotsPerWord, (idx%slotsPerWord)*counterBits
	word := s.table[row][wordIdx]
	v := (word >> shift) & counterMax
	if v < counterMax {
		s.table[row][wordIdx] = word + (1 << shift)
	}
}

func (s *Sketch) counterAt(row int, idx uint64) uint8 {
	wordIdx, shift := idx/slotsPerWord, (idx%slotsPerWord)*counterBits
	return uint8((s.table[row][wordIdx] >> shift) & counterMax)
}

func nextPowerOfTwo(n uint64) uint64 {
	if n == 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}

func uint64ToBytes(v uint64) []byte {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
	return b
}
