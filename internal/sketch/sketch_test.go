package sketch_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cachekit/tlfu/internal/sketch"
)

func TestEstimateGrowsWithIncrement(t *testing.T) {
	s := sketch.New(1000)

	before := s.Estimate(42)
	for i := 0; i < 5; i++ {
		s.Increment(42)
	}
	after := s.Estimate(42)

	assert.GreaterOrEqual(t, after, before)
	assert.GreaterOrEqual(t, after, uint8(5))
}

func TestEstimateNeverUnderestimates(t *testing.T) {
	s := sketch.New(100)

	for i := 0; i < 20; i++ {
		s.Increment(7)
	}
	// A colliding key sharing a row slot can only push the estimate up,
	// never down — the core count-min guarantee.
	estimateBefore := s.Estimate(7)
	s.Increment(999999)
	estimateAfter := s.Estimate(7)

	require.GreaterOrEqual(t, estimateAfter, estimateBefore)
}

func TestAgingHalvesCounters(t *testing.T) {
	s := sketch.New(4) // small capacity -> small sampleSize, ages quickly

	for i := 0; i < 1000; i++ {
		s.Increment(1)
	}
	highEstimate := s.Estimate(1)

	s.Reset()
	agedEstimate := s.Estimate(1)

	assert.Less(t, agedEstimate, highEstimate)
}

func TestAdmitsPrefersHigherFrequency(t *testing.T) {
	s := sketch.New(1000)

	for i := 0; i < 10; i++ {
		s.Increment(1) // hot candidate
	}
	// victim has no accesses recorded.

	assert.True(t, s.Admits(1, 2, false))
	assert.False(t, s.Admits(2, 1, false))
}

func TestAdmitsTieBreaksOnJitterBit(t *testing.T) {
	s := sketch.New(1000)
	// Neither key has been incremented: both estimate to 0, a tie.
	oddCandidate, evenVictim := uint64(3), uint64(4)

	assert.True(t, s.Admits(oddCandidate, evenVictim, true))
	assert.False(t, s.Admits(oddCandidate, evenVictim, false))
}
