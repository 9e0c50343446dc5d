package seeds

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPickNReturnsDistinctValues(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	picked := pickN(rng, cuisines, 3)
	assert.Len(t, picked, 3)

	seen := map[string]bool{}
	for _, v := range picked {
		assert.Contains(t, cuisines, v)
		assert.False(t, seen[v], "duplicate %s", v)
		seen[v] = true
	}

	assert.Len(t, pickN(rng, []string{"a"}, 5), 1)
	assert.Empty(t, pickN(rng, cuisines, 0))
}

func TestRatingScoreRange(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for range 500 {
		r := ratingScore(rng)
		assert.GreaterOrEqual(t, r, 2.5)
		assert.LessOrEqual(t, r, 5.0)
	}
}

func TestWeightedChoice(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	assert.Equal(t, "b", weightedChoice(rng, []string{"a", "b"}, []float64{0, 1}))

	for range 100 {
		assert.Contains(t, priceRanges, weightedChoice(rng, priceRanges, priceWeights))
	}
}
