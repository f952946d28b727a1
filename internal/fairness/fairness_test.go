package fairness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSeedCommitment(t *testing.T) {
	seed, commitment, err := NewSeed()
	require.NoError(t, err)
	assert.Len(t, seed, 64)
	assert.Len(t, commitment, 64)

	assert.True(t, VerifyCommitment(seed, commitment))
	assert.False(t, VerifyCommitment(seed+"00", commitment))

	other, _, err := NewSeed()
	require.NoError(t, err)
	assert.NotEqual(t, seed, other)
}

func TestDrawDeterministic(t *testing.T) {
	const seed = "a1b2c3"

	assert.Equal(t, Draw(seed, 1), Draw(seed, 1))
	assert.NotEqual(t, Draw(seed, 1), Draw(seed, 2))
	assert.NotEqual(t, Draw(seed, 1), Draw("other", 1))
}

func TestWeightedPick(t *testing.T) {
	const seed = "deadbeef"

	t.Run("within bounds and deterministic", func(t *testing.T) {
		weights := []int64{70, 20, 10}
		for nonce := uint64(1); nonce <= 50; nonce++ {
			idx, err := WeightedPick(seed, nonce, weights)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, idx, 0)
			assert.Less(t, idx, len(weights))

			again, err := WeightedPick(seed, nonce, weights)
			require.NoError(t, err)
			assert.Equal(t, idx, again)
		}
	})

	t.Run("zero-weight segments are never selected", func(t *testing.T) {
		weights := []int64{0, 0, 5}
		for nonce := uint64(1); nonce <= 20; nonce++ {
			idx, err := WeightedPick(seed, nonce, weights)
			require.NoError(t, err)
			assert.Equal(t, 2, idx)
		}
	})

	t.Run("matches the cumulative walk", func(t *testing.T) {
		weights := []int64{70, 20, 10}
		for nonce := uint64(1); nonce <= 20; nonce++ {
			r := int64(Draw(seed, nonce) % 100)
			want := 2
			if r < 70 {
				want = 0
			} else if r < 90 {
				want = 1
			}

			idx, err := WeightedPick(seed, nonce, weights)
			require.NoError(t, err)
			assert.Equal(t, want, idx)
		}
	})

	t.Run("no positive weight", func(t *testing.T) {
		_, err := WeightedPick(seed, 1, []int64{0, 0})
		assert.ErrorIs(t, err, ErrNoWeights)
	})
}

func TestPick(t *testing.T) {
	idx, err := Pick("seed", 7, 5)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, idx, 0)
	assert.Less(t, idx, 5)

	_, err = Pick("seed", 7, 0)
	assert.ErrorIs(t, err, ErrNoWeights)
}

func TestEliminationSequence(t *testing.T) {
	const seed = "cafe"
	const n = 8

	sequence := EliminationSequence(seed, n)
	require.Len(t, sequence, n)

	seen := make(map[int]bool)
	for _, idx := range sequence {
		assert.False(t, seen[idx], "index %d eliminated twice", idx)
		assert.GreaterOrEqual(t, idx, 0)
		assert.Less(t, idx, n)
		seen[idx] = true
	}

	assert.Equal(t, sequence, EliminationSequence(seed, n))

	// The sequence must be exactly what round-by-round draws over the
	// shrinking survivor set produce.
	remaining := make([]int, n)
	for i := range remaining {
		remaining[i] = i
	}
	for round := uint64(1); len(remaining) > 1; round++ {
		victim := int(Draw(seed, round) % uint64(len(remaining)))
		assert.Equal(t, remaining[victim], sequence[round-1])
		remaining = append(remaining[:victim], remaining[victim+1:]...)
	}
	assert.Equal(t, remaining[0], sequence[n-1])
}

func TestEliminationSequenceSingleParticipant(t *testing.T) {
	assert.Equal(t, []int{0}, EliminationSequence("seed", 1))
	assert.Empty(t, EliminationSequence("seed", 0))
}
