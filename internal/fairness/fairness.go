// Package fairness implements the commit-reveal scheme behind every outcome
// the engine pays out on. A wheel commits to hash(seed) at creation; all
// draws are HMAC-SHA256 digests of a nonce under that seed, so anyone who
// learns the seed after the round can recompute the exact sequence of
// results and check it against the published commitment.
package fairness

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
)

const seedBytes = 32

var ErrNoWeights = errors.New("weighted selection requires a positive total weight")

// NewSeed generates a cryptographically random secret seed and returns it
// with its commitment.
func NewSeed() (seed string, commitment string, err error) {
	buf := make([]byte, seedBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}

	seed = hex.EncodeToString(buf)
	return seed, Commitment(seed), nil
}

// Commitment is the one-way hash of the seed published to clients before
// the round.
func Commitment(seed string) string {
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:])
}

// VerifyCommitment reports whether a revealed seed matches the published
// commitment.
func VerifyCommitment(seed, commitment string) bool {
	return Commitment(seed) == commitment
}

// Draw derives the deterministic pseudo-random value for a nonce under the
// seed: the first 8 bytes of HMAC-SHA256(seed, nonce), big endian.
func Draw(seed string, nonce uint64) uint64 {
	mac := hmac.New(sha256.New, []byte(seed))

	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], nonce)
	mac.Write(msg[:])

	return binary.BigEndian.Uint64(mac.Sum(nil)[:8])
}

// WeightedPick reduces the draw for a nonce modulo the total weight and
// walks cumulative weights to the first index whose cumulative weight
// exceeds the reduced value.
func WeightedPick(seed string, nonce uint64, weights []int64) (int, error) {
	var total int64
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total <= 0 {
		return 0, ErrNoWeights
	}

	r := int64(Draw(seed, nonce) % uint64(total))

	var cumulative int64
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		cumulative += w
		if r < cumulative {
			return i, nil
		}
	}

	// Unreachable: the walk covers [0, total).
	return len(weights) - 1, nil
}

// Pick selects uniformly among n candidates for the given nonce.
func Pick(seed string, nonce uint64, n int) (int, error) {
	if n <= 0 {
		return 0, ErrNoWeights
	}
	return int(Draw(seed, nonce) % uint64(n)), nil
}

// EliminationSequence replays the full elimination timeline for n
// participants: round r removes index Draw(seed, r) mod remaining from the
// surviving candidates. The returned slice lists original indexes in
// elimination order; its last element is the survivor.
func EliminationSequence(seed string, n int) []int {
	remaining := make([]int, n)
	for i := range remaining {
		remaining[i] = i
	}

	sequence := make([]int, 0, n)
	for round := uint64(1); len(remaining) > 1; round++ {
		victim := int(Draw(seed, round) % uint64(len(remaining)))
		sequence = append(sequence, remaining[victim])
		remaining = append(remaining[:victim], remaining[victim+1:]...)
	}

	return append(sequence, remaining...)
}
