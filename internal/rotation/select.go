package rotation

import (
	"math/rand/v2"

	"github.com/google/uuid"
)

// Candidate is one pool entry offered to the selector.
type Candidate struct {
	ID     uuid.UUID
	Weight int
}

// IntNSource supplies uniform integers in [0, n). *rand.Rand satisfies it.
type IntNSource interface {
	IntN(n int) int
}

type globalSource struct{}

func (globalSource) IntN(n int) int { return rand.IntN(n) }

// SelectWeighted draws up to count distinct candidates, each draw picking a
// remaining candidate with probability proportional to its weight. If the
// remaining weights sum to zero or less the draw is uniform. The input slice
// is never modified; every draw works on a fresh, shorter copy.
func SelectWeighted(candidates []Candidate, count int, rng IntNSource) []uuid.UUID {
	if rng == nil {
		rng = globalSource{}
	}
	if count > len(candidates) {
		count = len(candidates)
	}
	if count <= 0 {
		return []uuid.UUID{}
	}

	selected := make([]uuid.UUID, 0, count)
	remaining := candidates
	for len(selected) < count && len(remaining) > 0 {
		i := drawIndex(remaining, rng)
		selected = append(selected, remaining[i].ID)
		remaining = without(remaining, i)
	}
	return selected
}

// drawIndex runs one roulette-wheel draw over cands.
func drawIndex(cands []Candidate, rng IntNSource) int {
	total := 0
	for _, c := range cands {
		total += c.Weight
	}
	if total <= 0 {
		return rng.IntN(len(cands))
	}

	draw := rng.IntN(total)
	cumulative := 0
	for i, c := range cands {
		cumulative += c.Weight
		if draw < cumulative {
			return i
		}
	}
	// Only reachable with negative weights mixed into a positive total.
	return len(cands) - 1
}

func without(cands []Candidate, i int) []Candidate {
	out := make([]Candidate, 0, len(cands)-1)
	out = append(out, cands[:i]...)
	return append(out, cands[i+1:]...)
}
