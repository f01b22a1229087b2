// Package rank orders class indices by their score.
package rank

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/cyclopcam/edgeclassify/pkg/nn"
)

// Rank writes into indices[:len(scores)] the class indices sorted by descending score.
// Equal scores keep ascending class order, so the result is identical to a stable
// adjacent-swap sort. The sort runs in place on the caller's storage.
// NaN scores sort after every real score.
func Rank(scores []float32, indices []int) error {
	n := len(scores)
	if n == 0 {
		return nn.ErrEmptyInput
	}
	if len(indices) < n {
		return fmt.Errorf("%w: %v scores, but only %v index slots", nn.ErrIndexOutOfRange, n, len(indices))
	}
	idx := indices[:n]
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		return cmp.Compare(scores[b], scores[a])
	})
	return nil
}

// Ranking is the ordering of one cycle's scores.
// The index storage is allocated once, and reused every cycle.
type Ranking struct {
	storage []int
	indices []int
	scores  []float32
}

// Create a ranking that can hold up to 'capacity' classes
func NewRanking(capacity int) *Ranking {
	return &Ranking{
		storage: make([]int, capacity),
	}
}

// Update re-ranks for a new cycle. 'scores' is retained (not copied) until the next Update.
func (r *Ranking) Update(scores []float32) error {
	r.indices = r.storage[:0]
	r.scores = nil
	if err := Rank(scores, r.storage); err != nil {
		return err
	}
	r.indices = r.storage[:len(scores)]
	r.scores = scores
	return nil
}

// Number of ranked classes
func (r *Ranking) Len() int {
	return len(r.indices)
}

// At returns the class and score at position 'rank' (0 = best)
func (r *Ranking) At(rank int) (class int, score float32, err error) {
	if rank < 0 || rank >= len(r.indices) {
		return 0, 0, fmt.Errorf("%w: rank %v of %v", nn.ErrIndexOutOfRange, rank, len(r.indices))
	}
	class = r.indices[rank]
	return class, r.scores[class], nil
}

// Indices returns the ranked class indices. Only valid until the next Update.
func (r *Ranking) Indices() []int {
	return r.indices
}
