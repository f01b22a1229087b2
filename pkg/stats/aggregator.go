// Package stats smooths classifier output across frames.
//
// A small fixed table of slots tracks the classes that have recently ranked near
// the top. Every cycle, each of the top K classes adds its score to its slot,
// and slots that were not refreshed decay towards zero. A class that wins several
// consecutive frames therefore beats a class that wins a single noisy frame.
package stats

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/cyclopcam/edgeclassify/pkg/nn"
)

const DefaultTrackedSlots = 3

// NoClass marks an unassigned slot, and NoSlot an absent summary position
const (
	NoClass = -1
	NoSlot  = -1
)

// Entry is one of the top ranked results of the current frame
type Entry struct {
	Rank  int     // Position in the frame's ranking (0 = best)
	Class int     // Index into the label table
	Prob  float32 // Instantaneous score
}

// Slot accumulates evidence for a single class
type Slot struct {
	Class   int     `json:"class"`   // NoClass if the slot has never been claimed
	Sum     float32 `json:"sum"`     // Accumulated score. Never negative.
	Prob    float32 `json:"prob"`    // Most recent instantaneous score
	Rank    int     `json:"rank"`    // Rank of the entry that last updated this slot
	Updated bool    `json:"updated"` // True if this slot was touched during the most recent cycle
}

func (s *Slot) Empty() bool {
	return s.Class == NoClass
}

// Summary identifies the best and second best slots after a cycle
type Summary struct {
	First     int // Slot with the highest sum, or NoSlot
	Second    int // Slot with the highest sum strictly below First, or NoSlot
	Evictions int // Number of slots that were reassigned to a new class during the cycle
}

// Aggregator is the cross-frame slot table.
// It is not safe for concurrent use. Cycles must be fed to it one at a time,
// because eviction and decay depend on the order in which cycles arrive.
type Aggregator struct {
	// If not nil, OnEvict is called whenever a slot is reassigned from 'old' to a new class
	OnEvict func(slot int, old Slot, class int)

	slots []Slot
}

// Create an aggregator with k slots
func NewAggregator(k int) (*Aggregator, error) {
	if k < 1 {
		return nil, fmt.Errorf("Aggregator needs at least 1 slot, not %v", k)
	}
	a := &Aggregator{
		slots: make([]Slot, k),
	}
	a.Reset()
	return a, nil
}

// Number of slots
func (a *Aggregator) K() int {
	return len(a.slots)
}

// Clear all slots
func (a *Aggregator) Reset() {
	for i := range a.slots {
		a.slots[i] = Slot{Class: NoClass}
	}
}

// Slots returns a copy of the slot table
func (a *Aggregator) Slots() []Slot {
	return append([]Slot(nil), a.slots...)
}

// Slot returns a copy of slot i
func (a *Aggregator) Slot(i int) (Slot, error) {
	if i < 0 || i >= len(a.slots) {
		return Slot{}, fmt.Errorf("%w: slot %v of %v", nn.ErrIndexOutOfRange, i, len(a.slots))
	}
	return a.slots[i], nil
}

// Update runs one cycle over the top ranked entries of a frame.
// Only the first K entries are considered.
func (a *Aggregator) Update(entries []Entry) (Summary, error) {
	k := len(a.slots)
	if len(entries) > k {
		entries = entries[:k]
	}

	// Reject the whole cycle before touching any slot
	for _, e := range entries {
		if e.Class < 0 {
			return Summary{First: NoSlot, Second: NoSlot}, fmt.Errorf("%w: class %v at rank %v", nn.ErrIndexOutOfRange, e.Class, e.Rank)
		}
	}

	for i := range a.slots {
		a.slots[i].Updated = false
	}

	evictions := 0
	for _, e := range entries {
		// Phase 1: existing slot for this class, or an empty slot
		j := a.matchOrVacancy(e.Class)
		if j != NoSlot && !a.slots[j].Empty() {
			s := &a.slots[j]
			s.Sum = math32.Max(0, s.Sum+e.Prob)
			s.Prob = e.Prob
			s.Rank = e.Rank
			s.Updated = true
			continue
		}
		// Phase 2: no match and no vacancy, so evict the weakest slot
		if j == NoSlot {
			j = a.weakest()
			evictions++
			if a.OnEvict != nil {
				a.OnEvict(j, a.slots[j], e.Class)
			}
		}
		a.slots[j] = Slot{
			Class:   e.Class,
			Sum:     math32.Max(0, e.Prob),
			Prob:    e.Prob,
			Rank:    e.Rank,
			Updated: true,
		}
	}

	summary := a.best()
	summary.Evictions = evictions

	a.decay()
	return summary, nil
}

// Returns the slot already tracking 'class', otherwise the first empty slot, otherwise NoSlot
func (a *Aggregator) matchOrVacancy(class int) int {
	vacancy := NoSlot
	for j := range a.slots {
		if a.slots[j].Class == class {
			return j
		}
		if vacancy == NoSlot && a.slots[j].Empty() {
			vacancy = j
		}
	}
	return vacancy
}

// Returns the slot with the lowest sum, preferring the lowest position on ties.
// Slots touched earlier in this cycle are candidates too.
func (a *Aggregator) weakest() int {
	j := 0
	for i := 1; i < len(a.slots); i++ {
		if a.slots[i].Sum < a.slots[j].Sum {
			j = i
		}
	}
	return j
}

func (a *Aggregator) best() Summary {
	s := Summary{First: NoSlot, Second: NoSlot}
	for i := range a.slots {
		if a.slots[i].Empty() {
			continue
		}
		if s.First == NoSlot || a.slots[i].Sum > a.slots[s.First].Sum {
			s.First = i
		}
	}
	if s.First == NoSlot {
		return s
	}
	max := a.slots[s.First].Sum
	for i := range a.slots {
		if a.slots[i].Empty() || a.slots[i].Sum >= max {
			continue
		}
		if s.Second == NoSlot || a.slots[i].Sum > a.slots[s.Second].Sum {
			s.Second = i
		}
	}
	return s
}

// Stale slots lose 2/K of their evidence per cycle
func (a *Aggregator) decay() {
	k := float32(len(a.slots))
	for i := range a.slots {
		s := &a.slots[i]
		if s.Updated || s.Empty() {
			continue
		}
		s.Sum = math32.Max(0, s.Sum-s.Sum*2/k)
	}
}
