package stats

import (
	"math/rand"
	"testing"

	"github.com/cyclopcam/edgeclassify/pkg/nn"
	"github.com/stretchr/testify/require"
)

func entries(classProbs ...float32) []Entry {
	// classProbs is pairs of (class, prob)
	out := []Entry{}
	for i := 0; i < len(classProbs); i += 2 {
		out = append(out, Entry{Rank: i / 2, Class: int(classProbs[i]), Prob: classProbs[i+1]})
	}
	return out
}

func checkInvariants(t *testing.T, a *Aggregator) {
	seen := map[int]bool{}
	for _, s := range a.Slots() {
		require.GreaterOrEqual(t, s.Sum, float32(0))
		if s.Empty() {
			continue
		}
		require.False(t, seen[s.Class], "class %v is tracked twice", s.Class)
		seen[s.Class] = true
	}
}

func TestNewAggregator(t *testing.T) {
	_, err := NewAggregator(0)
	require.Error(t, err)
	a, err := NewAggregator(3)
	require.NoError(t, err)
	require.Equal(t, 3, a.K())
	for _, s := range a.Slots() {
		require.True(t, s.Empty())
	}
	_, err = a.Slot(3)
	require.ErrorIs(t, err, nn.ErrIndexOutOfRange)
}

func TestConsistentWinner(t *testing.T) {
	const A, B, C = 7, 3, 5
	a, _ := NewAggregator(3)
	var sum Summary
	var err error
	for _, p := range []float32{0.4, 0.5, 0.6} {
		sum, err = a.Update(entries(A, p, B, 0.2, C, 0.1))
		require.NoError(t, err)
		checkInvariants(t, a)
	}
	first, _ := a.Slot(sum.First)
	require.Equal(t, A, first.Class)
	require.InDelta(t, 1.5, first.Sum, 1e-6)
	require.Equal(t, float32(0.6), first.Prob)
	require.Equal(t, 0, first.Rank)
	second, _ := a.Slot(sum.Second)
	require.Equal(t, B, second.Class)
	require.Equal(t, 0, sum.Evictions)
}

func TestClaimOrder(t *testing.T) {
	a, _ := NewAggregator(3)
	sum, err := a.Update(entries(4, 0.5, 2, 0.3, 9, 0.1))
	require.NoError(t, err)
	slots := a.Slots()
	require.Equal(t, 4, slots[0].Class)
	require.Equal(t, 2, slots[1].Class)
	require.Equal(t, 9, slots[2].Class)
	require.Equal(t, 1, slots[1].Rank)
	require.Equal(t, 0, sum.First)
	require.Equal(t, 1, sum.Second)
	for _, s := range slots {
		require.True(t, s.Updated)
	}
}

func TestOnlyTopKConsidered(t *testing.T) {
	a, _ := NewAggregator(2)
	_, err := a.Update(entries(0, 0.5, 1, 0.3, 2, 0.1))
	require.NoError(t, err)
	slots := a.Slots()
	require.Equal(t, 0, slots[0].Class)
	require.Equal(t, 1, slots[1].Class)
}

func TestDecay(t *testing.T) {
	a, _ := NewAggregator(3)
	a.Update(entries(0, 0.9, 1, 0.6, 2, 0.3))
	// Only class 0 and 1 appear again; class 2 decays
	a.Update(entries(0, 0.9, 1, 0.6))
	s2, _ := a.Slot(2)
	require.False(t, s2.Updated)
	require.InDelta(t, 0.1, s2.Sum, 1e-6) // 0.3 - 2*0.3/3
	a.Update(entries(0, 0.9, 1, 0.6))
	s2b, _ := a.Slot(2)
	require.LessOrEqual(t, s2b.Sum, s2.Sum)
	require.Equal(t, 2, s2b.Class)

	// With two slots the decay wipes a stale slot to zero in one cycle
	b, _ := NewAggregator(2)
	b.Update(entries(0, 0.9, 1, 0.6))
	b.Update(entries(0, 0.9))
	s, _ := b.Slot(1)
	require.Equal(t, float32(0), s.Sum)

	// With a single slot the raw decay would go negative, but is clamped at zero
	c, _ := NewAggregator(1)
	c.Update(entries(0, 0.9))
	c.Update(nil)
	s, _ = c.Slot(0)
	require.Equal(t, float32(0), s.Sum)
}

func TestEviction(t *testing.T) {
	a, _ := NewAggregator(3)
	evicted := []int{}
	a.OnEvict = func(slot int, old Slot, class int) {
		require.Equal(t, 2, old.Class)
		require.Equal(t, 8, class)
		evicted = append(evicted, slot)
	}
	a.Update(entries(0, 0.9, 1, 0.6, 2, 0.3))
	// sums are now 0.9, 0.6, 0.3. A new class must evict the lowest (slot 2).
	sum, err := a.Update(entries(0, 0.9, 1, 0.6, 8, 0.2))
	require.NoError(t, err)
	require.Equal(t, 1, sum.Evictions)
	require.Equal(t, []int{2}, evicted)
	s, _ := a.Slot(2)
	require.Equal(t, 8, s.Class)
	require.InDelta(t, 0.2, s.Sum, 1e-6)
	require.Equal(t, float32(0.2), s.Prob)
	require.Equal(t, 2, s.Rank)
	require.True(t, s.Updated)
	checkInvariants(t, a)
}

func TestEvictionTieBreak(t *testing.T) {
	a, _ := NewAggregator(3)
	a.Update(entries(0, 0.5, 1, 0.5, 2, 0.5))
	// Every slot has the same sum, so the lowest position loses
	a.Update(entries(3, 0.7))
	s, _ := a.Slot(0)
	require.Equal(t, 3, s.Class)
	s1, _ := a.Slot(1)
	require.Equal(t, 1, s1.Class)
}

func TestEvictionCanReplaceSlotTouchedThisCycle(t *testing.T) {
	a, _ := NewAggregator(2)
	a.Update(entries(0, 0.1, 1, 0.9))
	// Class 0 is refreshed first, but remains the weakest slot, so the
	// newcomer evicts it even though it was updated earlier in this cycle.
	sum, err := a.Update(entries(0, 0.05, 5, 0.5))
	require.NoError(t, err)
	require.Equal(t, 1, sum.Evictions)
	s0, _ := a.Slot(0)
	require.Equal(t, 5, s0.Class)
	require.Equal(t, 1, sum.First)
	require.Equal(t, 0, sum.Second)
	// Slot 1 was not touched, so it decays after the summary is taken
	s1, _ := a.Slot(1)
	require.Equal(t, float32(0), s1.Sum)
	checkInvariants(t, a)
}

func TestSecondRequiresStrictlyLowerSum(t *testing.T) {
	a, _ := NewAggregator(3)
	sum, _ := a.Update(entries(0, 0.5, 1, 0.5))
	require.Equal(t, 0, sum.First)
	require.Equal(t, NoSlot, sum.Second)

	b, _ := NewAggregator(3)
	sum, _ = b.Update(entries(0, 0.5))
	require.Equal(t, 0, sum.First)
	require.Equal(t, NoSlot, sum.Second)

	c, _ := NewAggregator(3)
	sum, _ = c.Update(nil)
	require.Equal(t, NoSlot, sum.First)
	require.Equal(t, NoSlot, sum.Second)

	// first found wins among equal runners-up
	d, _ := NewAggregator(3)
	sum, _ = d.Update(entries(0, 0.9, 1, 0.4, 2, 0.4))
	require.Equal(t, 0, sum.First)
	require.Equal(t, 1, sum.Second)
}

func TestNegativeScoresNeverGoBelowZero(t *testing.T) {
	a, _ := NewAggregator(3)
	a.Update(entries(0, -2, 1, -3))
	a.Update(entries(0, 0.5, 1, -1))
	checkInvariants(t, a)
	s, _ := a.Slot(0)
	require.Equal(t, float32(0.5), s.Sum)
}

func TestInvalidClass(t *testing.T) {
	a, _ := NewAggregator(3)
	_, err := a.Update([]Entry{{Rank: 0, Class: -4, Prob: 1}})
	require.ErrorIs(t, err, nn.ErrIndexOutOfRange)
}

func TestInvalidClassLeavesTableUntouched(t *testing.T) {
	a, _ := NewAggregator(3)
	_, err := a.Update(entries(0, 0.9, 1, 0.6, 2, 0.3))
	require.NoError(t, err)
	before := a.Slots()

	// The bad class comes after a valid one, which must not be applied either
	_, err = a.Update(entries(7, 0.8, -1, 0.1))
	require.ErrorIs(t, err, nn.ErrIndexOutOfRange)
	require.Equal(t, before, a.Slots())
}

func TestRandomCyclesKeepInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for _, k := range []int{1, 2, 3, 5} {
		a, _ := NewAggregator(k)
		for cycle := 0; cycle < 500; cycle++ {
			// pick k distinct classes from a pool of 8
			perm := rng.Perm(8)[:k]
			es := make([]Entry, k)
			for i, c := range perm {
				es[i] = Entry{Rank: i, Class: c, Prob: rng.Float32()}
			}
			before := a.Slots()
			_, err := a.Update(es)
			require.NoError(t, err)
			checkInvariants(t, a)
			after := a.Slots()
			require.Len(t, after, k)
			for i := range after {
				if !after[i].Updated && !before[i].Empty() {
					require.LessOrEqual(t, after[i].Sum, before[i].Sum)
				}
			}
		}
	}
}

func TestEvictedSlotHasMinimumSum(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	a, _ := NewAggregator(3)
	for cycle := 0; cycle < 300; cycle++ {
		before := a.Slots()
		class := rng.Intn(10)
		tracked := false
		full := true
		for _, s := range before {
			if s.Class == class {
				tracked = true
			}
			if s.Empty() {
				full = false
			}
		}
		sum, err := a.Update([]Entry{{Rank: 0, Class: class, Prob: rng.Float32()}})
		require.NoError(t, err)
		if tracked || !full {
			require.Equal(t, 0, sum.Evictions)
			continue
		}
		require.Equal(t, 1, sum.Evictions)
		after := a.Slots()
		for i := range after {
			if after[i].Class == class {
				for j := range before {
					require.LessOrEqual(t, before[i].Sum, before[j].Sum)
				}
			}
		}
	}
}
