package perfstats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTimeAccumulator(t *testing.T) {
	a := TimeAccumulator{}
	require.Equal(t, time.Duration(0), a.Average())
	a.AddSample(2 * time.Millisecond)
	a.AddSample(6 * time.Millisecond)
	a.AddSample(4 * time.Millisecond)
	require.Equal(t, 4*time.Millisecond, a.Average())
	require.Equal(t, 6*time.Millisecond, a.Max)
	require.Equal(t, 4*time.Millisecond, a.Last)
	a.Reset()
	require.Equal(t, int64(0), a.Samples)
}

func TestStages(t *testing.T) {
	s := NewStages("snapshot", "classify")
	s.AddSample("classify", time.Millisecond)
	s.AddSample("render", 3*time.Millisecond)
	snap := s.Snapshot()
	require.Len(t, snap, 3)
	require.Equal(t, "snapshot", snap[0].Name)
	require.Equal(t, int64(0), snap[0].Samples)
	require.Equal(t, "classify", snap[1].Name)
	require.Equal(t, 1.0, snap[1].AverageMS)
	require.Equal(t, "render", snap[2].Name)
	require.Equal(t, 3.0, snap[2].MaxMS)
	require.Equal(t, int64(1), s.Get("render").Samples)

	s.Reset()
	require.Equal(t, int64(0), s.Get("render").Samples)
}

func TestAccumulator(t *testing.T) {
	a := Accumulator{}
	a.AddSample(0.5)
	a.AddSample(1.0)
	require.Equal(t, 0.75, a.Average())
}
