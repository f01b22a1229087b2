package camera

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEstimateFPS(t *testing.T) {
	require.Equal(t, 0.0, EstimateFPS(nil))

	intervals := []time.Duration{
		66 * time.Millisecond,
		67 * time.Millisecond,
		66 * time.Millisecond,
	}
	require.Equal(t, 15.2, EstimateFPS(intervals))

	intervals = []time.Duration{
		100 * time.Millisecond,
		101 * time.Millisecond,
		99 * time.Millisecond,
		5000 * time.Millisecond,
	}
	require.Equal(t, 9.9, EstimateFPS(intervals))

	intervals = []time.Duration{
		2000 * time.Millisecond,
		2001 * time.Millisecond,
		1999 * time.Millisecond,
	}
	require.Equal(t, 0.5, EstimateFPS(intervals))
}

func TestRateMeter(t *testing.T) {
	r := NewRateMeter(8)
	require.Equal(t, 0.0, r.FPS())
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 20; i++ {
		r.Tick(t0.Add(time.Duration(i) * 200 * time.Millisecond))
	}
	require.Equal(t, 5.0, r.FPS())
}
