package gen

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDrainChannel(t *testing.T) {
	ch := make(chan int, 4)
	require.Equal(t, []int{}, DrainChannelIntoSlice(ch))
	require.True(t, TrySend(ch, 1))
	require.True(t, TrySend(ch, 2))
	require.Equal(t, []int{1, 2}, DrainChannelIntoSlice(ch))
	require.Equal(t, 0, len(ch))
}

func TestTrySendFull(t *testing.T) {
	ch := make(chan string, 1)
	require.True(t, TrySend(ch, "a"))
	require.False(t, TrySend(ch, "b"))
	require.Equal(t, "a", <-ch)
}

func TestClamp(t *testing.T) {
	require.Equal(t, 0, Clamp(-5, 0, 10))
	require.Equal(t, 10, Clamp(50, 0, 10))
	require.Equal(t, 3, Clamp(3, 0, 10))
	require.Equal(t, float32(0.5), Clamp(float32(0.5), 0, 1))
}
