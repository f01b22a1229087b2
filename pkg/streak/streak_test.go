package streak

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTargetClass(t *testing.T) {
	c, err := NewCounter(0, 10)
	require.NoError(t, err)
	for i := 1; i <= 10; i++ {
		s := c.Observe(0)
		require.Equal(t, i, s.Count)
		require.False(t, s.Reached)
	}
	s := c.Observe(0)
	require.True(t, s.Reached)
	require.True(t, s.Started)
	s = c.Observe(0)
	require.True(t, s.Reached)
	require.False(t, s.Started)
	require.True(t, c.Reached())

	// A long run does not overflow
	for i := 0; i < 1000; i++ {
		c.Observe(0)
	}
	require.Equal(t, 11, c.Count())

	s = c.Observe(-1)
	require.False(t, s.Reached)
	require.Equal(t, 0, s.Count)
	require.Equal(t, -1, s.Class)
}

func TestOtherClassResets(t *testing.T) {
	c, _ := NewCounter(2, 1)
	c.Observe(2)
	s := c.Observe(1)
	require.Equal(t, 0, s.Count)
	c.Observe(2)
	s = c.Observe(2)
	require.True(t, s.Started)
}

func TestAnyClass(t *testing.T) {
	c, _ := NewCounter(AnyClass, 2)
	c.Observe(4)
	c.Observe(4)
	s := c.Observe(5)
	require.Equal(t, 5, s.Class)
	require.Equal(t, 1, s.Count)
	c.Observe(5)
	s = c.Observe(5)
	require.True(t, s.Started)
	require.Equal(t, 5, s.Class)
}

func TestZeroLength(t *testing.T) {
	c, _ := NewCounter(AnyClass, 0)
	s := c.Observe(3)
	require.True(t, s.Reached)
	require.True(t, s.Started)
	s = c.Observe(4)
	require.True(t, s.Started)
}

func TestInvalid(t *testing.T) {
	_, err := NewCounter(-2, 1)
	require.Error(t, err)
	_, err = NewCounter(0, -1)
	require.Error(t, err)
}
