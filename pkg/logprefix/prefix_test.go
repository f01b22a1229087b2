package logprefix

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memLog struct {
	lines  []string
	closed bool
}

func (m *memLog) Close()                                    { m.closed = true }
func (m *memLog) Debugf(format string, a ...interface{})    { m.add("D", format, a...) }
func (m *memLog) Infof(format string, a ...interface{})     { m.add("I", format, a...) }
func (m *memLog) Warnf(format string, a ...interface{})     { m.add("W", format, a...) }
func (m *memLog) Errorf(format string, a ...interface{})    { m.add("E", format, a...) }
func (m *memLog) Criticalf(format string, a ...interface{}) { m.add("C", format, a...) }
func (m *memLog) add(level, format string, a ...interface{}) {
	m.lines = append(m.lines, level+" "+fmt.Sprintf(format, a...))
}

func TestPrefix(t *testing.T) {
	m := &memLog{}
	p := NewSubsystem(m, "Monitor")
	p.Infof("cycle %v", 3)
	p.Errorf("broken")
	p.Warnf("%v%%", 50)
	require.Equal(t, []string{"I Monitor: cycle 3", "E Monitor: broken", "W Monitor: 50%"}, m.lines)

	// The shared log outlives the subsystem
	p.Close()
	require.False(t, m.closed)
}

func TestErrorLimiter(t *testing.T) {
	m := &memLog{}
	e := NewErrorLimiter(m, 15*time.Second)
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.True(t, e.ErrorfAt(t0, "fail %v", 1))
	require.False(t, e.ErrorfAt(t0.Add(time.Second), "fail %v", 2))
	require.False(t, e.ErrorfAt(t0.Add(10*time.Second), "fail %v", 3))
	require.True(t, e.ErrorfAt(t0.Add(16*time.Second), "fail %v", 4))
	require.Equal(t, []string{"E fail 1", "E fail 4", "E (2 similar errors suppressed)"}, m.lines)

	e.Reset()
	require.True(t, e.ErrorfAt(t0.Add(17*time.Second), "fail %v", 5))
}
