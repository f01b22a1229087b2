package monitor

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/bmharper/cimg/v2"
	"github.com/cyclopcam/edgeclassify/pkg/classify"
	"github.com/cyclopcam/edgeclassify/pkg/decide"
	"github.com/cyclopcam/edgeclassify/pkg/nn"
	"github.com/cyclopcam/edgeclassify/pkg/nnaccel"
	"github.com/cyclopcam/edgeclassify/pkg/overlay"
	"github.com/cyclopcam/edgeclassify/pkg/streak"
	"github.com/cyclopcam/edgeclassify/server/camera"
	"github.com/cyclopcam/edgeclassify/server/eventdb"
	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/require"
)

type testRig struct {
	monitor *Monitor
	events  *eventdb.EventDB
	camera  *flakyCamera
}

func frames(n int, scores []float32) []*nn.ScoreFrame {
	out := []*nn.ScoreFrame{}
	for i := 0; i < n; i++ {
		out = append(out, &nn.ScoreFrame{Frame: i, Scores: scores})
	}
	return out
}

// flakyCamera fails every snapshot while 'broken' is set
type flakyCamera struct {
	camera.Camera
	broken bool
}

func (c *flakyCamera) Snapshot() (*cimg.Image, error) {
	if c.broken {
		return nil, errors.New("sensor unplugged")
	}
	return c.Camera.Snapshot()
}

func newRig(t *testing.T, device func(config *nn.ModelConfig) nnaccel.Device, timeout time.Duration) *testRig {
	log := logs.NewTestingLog(t)
	config := &nn.ModelConfig{Width: 16, Height: 16, Classes: []string{"logo", "background", "hand"}}
	labels, err := nn.NewLabelTable(config.Classes)
	require.NoError(t, err)
	cfg := classify.DefaultConfig()
	cfg.Threshold = 0.5
	cls, err := classify.New(log, labels, cfg, nil)
	require.NoError(t, err)
	pattern, err := camera.NewPatternCamera(64, 48)
	require.NoError(t, err)
	cam := &flakyCamera{Camera: pattern}
	renderer, err := overlay.NewRenderer(overlay.DefaultLayout())
	require.NoError(t, err)
	counter, err := streak.NewCounter(0, 2)
	require.NoError(t, err)
	events, err := eventdb.Open(log, filepath.Join(t.TempDir(), "events.sqlite"))
	require.NoError(t, err)
	t.Cleanup(events.Close)

	m, err := NewMonitor(log, Options{
		Classifier:       cls,
		Device:           device(config),
		Camera:           cam,
		Renderer:         renderer,
		Streak:           counter,
		StreakMessage:    "Well done",
		Events:           events,
		CycleInterval:    time.Millisecond,
		InferenceTimeout: timeout,
		HistorySize:      5,
	})
	require.NoError(t, err)
	return &testRig{monitor: m, events: events, camera: cam}
}

func replay(t *testing.T, rec *nn.ScoreRecording, latency time.Duration) func(config *nn.ModelConfig) nnaccel.Device {
	return func(config *nn.ModelConfig) nnaccel.Device {
		d, err := nnaccel.NewReplayDevice(config, rec, latency)
		require.NoError(t, err)
		return d
	}
}

func TestStreakIsRecorded(t *testing.T) {
	rec := &nn.ScoreRecording{Frames: frames(4, []float32{0.9, 0.05, 0.05})}
	rig := newRig(t, replay(t, rec, 0), time.Second)
	m := rig.monitor

	for i := 0; i < 4; i++ {
		r := m.RunCycle()
		require.Empty(t, r.Skipped)
		require.Equal(t, "logo", r.Decision.Primary.Label)
		require.Equal(t, []string{"logo (90.00%)", "background (5.00%)"}, r.Lines)
		require.Equal(t, min(i+1, 3), r.Streak.Count)
		require.Equal(t, i == 2, r.Streak.Started)
	}
	events, err := rig.events.Recent(10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "logo", events[0].Label)
	require.Equal(t, 3, events[0].Length)

	perf := m.Perf()
	require.EqualValues(t, 4, perf.Cycles)
	require.EqualValues(t, 1, perf.Streaks)
	require.Equal(t, 0, perf.LastPrediction)
	require.InDelta(t, 0.9, perf.AverageConfidence, 1e-6)

	jpg, err := m.ScreenJPEG()
	require.NoError(t, err)
	require.Equal(t, []byte{0xff, 0xd8}, jpg[:2])
}

func TestFailedFrameIsSkipped(t *testing.T) {
	rec := &nn.ScoreRecording{Frames: []*nn.ScoreFrame{
		{Frame: 0, Scores: []float32{0.1, 0.8, 0.1}},
		{Frame: 1, Failed: true},
	}}
	rig := newRig(t, replay(t, rec, 0), time.Second)
	m := rig.monitor

	first := m.RunCycle()
	require.Equal(t, "background", first.Decision.Primary.Label)
	second := m.RunCycle()
	require.NotEmpty(t, second.Skipped)
	// The previous decision stays on screen
	require.Same(t, first, m.Latest())
	require.Len(t, m.History(), 2)
	require.EqualValues(t, 1, m.Perf().Skipped)
}

func TestInferenceTimeout(t *testing.T) {
	rec := &nn.ScoreRecording{Frames: frames(1, []float32{0.9, 0.05, 0.05})}
	rig := newRig(t, replay(t, rec, 200*time.Millisecond), 10*time.Millisecond)
	r := rig.monitor.RunCycle()
	require.Equal(t, ErrInferenceTimeout.Error(), r.Skipped)
	require.Nil(t, rig.monitor.Latest())
}

func TestModelNotLoaded(t *testing.T) {
	rig := newRig(t, func(config *nn.ModelConfig) nnaccel.Device { return nnaccel.NewNullDevice(config) }, time.Second)
	r := rig.monitor.RunCycle()
	require.Equal(t, nn.StatusNotLoaded.String(), r.Status)
	require.False(t, r.Decision.Committed())
	require.Equal(t, decide.OutcomeNoPrediction.String(), r.Outcome)
	require.Equal(t, []string{overlay.MsgLoading}, r.Lines)
	require.Equal(t, decide.NoPrediction, r.Streak.Class)
}

func TestHistoryIsBounded(t *testing.T) {
	rec := &nn.ScoreRecording{Frames: frames(1, []float32{0.2, 0.2, 0.6})}
	rig := newRig(t, replay(t, rec, 0), time.Second)
	for i := 0; i < 20; i++ {
		rig.monitor.RunCycle()
	}
	h := rig.monitor.History()
	require.Len(t, h, 8)
	require.EqualValues(t, 13, h[0].ID)
	require.EqualValues(t, 20, h[7].ID)
}

func TestWatchers(t *testing.T) {
	rec := &nn.ScoreRecording{Frames: frames(1, []float32{0.2, 0.2, 0.6})}
	rig := newRig(t, replay(t, rec, 0), time.Second)
	m := rig.monitor
	ch := m.AddWatcher()
	m.Start()
	r := <-ch
	require.Equal(t, "hand", r.Decision.Primary.Label)
	m.RemoveWatcher(ch)
	m.Close()
	require.Greater(t, m.Perf().Cycles, int64(0))
}

func TestFailedSnapshotIsSkipped(t *testing.T) {
	rec := &nn.ScoreRecording{Frames: frames(1, []float32{0.9, 0.05, 0.05})}
	rig := newRig(t, replay(t, rec, 0), time.Second)
	m := rig.monitor

	first := m.RunCycle()
	require.Equal(t, "logo", first.Decision.Primary.Label)
	require.Equal(t, 1, first.Streak.Count)

	rig.camera.broken = true
	for i := 0; i < 3; i++ {
		r := m.RunCycle()
		require.NotEmpty(t, r.Skipped)
		require.Nil(t, r.Decision.Primary)
		require.Nil(t, r.Streak)
	}
	require.Same(t, first, m.Latest())
	require.EqualValues(t, 3, m.Perf().Skipped)

	// The streak resumes where it left off, and nothing was recorded for the skipped cycles
	rig.camera.broken = false
	r := m.RunCycle()
	require.Equal(t, 2, r.Streak.Count)
	events, err := rig.events.Recent(10)
	require.NoError(t, err)
	require.Empty(t, events)
}
