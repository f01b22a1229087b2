package monitor

import (
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmharper/cimg/v2"
	"github.com/bmharper/ringbuffer"
	"github.com/cyclopcam/edgeclassify/pkg/classify"
	"github.com/cyclopcam/edgeclassify/pkg/decide"
	"github.com/cyclopcam/edgeclassify/pkg/logprefix"
	"github.com/cyclopcam/edgeclassify/pkg/nn"
	"github.com/cyclopcam/edgeclassify/pkg/nnaccel"
	"github.com/cyclopcam/edgeclassify/pkg/overlay"
	"github.com/cyclopcam/edgeclassify/pkg/perfstats"
	"github.com/cyclopcam/edgeclassify/pkg/streak"
	"github.com/cyclopcam/edgeclassify/server/camera"
	"github.com/cyclopcam/edgeclassify/server/eventdb"
	"github.com/cyclopcam/logs"
)

// monitor runs the classification cycle on camera frames, and publishes the results

// The model did not finish within Options.InferenceTimeout
var ErrInferenceTimeout = errors.New("Timeout waiting for NN result")

// The camera returned neither a frame nor an error
var ErrNoFrame = errors.New("Camera returned no frame")

// Names of the stages that we time
const (
	StageSnapshot  = "snapshot"
	StageInference = "inference"
	StageClassify  = "classify"
	StageRender    = "render"
)

// StreakRecorder persists streak events
type StreakRecorder interface {
	AddStreak(at time.Time, d decide.Decision, length int, mode decide.Mode, threshold float32) (*eventdb.Event, error)
}

type Options struct {
	Classifier       *classify.Classifier
	Device           nnaccel.Device
	Camera           camera.Camera
	Renderer         *overlay.Renderer
	Streak           *streak.Counter // nil to disable streaks
	StreakMessage    string          // Banner shown while a streak is active
	Events           StreakRecorder  // nil to not record streaks
	CycleInterval    time.Duration
	InferenceTimeout time.Duration
	HistorySize      int // Rounded up to a power of 2
}

// CycleRecord is the published outcome of one cycle
type CycleRecord struct {
	ID       int64           `json:"id"`
	Time     time.Time       `json:"time"`
	Status   string          `json:"status"`            // Model status at the start of the cycle
	Outcome  string          `json:"outcome,omitempty"` // "committed" or "no confident prediction"
	Decision decide.Decision `json:"decision"`          // Primary and secondary predictions
	Reason   string          `json:"reason,omitempty"`  // Why there is no primary prediction
	Lines    []string        `json:"lines"`             // Text shown on screen
	Streak   *streak.State   `json:"streak,omitempty"`  // nil if streaks are disabled
	Skipped  string          `json:"skipped,omitempty"` // If not empty, the model failed, and the cycle was skipped
	Error    string          `json:"error,omitempty"`   // The cycle was aborted with an internal error
}

// Monitor owns the classifier, so all cycles run through it, one at a time
type Monitor struct {
	Log logs.Log

	opt        Options
	input      *nnaccel.InputBuffer
	errLimiter *logprefix.ErrorLimiter
	stages     *perfstats.Stages
	rate       *camera.RateMeter
	confidence perfstats.Accumulator // Confidence of committed predictions

	mustStop      atomic.Bool // True if Close() has been called
	looperStopped chan bool   // Closed when the looper has stopped
	started       bool

	cycleLock sync.Mutex // Held for the duration of a cycle

	stateLock sync.RWMutex
	history   ringbuffer.RingP[*CycleRecord]
	latest    *CycleRecord
	screen    *cimg.Image
	nextID    int64
	nCycles   int64
	nSkipped  int64
	nAborted  int64
	nStreaks  int64

	watchersLock sync.RWMutex
	watchers     []chan *CycleRecord
}

func nextPowerOf2(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << int(math.Ceil(math.Log2(float64(n))))
}

func NewMonitor(logger logs.Log, opt Options) (*Monitor, error) {
	if opt.Classifier == nil || opt.Device == nil || opt.Camera == nil || opt.Renderer == nil {
		return nil, errors.New("Monitor requires a classifier, device, camera, and renderer")
	}
	if opt.InferenceTimeout <= 0 {
		opt.InferenceTimeout = 2 * time.Second
	}
	config := opt.Device.Config()
	input, err := nnaccel.NewInputBuffer(config.Width, config.Height)
	if err != nil {
		return nil, err
	}
	log := logprefix.NewSubsystem(logger, "Monitor")
	return &Monitor{
		Log:        log,
		opt:        opt,
		input:      input,
		errLimiter: logprefix.NewErrorLimiter(log, 15*time.Second),
		stages:     perfstats.NewStages(StageSnapshot, StageInference, StageClassify, StageRender),
		rate:       camera.NewRateMeter(32),
		history:    ringbuffer.NewRingP[*CycleRecord](nextPowerOf2(opt.HistorySize)),
	}, nil
}

// Start the cycle loop
func (m *Monitor) Start() {
	if m.started {
		return
	}
	m.started = true
	m.mustStop.Store(false)
	m.looperStopped = make(chan bool)
	go m.loop()
}

// Close the monitor object.
func (m *Monitor) Close() {
	m.Log.Infof("Shutting down")
	if m.started {
		m.mustStop.Store(true)
		<-m.looperStopped
		m.started = false
	}
	m.watchersLock.Lock()
	for _, ch := range m.watchers {
		close(ch)
	}
	m.watchers = nil
	m.watchersLock.Unlock()
	m.Log.Infof("Closed")
}

// Loop runs until Close()
func (m *Monitor) loop() {
	for !m.mustStop.Load() {
		start := time.Now()
		m.RunCycle()
		if wait := m.opt.CycleInterval - time.Since(start); wait > 0 {
			time.Sleep(wait)
		}
	}
	close(m.looperStopped)
}

// RunCycle runs a single cycle: snapshot, inference, classification, and render.
// This is called by the loop, but may also be called directly when the loop is not running.
func (m *Monitor) RunCycle() *CycleRecord {
	m.cycleLock.Lock()
	defer m.cycleLock.Unlock()

	now := time.Now()
	rec := &CycleRecord{Time: now}

	start := time.Now()
	frame, err := m.opt.Camera.Snapshot()
	m.stages.Since(StageSnapshot, start)

	status := m.opt.Device.Status()
	rec.Status = status.String()

	if err == nil && frame == nil {
		err = ErrNoFrame
	}
	if err != nil {
		// Nothing is classified, and the screen keeps showing the previous decision
		m.errLimiter.Errorf("Skipping cycle, camera snapshot failed: %v", err)
		rec.Skipped = err.Error()
		m.publish(rec, nil, true)
		return rec
	}

	var raw []byte
	if status == nn.StatusLoaded {
		start = time.Now()
		raw, err = m.infer(frame)
		m.stages.Since(StageInference, start)
		if err != nil {
			// The screen keeps showing the previous decision
			m.errLimiter.Errorf("Skipping cycle: %v", err)
			rec.Skipped = err.Error()
			m.publish(rec, nil, true)
			return rec
		}
	}

	start = time.Now()
	d, err := m.opt.Classifier.Cycle(status, raw)
	m.stages.Since(StageClassify, start)
	rec.Decision = d
	rec.Outcome = d.Outcome().String()
	if d.Reason != nil {
		rec.Reason = d.Reason.Error()
	}
	if err != nil {
		m.errLimiter.Errorf("Cycle aborted: %v", err)
		rec.Error = err.Error()
	}
	if d.Committed() {
		m.stateLock.Lock()
		m.confidence.AddSample(float64(d.Primary.Confidence))
		m.stateLock.Unlock()
	}

	banner := ""
	if m.opt.Streak != nil {
		state := m.opt.Streak.Observe(d.PrimaryIndex())
		rec.Streak = &state
		if state.Reached {
			banner = m.opt.StreakMessage
		}
		if state.Started {
			m.onStreak(now, d, state)
		}
	}

	start = time.Now()
	rec.Lines = overlay.Lines(d)
	screen := m.opt.Renderer.Render(&overlay.Frame{
		Camera: frame,
		Lines:  rec.Lines,
		Banner: banner,
	})
	m.stages.Since(StageRender, start)

	m.publish(rec, screen, false)
	return rec
}

func (m *Monitor) infer(frame *cimg.Image) ([]byte, error) {
	if err := m.input.Load(frame); err != nil {
		return nil, err
	}
	job, err := m.opt.Device.Run(m.input)
	if err != nil {
		return nil, err
	}
	defer job.Close()
	if !job.Wait(m.opt.InferenceTimeout) {
		return nil, ErrInferenceTimeout
	}
	return job.Scores()
}

func (m *Monitor) onStreak(now time.Time, d decide.Decision, state streak.State) {
	m.stateLock.Lock()
	m.nStreaks++
	m.stateLock.Unlock()
	label := ""
	if d.Primary != nil {
		label = d.Primary.Label
	}
	m.Log.Infof("Streak of %v cycles for '%v'", state.Count, label)
	if m.opt.Events == nil {
		return
	}
	cfg := m.opt.Classifier.Config()
	if _, err := m.opt.Events.AddStreak(now, d, state.Count, cfg.Mode, cfg.Threshold); err != nil {
		m.Log.Errorf("Failed to record streak: %v", err)
	}
}

func (m *Monitor) publish(rec *CycleRecord, screen *cimg.Image, skipped bool) {
	m.stateLock.Lock()
	m.nextID++
	rec.ID = m.nextID
	m.nCycles++
	if skipped {
		m.nSkipped++
	} else {
		m.latest = rec
		m.screen = screen
	}
	if rec.Error != "" {
		m.nAborted++
	}
	m.history.Add(rec)
	m.stateLock.Unlock()

	m.rate.Tick(rec.Time)
	m.sendToWatchers(rec)
}

// Latest returns the most recent cycle that was not skipped, or nil
func (m *Monitor) Latest() *CycleRecord {
	m.stateLock.RLock()
	defer m.stateLock.RUnlock()
	return m.latest
}

// History returns the recent cycles, oldest first
func (m *Monitor) History() []*CycleRecord {
	m.stateLock.RLock()
	defer m.stateLock.RUnlock()
	out := make([]*CycleRecord, m.history.Len())
	for i := range out {
		out[i] = m.history.Peek(i)
	}
	return out
}

// Screen returns the most recently rendered screen, or nil
func (m *Monitor) Screen() *cimg.Image {
	m.stateLock.RLock()
	defer m.stateLock.RUnlock()
	return m.screen
}

// ScreenJPEG returns the most recently rendered screen as a JPEG, or nil
func (m *Monitor) ScreenJPEG() ([]byte, error) {
	screen := m.Screen()
	if screen == nil {
		return nil, nil
	}
	return overlay.EncodeJPEG(screen)
}

type PerfReport struct {
	Cycles            int64             `json:"cycles"`
	Skipped           int64             `json:"skipped"`
	Aborted           int64             `json:"aborted"`
	Streaks           int64             `json:"streaks"`
	CyclesPerSecond   float64           `json:"cyclesPerSecond"`
	AverageConfidence float64           `json:"averageConfidence"` // Of committed predictions
	LastPrediction    int               `json:"lastPrediction"`
	Stages            []perfstats.Stage `json:"stages"`
}

func (m *Monitor) Perf() *PerfReport {
	m.cycleLock.Lock()
	lastPrediction := m.opt.Classifier.LastPrediction()
	m.cycleLock.Unlock()

	m.stateLock.RLock()
	defer m.stateLock.RUnlock()
	return &PerfReport{
		Cycles:            m.nCycles,
		Skipped:           m.nSkipped,
		Aborted:           m.nAborted,
		Streaks:           m.nStreaks,
		CyclesPerSecond:   m.rate.FPS(),
		AverageConfidence: m.confidence.Average(),
		LastPrediction:    lastPrediction,
		Stages:            m.stages.Snapshot(),
	}
}
