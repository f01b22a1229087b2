package perfstats

import (
	"sync"
	"time"
)

// Two scalars (N samples and X total amount), which can measure total and average values.
type Accumulator struct {
	Samples int64
	Total   float64
}

func (a *Accumulator) Reset() {
	a.Samples = 0
	a.Total = 0
}

func (a *Accumulator) AddSample(v float64) {
	a.Samples++
	a.Total += v
}

func (a *Accumulator) Average() float64 {
	if a.Samples == 0 {
		return 0
	}
	return a.Total / float64(a.Samples)
}

// Accumulate samples of how long something took
type TimeAccumulator struct {
	Samples int64
	Total   time.Duration
	Max     time.Duration
	Last    time.Duration
}

func (a *TimeAccumulator) Reset() {
	*a = TimeAccumulator{}
}

func (a *TimeAccumulator) AddSample(v time.Duration) {
	a.Samples++
	a.Total += v
	a.Last = v
	a.Max = max(a.Max, v)
}

func (a *TimeAccumulator) Average() time.Duration {
	if a.Samples == 0 {
		return 0
	}
	return time.Duration(a.Total.Nanoseconds() / a.Samples)
}

// Stage is the JSON summary of one TimeAccumulator
type Stage struct {
	Name      string  `json:"name"`
	Samples   int64   `json:"samples"`
	AverageMS float64 `json:"averageMS"`
	MaxMS     float64 `json:"maxMS"`
	LastMS    float64 `json:"lastMS"`
}

// Stages is a thread-safe set of named time accumulators, such as the stages of a processing pipeline
type Stages struct {
	lock   sync.Mutex
	order  []string
	stages map[string]*TimeAccumulator
}

// Create a set of stages. The names determine the order of Snapshot.
func NewStages(names ...string) *Stages {
	s := &Stages{
		stages: map[string]*TimeAccumulator{},
	}
	for _, n := range names {
		s.order = append(s.order, n)
		s.stages[n] = &TimeAccumulator{}
	}
	return s
}

// Add a sample to a stage. Unknown stages are created on demand.
func (s *Stages) AddSample(name string, v time.Duration) {
	s.lock.Lock()
	defer s.lock.Unlock()
	a := s.stages[name]
	if a == nil {
		a = &TimeAccumulator{}
		s.stages[name] = a
		s.order = append(s.order, name)
	}
	a.AddSample(v)
}

// Time the stage from 'start' until now
func (s *Stages) Since(name string, start time.Time) {
	s.AddSample(name, time.Since(start))
}

func (s *Stages) Get(name string) TimeAccumulator {
	s.lock.Lock()
	defer s.lock.Unlock()
	if a := s.stages[name]; a != nil {
		return *a
	}
	return TimeAccumulator{}
}

func (s *Stages) Snapshot() []Stage {
	s.lock.Lock()
	defer s.lock.Unlock()
	out := make([]Stage, 0, len(s.order))
	for _, n := range s.order {
		a := s.stages[n]
		out = append(out, Stage{
			Name:      n,
			Samples:   a.Samples,
			AverageMS: milliseconds(a.Average()),
			MaxMS:     milliseconds(a.Max),
			LastMS:    milliseconds(a.Last),
		})
	}
	return out
}

func (s *Stages) Reset() {
	s.lock.Lock()
	defer s.lock.Unlock()
	for _, a := range s.stages {
		a.Reset()
	}
}

func milliseconds(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1e6
}
