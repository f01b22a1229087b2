// Package classify runs one classification cycle: raw accelerator scores go in,
// and a decision comes out.
//
// A cycle moves through these phases:
//
//	Idle -> ScoresAvailable -> Ranked -> [Aggregated] -> Decided
//
// A cycle that cannot complete (model not loaded, empty scores, a broken index)
// still produces a "no confident prediction" decision, so that the display always
// has something stable to show.
package classify

import (
	"errors"
	"fmt"

	"github.com/cyclopcam/edgeclassify/pkg/decide"
	"github.com/cyclopcam/edgeclassify/pkg/nn"
	"github.com/cyclopcam/edgeclassify/pkg/rank"
	"github.com/cyclopcam/edgeclassify/pkg/stats"
	"github.com/cyclopcam/logs"
)

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseScoresAvailable
	PhaseRanked
	PhaseAggregated
	PhaseDecided
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "Idle"
	case PhaseScoresAvailable:
		return "ScoresAvailable"
	case PhaseRanked:
		return "Ranked"
	case PhaseAggregated:
		return "Aggregated"
	case PhaseDecided:
		return "Decided"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

type Config struct {
	Mode         decide.Mode
	Threshold    float32 // Minimum confidence of a committed prediction (0..1)
	TrackedSlots int     // Number of aggregator slots (K). Only used in ModeAggregated.
	Verbose      bool    // Log every decision
}

func DefaultConfig() Config {
	return Config{
		Mode:         decide.ModeRaw,
		Threshold:    nn.DefaultProbabilityThreshold,
		TrackedSlots: stats.DefaultTrackedSlots,
	}
}

// Classifier holds everything that a cycle needs.
// The only state that survives from one cycle to the next is the aggregator
// and the last committed prediction. A Classifier is not safe for concurrent use.
type Classifier struct {
	log        logs.Log
	config     Config
	labels     *nn.LabelTable
	scores     *nn.ScoreBuffer
	ranking    *rank.Ranking
	aggregator *stats.Aggregator // nil in ModeRaw
	policy     *decide.Policy
	entries    []stats.Entry // scratch space for the aggregator input

	phase          Phase
	lastPrediction int
	cycles         int64
}

// Create a classifier.
// In ModeAggregated, 'aggregator' is the slot table that persists across cycles.
// If it is nil, a new one with config.TrackedSlots slots is created.
func New(log logs.Log, labels *nn.LabelTable, config Config, aggregator *stats.Aggregator) (*Classifier, error) {
	policy, err := decide.NewPolicy(config.Threshold)
	if err != nil {
		return nil, err
	}
	c := &Classifier{
		log:            log,
		config:         config,
		labels:         labels,
		scores:         nn.NewScoreBuffer(labels.Len()),
		ranking:        rank.NewRanking(labels.Len()),
		policy:         policy,
		lastPrediction: decide.NoPrediction,
	}
	switch config.Mode {
	case decide.ModeRaw:
	case decide.ModeAggregated:
		if aggregator == nil {
			if aggregator, err = stats.NewAggregator(config.TrackedSlots); err != nil {
				return nil, err
			}
		}
		c.aggregator = aggregator
		if config.Verbose && aggregator.OnEvict == nil {
			aggregator.OnEvict = func(slot int, old stats.Slot, class int) {
				c.log.Debugf("Classifier: slot %v evicted class %v (sum %.3f) for class %v", slot, old.Class, old.Sum, class)
			}
		}
		c.entries = make([]stats.Entry, 0, aggregator.K())
	default:
		return nil, fmt.Errorf("Unknown classifier mode %v", config.Mode)
	}
	return c, nil
}

func (c *Classifier) Config() Config {
	return c.config
}

func (c *Classifier) Labels() *nn.LabelTable {
	return c.labels
}

// Cycle classifies the raw accelerator output of one frame.
// The returned error is non-nil only when an internal index broke its bounds.
// In that case the cycle is aborted, and the decision is "no confident prediction".
func (c *Classifier) Cycle(status nn.ModelStatus, raw []byte) (decide.Decision, error) {
	c.begin()
	if status != nn.StatusLoaded {
		return c.finish(decide.NoConfidentPrediction(nn.ErrModelNotLoaded), nil)
	}
	if err := c.scores.Load(raw); err != nil {
		return c.finish(decide.NoConfidentPrediction(err), err)
	}
	return c.run()
}

// CycleScores is Cycle for collaborators that deliver decoded scores
func (c *Classifier) CycleScores(status nn.ModelStatus, scores []float32) (decide.Decision, error) {
	c.begin()
	if status != nn.StatusLoaded {
		return c.finish(decide.NoConfidentPrediction(nn.ErrModelNotLoaded), nil)
	}
	if err := c.scores.LoadFloats(scores); err != nil {
		return c.finish(decide.NoConfidentPrediction(err), err)
	}
	return c.run()
}

func (c *Classifier) begin() {
	c.phase = PhaseIdle
	c.cycles++
}

func (c *Classifier) run() (decide.Decision, error) {
	if c.scores.Len() == 0 {
		return c.finish(decide.NoConfidentPrediction(nn.ErrEmptyInput), nil)
	}
	c.phase = PhaseScoresAvailable

	if err := c.ranking.Update(c.scores.Scores()); err != nil {
		return c.abort(err)
	}
	c.phase = PhaseRanked

	var candidates decide.Candidates
	var err error
	if c.aggregator != nil {
		candidates, err = c.aggregate()
	} else {
		candidates, err = decide.FromRanking(c.ranking)
	}
	if err != nil {
		return c.abort(err)
	}

	d, err := c.policy.Decide(candidates, c.labels)
	if err != nil {
		return c.finish(d, err)
	}
	c.phase = PhaseDecided
	if c.config.Verbose {
		c.logDecision(d)
	}
	return c.finish(d, nil)
}

func (c *Classifier) aggregate() (decide.Candidates, error) {
	k := min(c.aggregator.K(), c.ranking.Len())
	c.entries = c.entries[:0]
	for r := 0; r < k; r++ {
		class, prob, err := c.ranking.At(r)
		if err != nil {
			return decide.Candidates{}, err
		}
		c.entries = append(c.entries, stats.Entry{Rank: r, Class: class, Prob: prob})
	}
	summary, err := c.aggregator.Update(c.entries)
	if err != nil {
		return decide.Candidates{}, err
	}
	c.phase = PhaseAggregated
	return decide.FromSummary(c.aggregator, summary)
}

// A failure that prevents us from reaching a decision
func (c *Classifier) abort(err error) (decide.Decision, error) {
	if errors.Is(err, nn.ErrEmptyInput) {
		return c.finish(decide.NoConfidentPrediction(err), nil)
	}
	return c.finish(decide.NoConfidentPrediction(err), err)
}

func (c *Classifier) finish(d decide.Decision, err error) (decide.Decision, error) {
	c.lastPrediction = d.PrimaryIndex()
	return d, err
}

func (c *Classifier) logDecision(d decide.Decision) {
	if !d.Committed() {
		c.log.Debugf("Classifier: no confident prediction (%v)", d.Reason)
		return
	}
	if d.Secondary != nil {
		c.log.Debugf("Classifier: %v %.2f, then %v %.2f", d.Primary.Label, d.Primary.Confidence, d.Secondary.Label, d.Secondary.Confidence)
	} else {
		c.log.Debugf("Classifier: %v %.2f", d.Primary.Label, d.Primary.Confidence)
	}
}

// LastPrediction is the class index committed by the most recent cycle,
// or decide.NoPrediction if that cycle did not commit anything.
func (c *Classifier) LastPrediction() int {
	return c.lastPrediction
}

// Phase reached by the most recent cycle
func (c *Classifier) Phase() Phase {
	return c.phase
}

// Number of cycles run so far
func (c *Classifier) Cycles() int64 {
	return c.cycles
}

// Slots returns a copy of the aggregator's slot table (nil in ModeRaw)
func (c *Classifier) Slots() []stats.Slot {
	if c.aggregator == nil {
		return nil
	}
	return c.aggregator.Slots()
}

// Reset clears all cross-cycle state, as if the system had just started
func (c *Classifier) Reset() {
	if c.aggregator != nil {
		c.aggregator.Reset()
	}
	c.lastPrediction = decide.NoPrediction
	c.phase = PhaseIdle
}
