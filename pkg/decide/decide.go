// Package decide turns the best classes of a cycle into a decision that can be shown to a user.
package decide

import (
	"errors"
	"fmt"

	"github.com/cyclopcam/edgeclassify/pkg/nn"
	"github.com/cyclopcam/edgeclassify/pkg/rank"
	"github.com/cyclopcam/edgeclassify/pkg/stats"
)

// NoPrediction is the primary index reported when nothing was committed
const NoPrediction = -1

// The primary candidate's confidence was lower than the threshold
var ErrBelowThreshold = errors.New("confidence below threshold")

// Mode selects where the candidates come from
type Mode int

const (
	ModeRaw        Mode = iota // Use the current frame's ranking directly
	ModeAggregated             // Use the temporal aggregator's best slots
)

func (m Mode) String() string {
	switch m {
	case ModeRaw:
		return "raw"
	case ModeAggregated:
		return "aggregated"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode accepts "raw" (or "disabled") and "aggregated" (or "statistics", "enabled")
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "raw", "disabled":
		return ModeRaw, nil
	case "aggregated", "statistics", "enabled":
		return ModeAggregated, nil
	}
	return ModeRaw, fmt.Errorf("Unknown aggregation mode '%v'", s)
}

// Candidate is a class with the confidence that we would report for it
type Candidate struct {
	Class      int
	Confidence float32
}

// Candidates are the inputs to a decision
type Candidates struct {
	Primary   Candidate
	Secondary *Candidate // nil if there is no qualifying runner-up
}

// Take the top two entries of a frame's ranking
func FromRanking(r *rank.Ranking) (Candidates, error) {
	if r.Len() == 0 {
		return Candidates{}, nn.ErrEmptyInput
	}
	c := Candidates{}
	class, score, err := r.At(0)
	if err != nil {
		return Candidates{}, err
	}
	c.Primary = Candidate{Class: class, Confidence: score}
	if r.Len() > 1 {
		class, score, err = r.At(1)
		if err != nil {
			return Candidates{}, err
		}
		c.Secondary = &Candidate{Class: class, Confidence: score}
	}
	return c, nil
}

// Take the First and Second slots of an aggregator summary.
// The reported confidence of a slot is its most recent instantaneous score.
func FromSummary(a *stats.Aggregator, s stats.Summary) (Candidates, error) {
	if s.First == stats.NoSlot {
		return Candidates{}, nn.ErrEmptyInput
	}
	first, err := a.Slot(s.First)
	if err != nil {
		return Candidates{}, err
	}
	c := Candidates{
		Primary: Candidate{Class: first.Class, Confidence: first.Prob},
	}
	if s.Second != stats.NoSlot {
		second, err := a.Slot(s.Second)
		if err != nil {
			return Candidates{}, err
		}
		c.Secondary = &Candidate{Class: second.Class, Confidence: second.Prob}
	}
	return c, nil
}

// Prediction is a labelled candidate
type Prediction struct {
	Class      int     `json:"class"`
	Label      string  `json:"label"`
	Confidence float32 `json:"confidence"`
}

// Decision is the outcome of one cycle.
// If Primary is nil, there is no confident prediction, and Reason explains why.
type Decision struct {
	Primary   *Prediction `json:"primary,omitempty"`
	Secondary *Prediction `json:"secondary,omitempty"`
	Reason    error       `json:"-"`
}

// Outcome is the kind of decision
type Outcome int

const (
	OutcomeNoPrediction Outcome = iota // Nothing was confident enough to show
	OutcomeCommitted                   // Primary (and possibly secondary) are set
)

func (o Outcome) String() string {
	if o == OutcomeCommitted {
		return "committed"
	}
	return "no confident prediction"
}

// A decision that commits nothing
func NoConfidentPrediction(reason error) Decision {
	return Decision{Reason: reason}
}

// True if a primary prediction was committed
func (d Decision) Committed() bool {
	return d.Primary != nil
}

func (d Decision) Outcome() Outcome {
	if d.Primary == nil {
		return OutcomeNoPrediction
	}
	return OutcomeCommitted
}

// The class index of the committed primary prediction, or NoPrediction
func (d Decision) PrimaryIndex() int {
	if d.Primary == nil {
		return NoPrediction
	}
	return d.Primary.Class
}

// Policy gates the primary prediction on a confidence threshold
type Policy struct {
	Threshold float32 // Value between 0 and 1
}

func NewPolicy(threshold float32) (*Policy, error) {
	if !(threshold >= 0 && threshold <= 1) {
		return nil, fmt.Errorf("Threshold %v is outside of [0,1]", threshold)
	}
	return &Policy{Threshold: threshold}, nil
}

// Decide commits the primary candidate if its confidence is at least the threshold.
// A committed primary is always accompanied by the secondary candidate (if any),
// even when the secondary is below the threshold. When the primary is not committed,
// no secondary is reported either.
func (p *Policy) Decide(c Candidates, labels *nn.LabelTable) (Decision, error) {
	if c.Primary.Confidence < p.Threshold {
		return NoConfidentPrediction(ErrBelowThreshold), nil
	}
	primary, err := label(c.Primary, labels)
	if err != nil {
		return NoConfidentPrediction(err), err
	}
	d := Decision{Primary: primary}
	if c.Secondary != nil {
		d.Secondary, err = label(*c.Secondary, labels)
		if err != nil {
			return NoConfidentPrediction(err), err
		}
	}
	return d, nil
}

func label(c Candidate, labels *nn.LabelTable) (*Prediction, error) {
	name, err := labels.Name(c.Class)
	if err != nil {
		return nil, err
	}
	return &Prediction{
		Class:      c.Class,
		Label:      name,
		Confidence: c.Confidence,
	}, nil
}
