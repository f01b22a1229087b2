package main

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/akamensky/argparse"
	"github.com/cyclopcam/edgeclassify/pkg/classify"
	"github.com/cyclopcam/edgeclassify/pkg/decide"
	"github.com/cyclopcam/edgeclassify/pkg/nn"
	"github.com/cyclopcam/edgeclassify/pkg/overlay"
	"github.com/cyclopcam/edgeclassify/pkg/stats"
	"github.com/cyclopcam/logs"
)

func check(err error) {
	if err != nil {
		panic(err)
	}
}

type frameJSON struct {
	Frame          int             `json:"frame"`
	Skipped        bool            `json:"skipped,omitempty"`
	Decision       decide.Decision `json:"decision"`
	Reason         string          `json:"reason,omitempty"`
	Lines          []string        `json:"lines"`
	LastPrediction int             `json:"lastPrediction"`
	Error          string          `json:"error,omitempty"`
}

type summaryJSON struct {
	Frames         int     `json:"frames"`
	Committed      int     `json:"committed"`
	Skipped        int     `json:"skipped"`
	MostCommon     string  `json:"mostCommon,omitempty"` // Most frequently committed label
	MostCommonN    int     `json:"mostCommonCount"`
	MeanConfidence float64 `json:"meanConfidence"` // Of committed predictions
	StdConfidence  float64 `json:"stdConfidence"`
}

type outputJSON struct {
	Frames  []frameJSON `json:"frames"`
	Summary summaryJSON `json:"summary"`
}

func summarize(labels *nn.LabelTable, frames []frameJSON) summaryJSON {
	s := summaryJSON{Frames: len(frames)}
	committed := []int{}
	confidence := []float32{}
	for _, f := range frames {
		if f.Skipped {
			s.Skipped++
		} else if f.Decision.Committed() {
			committed = append(committed, f.Decision.Primary.Class)
			confidence = append(confidence, f.Decision.Primary.Confidence)
		}
	}
	s.Committed = len(committed)
	if len(committed) != 0 {
		class, n := stats.Mode(committed)
		s.MostCommon, _ = labels.Name(class)
		s.MostCommonN = n
	}
	mean, variance := stats.MeanVar(confidence)
	s.MeanConfidence = mean
	s.StdConfidence = math.Sqrt(variance)
	return s
}

// rankscores runs a score recording through the classifier, and prints one decision per frame
func main() {
	parser := argparse.NewParser("rankscores", "Run a score recording through the classifier")
	input := parser.String("i", "input", &argparse.Options{Help: "Score recording (JSON)", Required: true})
	classFile := parser.String("c", "classes", &argparse.Options{Help: "Class file, one label per line. Overrides the classes in the recording", Default: ""})
	threshold := parser.Float("t", "threshold", &argparse.Options{Help: "Minimum confidence of a prediction (0..1)", Default: nn.DefaultProbabilityThreshold})
	aggregation := parser.String("a", "aggregation", &argparse.Options{Help: "Temporal aggregation ('disabled' or 'enabled')", Default: "disabled"})
	slots := parser.Int("k", "slots", &argparse.Options{Help: "Number of aggregator slots", Default: stats.DefaultTrackedSlots})
	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	logger, err := logs.NewLog()
	check(err)

	rec, err := nn.LoadScoreRecording(*input)
	check(err)
	classes := rec.Classes
	if *classFile != "" {
		classes, err = nn.LoadClassFile(*classFile)
		check(err)
	}
	labels, err := nn.NewLabelTable(classes)
	check(err)

	mode, err := decide.ParseMode(*aggregation)
	check(err)
	cfg := classify.DefaultConfig()
	cfg.Mode = mode
	cfg.Threshold = float32(*threshold)
	cfg.TrackedSlots = *slots
	classifier, err := classify.New(logger, labels, cfg, nil)
	check(err)

	out := []frameJSON{}
	for _, f := range rec.Frames {
		if f.Failed {
			// The accelerator failed on this frame, so the cycle is skipped
			out = append(out, frameJSON{Frame: f.Frame, Skipped: true, LastPrediction: classifier.LastPrediction()})
			continue
		}
		d, err := classifier.CycleScores(nn.StatusLoaded, f.Scores)
		j := frameJSON{
			Frame:          f.Frame,
			Decision:       d,
			Lines:          overlay.Lines(d),
			LastPrediction: classifier.LastPrediction(),
		}
		if d.Reason != nil {
			j.Reason = d.Reason.Error()
		}
		if err != nil {
			j.Error = err.Error()
		}
		out = append(out, j)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	check(encoder.Encode(&outputJSON{
		Frames:  out,
		Summary: summarize(labels, out),
	}))
}
