package nn

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/cyclopcam/edgeclassify/pkg/iox"
)

// ScoreRecording is a capture of raw classifier output, one score vector per frame.
// It lets us replay a camera session without the accelerator attached.
type ScoreRecording struct {
	Classes []string      `json:"classes"`
	Frames  []*ScoreFrame `json:"frames"`
}

type ScoreFrame struct {
	Frame  int       `json:"frame"`
	Scores []float32 `json:"scores"`
	Failed bool      `json:"failed,omitempty"` // The accelerator reported a non-zero status for this frame
}

// Load a score recording from a JSON file
func LoadScoreRecording(filename string) (*ScoreRecording, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	rec := &ScoreRecording{}
	if err := json.Unmarshal(b, rec); err != nil {
		return nil, fmt.Errorf("Error parsing score recording %v: %w", filename, err)
	}
	for _, f := range rec.Frames {
		if len(rec.Classes) != 0 && len(f.Scores) > len(rec.Classes) {
			return nil, fmt.Errorf("Frame %v of %v has %v scores, but there are only %v classes", f.Frame, filename, len(f.Scores), len(rec.Classes))
		}
	}
	return rec, nil
}

// Save the recording as indented JSON
func (r *ScoreRecording) Save(filename string) error {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return iox.WriteFile(filename, b)
}
