package overlay

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cyclopcam/edgeclassify/pkg/decide"
	"github.com/cyclopcam/edgeclassify/pkg/nn"
)

// Messages shown instead of a prediction
const (
	MsgLoading     = "Loading..."
	MsgUnknown     = "Unknown"
	MsgInstruction = "Show me..."
)

// FormatPrediction produces "label (93.25%)"
func FormatPrediction(p *decide.Prediction) string {
	return fmt.Sprintf("%s (%.2f%%)", p.Label, p.Confidence*100)
}

// Lines returns the text that describes a decision.
// A committed decision produces the primary, and then the secondary if there is one.
// Anything else produces a single placeholder line.
func Lines(d decide.Decision) []string {
	if d.Committed() {
		lines := []string{FormatPrediction(d.Primary)}
		if d.Secondary != nil {
			lines = append(lines, FormatPrediction(d.Secondary))
		}
		return lines
	}
	switch {
	case errors.Is(d.Reason, nn.ErrModelNotLoaded):
		return []string{MsgLoading}
	case errors.Is(d.Reason, nn.ErrIndexOutOfRange):
		return []string{MsgUnknown}
	}
	return []string{MsgInstruction}
}

// BannerWords splits a banner message into the upper case words that are
// stacked vertically next to the image in landscape mode.
func BannerWords(msg string) []string {
	return strings.Fields(strings.ToUpper(msg))
}
