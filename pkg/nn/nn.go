package nn

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Package nn holds the types shared between the classification stages:
// the class label table, the raw score buffer, and the errors that a
// classification cycle can produce.
// To load a model, use the nnload package.

const DefaultProbabilityThreshold = 0.5

// Upper bound on the number of classes that a model may declare.
// Storage is sized from the actual class count, this is just a sanity check.
const MaxClasses = 1000

var (
	// The score vector had zero length
	ErrEmptyInput = errors.New("empty score vector")
	// The accelerator or model is not available
	ErrModelNotLoaded = errors.New("model not loaded")
	// A slot or rank index exceeded its table. Our invariants should make this unreachable.
	ErrIndexOutOfRange = errors.New("index out of range")
)

// ModelStatus is reported by the accelerator wrapper before every cycle
type ModelStatus int

const (
	StatusNotLoaded ModelStatus = iota // No model, or the accelerator is unavailable
	StatusLoaded                       // The model is loaded and scores can be trusted
)

func (s ModelStatus) String() string {
	if s == StatusLoaded {
		return "loaded"
	}
	return "not loaded"
}

// ModelConfig is saved in a JSON file along with the weights of the NN model
type ModelConfig struct {
	Architecture string   `json:"architecture"` // eg "mobilenet_v1"
	Width        int      `json:"width"`        // eg 224
	Height       int      `json:"height"`       // eg 224
	Classes      []string `json:"classes"`      // eg ["logo", "background", ...]
}

// Load model config from a JSON file
func LoadModelConfig(filename string) (*ModelConfig, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	config := &ModelConfig{}
	err = json.Unmarshal(b, config)
	if err != nil {
		return nil, fmt.Errorf("Error parsing %v: %w", filename, err)
	}
	if len(config.Classes) > MaxClasses {
		return nil, fmt.Errorf("Model %v declares %v classes, but the maximum is %v", filename, len(config.Classes), MaxClasses)
	}
	return config, nil
}

// Load a text file with class names on each line
func LoadClassFile(filename string) ([]string, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	classes := []string{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			classes = append(classes, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return classes, nil
}
