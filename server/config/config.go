package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/cyclopcam/edgeclassify/pkg/classify"
	"github.com/cyclopcam/edgeclassify/pkg/decide"
	"github.com/cyclopcam/edgeclassify/pkg/iox"
	"github.com/cyclopcam/edgeclassify/pkg/nn"
	"github.com/cyclopcam/edgeclassify/pkg/nnload"
	"github.com/cyclopcam/edgeclassify/pkg/overlay"
	"github.com/cyclopcam/edgeclassify/pkg/stats"
	"github.com/cyclopcam/edgeclassify/pkg/streak"
)

const DefaultFilename = "edgeclassify.json"

type Screen struct {
	Width    int `json:"width"`    // Native width of the display, eg 320
	Height   int `json:"height"`   // Native height of the display, eg 240
	Rotation int `json:"rotation"` // 0..3 quarter turns. 1 and 3 are portrait.
}

type Streak struct {
	Enabled bool   `json:"enabled"`
	Target  int    `json:"target"`  // Class index, or -1 for any class
	Length  int    `json:"length"`  // Show the message once more than this many consecutive cycles agree
	Message string `json:"message"` // eg "Happy 12th Birthday!"
}

type Config struct {
	Threshold          float32 `json:"threshold"`          // Minimum confidence of a committed prediction (0..1)
	Aggregation        string  `json:"aggregation"`        // "disabled" or "enabled"
	TrackedSlots       int     `json:"trackedSlots"`       // Number of aggregator slots
	Verbose            bool    `json:"verbose"`            // Log every decision
	ModelDir           string  `json:"modelDir"`           // Directory holding <modelName>.json and <modelName>.txt
	ModelName          string  `json:"modelName"`          // eg "mobilenet_v1"
	ModelDownloadURL   string  `json:"modelDownloadURL"`   // If not empty, fetch a missing model from here
	RecordingFile      string  `json:"recordingFile"`      // Score recording that stands in for the accelerator
	ReplayLatencyMS    int     `json:"replayLatencyMS"`    // Simulated inference time
	CameraImage        string  `json:"cameraImage"`        // JPEG file shown as the camera frame. Empty for a test pattern.
	CycleIntervalMS    int     `json:"cycleIntervalMS"`    // Time between cycles
	InferenceTimeoutMS int     `json:"inferenceTimeoutMS"` // A cycle is skipped if the model takes longer than this
	HistorySize        int     `json:"historySize"`        // Number of recent cycles kept for the API (rounded up to a power of 2)
	HTTPAddr           string  `json:"httpAddr"`           // eg ":8080"
	EventDBPath        string  `json:"eventDBPath"`        // sqlite file for streak events. Empty to disable.
	Screen             Screen  `json:"screen"`
	Streak             Streak  `json:"streak"`
}

func DefaultConfig() *Config {
	return &Config{
		Threshold:          nn.DefaultProbabilityThreshold,
		Aggregation:        "disabled",
		TrackedSlots:       stats.DefaultTrackedSlots,
		ModelDir:           "models",
		ModelName:          "mobilenet_v1",
		CycleIntervalMS:    100,
		InferenceTimeoutMS: 2000,
		HistorySize:        64,
		HTTPAddr:           ":8080",
		EventDBPath:        "edgeclassify.sqlite",
		Screen: Screen{
			Width:    overlay.DefaultScreenWidth,
			Height:   overlay.DefaultScreenHeight,
			Rotation: 0,
		},
		Streak: Streak{
			Enabled: true,
			Target:  0,
			Length:  10,
			Message: "Happy 12th Birthday!",
		},
	}
}

// LoadConfig reads a JSON config file on top of the defaults
func LoadConfig(filename string) (*Config, error) {
	if filename == "" {
		filename = DefaultFilename
	}
	raw, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("Error loading %v: %w", filename, err)
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("Error loading as JSON %v: %w", filename, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("Invalid config %v: %w", filename, err)
	}
	return cfg, nil
}

func (c *Config) Save(filename string) error {
	raw, err := json.MarshalIndent(c, "", "\t")
	if err != nil {
		return err
	}
	return iox.WriteFile(filename, raw)
}

func (c *Config) Validate() error {
	if !(c.Threshold >= 0 && c.Threshold <= 1) {
		return fmt.Errorf("threshold %v must be between 0 and 1", c.Threshold)
	}
	if _, err := decide.ParseMode(c.Aggregation); err != nil {
		return err
	}
	if c.TrackedSlots < 1 {
		return fmt.Errorf("trackedSlots must be at least 1")
	}
	if c.Screen.Width <= 0 || c.Screen.Height <= 0 {
		return fmt.Errorf("Invalid screen size %v x %v", c.Screen.Width, c.Screen.Height)
	}
	if c.Screen.Rotation < 0 || c.Screen.Rotation > 3 {
		return fmt.Errorf("Screen rotation must be 0..3, not %v", c.Screen.Rotation)
	}
	if c.Streak.Target < streak.AnyClass || c.Streak.Length < 0 {
		return fmt.Errorf("Invalid streak target %v or length %v", c.Streak.Target, c.Streak.Length)
	}
	if c.CycleIntervalMS < 0 || c.InferenceTimeoutMS <= 0 || c.ReplayLatencyMS < 0 {
		return fmt.Errorf("Cycle interval, inference timeout, and replay latency must be positive")
	}
	if c.HistorySize < 1 {
		return fmt.Errorf("historySize must be at least 1")
	}
	if c.ModelName == "" {
		return fmt.Errorf("modelName may not be empty")
	}
	return nil
}

// ValidateForModel checks the settings that depend on the model's class count
func (c *Config) ValidateForModel(nClasses int) error {
	if c.Streak.Enabled && c.Streak.Target >= nClasses {
		return fmt.Errorf("Streak target %v is not a class of the model, which has %v classes", c.Streak.Target, nClasses)
	}
	return nil
}

func (c *Config) ClassifierConfig() classify.Config {
	mode, _ := decide.ParseMode(c.Aggregation)
	return classify.Config{
		Mode:         mode,
		Threshold:    c.Threshold,
		TrackedSlots: c.TrackedSlots,
		Verbose:      c.Verbose,
	}
}

func (c *Config) ModelOptions() nnload.Options {
	return nnload.Options{
		ModelDir:      c.ModelDir,
		ModelName:     c.ModelName,
		DownloadURL:   c.ModelDownloadURL,
		RecordingFile: c.RecordingFile,
		ReplayLatency: time.Duration(c.ReplayLatencyMS) * time.Millisecond,
	}
}

func (c *Config) Layout() overlay.Layout {
	return overlay.Layout{
		Width:    c.Screen.Width,
		Height:   c.Screen.Height,
		Rotation: c.Screen.Rotation,
	}
}

func (c *Config) CycleInterval() time.Duration {
	return time.Duration(c.CycleIntervalMS) * time.Millisecond
}

func (c *Config) InferenceTimeout() time.Duration {
	return time.Duration(c.InferenceTimeoutMS) * time.Millisecond
}
