package nnaccel

import (
	"fmt"
	"sync"
	"time"

	"github.com/cyclopcam/edgeclassify/pkg/nn"
)

// ReplayDevice plays back a score recording, one frame per Run.
// When the recording ends, it starts again from the beginning.
type ReplayDevice struct {
	config  nn.ModelConfig
	latency time.Duration

	lock   sync.Mutex
	frames []*nn.ScoreFrame
	next   int
	closed bool
}

// Create a replay device.
// If the recording names its classes, then they must agree with the model config.
func NewReplayDevice(config *nn.ModelConfig, rec *nn.ScoreRecording, latency time.Duration) (*ReplayDevice, error) {
	if len(rec.Frames) == 0 {
		return nil, fmt.Errorf("Score recording has no frames")
	}
	if len(rec.Classes) != 0 && len(rec.Classes) != len(config.Classes) {
		return nil, fmt.Errorf("Score recording has %v classes, but the model has %v", len(rec.Classes), len(config.Classes))
	}
	return &ReplayDevice{
		config:  *config,
		latency: latency,
		frames:  rec.Frames,
	}, nil
}

func (d *ReplayDevice) Status() nn.ModelStatus {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.closed {
		return nn.StatusNotLoaded
	}
	return nn.StatusLoaded
}

func (d *ReplayDevice) Config() *nn.ModelConfig {
	return &d.config
}

// Run ignores the pixels in 'input'. The scores come from the recording.
func (d *ReplayDevice) Run(input *InputBuffer) (Job, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.closed {
		return nil, ErrDeviceClosed
	}
	frame := d.frames[d.next]
	d.next = (d.next + 1) % len(d.frames)
	if frame.Failed {
		return newReplayJob(nil, fmt.Errorf("%w (frame %v)", ErrForwardFailed, frame.Frame), d.latency), nil
	}
	return newReplayJob(nn.EncodeScores(frame.Scores), nil, d.latency), nil
}

// Position of the next frame in the recording
func (d *ReplayDevice) Position() int {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.next
}

func (d *ReplayDevice) Close() {
	d.lock.Lock()
	d.closed = true
	d.lock.Unlock()
}

// NullDevice stands in for a model that could not be loaded
type NullDevice struct {
	config nn.ModelConfig
}

func NewNullDevice(config *nn.ModelConfig) *NullDevice {
	d := &NullDevice{}
	if config != nil {
		d.config = *config
	}
	return d
}

func (d *NullDevice) Status() nn.ModelStatus {
	return nn.StatusNotLoaded
}

func (d *NullDevice) Config() *nn.ModelConfig {
	return &d.config
}

func (d *NullDevice) Run(input *InputBuffer) (Job, error) {
	return nil, nn.ErrModelNotLoaded
}

func (d *NullDevice) Close() {
}
