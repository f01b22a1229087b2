// Package nnaccel is the boundary between the classifier and whatever produces raw scores.
//
// A Device runs a model on an input image and hands back an asynchronous Job.
// The Job's output is the raw byte buffer of little-endian float32 scores,
// exactly as an accelerator would write it.
package nnaccel

import (
	"errors"
	"time"

	"github.com/cyclopcam/edgeclassify/pkg/nn"
)

var (
	ErrJobNotFinished = errors.New("NN job is not finished")
	ErrForwardFailed  = errors.New("NN forward pass failed")
	ErrDeviceClosed   = errors.New("NN device is closed")
)

// Device runs a classification model
type Device interface {
	// Status must be checked before every cycle
	Status() nn.ModelStatus
	// Config of the loaded model. Width and Height are the input image size.
	Config() *nn.ModelConfig
	// Start inference on the image in 'input'
	Run(input *InputBuffer) (Job, error)
	Close()
}

// Job is a single asynchronous inference
type Job interface {
	// Returns true if the job is finished
	Wait(wait time.Duration) bool
	// Raw scores. Only valid after Wait returns true.
	Scores() ([]byte, error)
	Close()
}
