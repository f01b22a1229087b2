package nnaccel

import (
	"time"
)

// replayJob completes after the device's simulated latency
type replayJob struct {
	done   chan struct{}
	timer  *time.Timer
	scores []byte
	err    error
}

func newReplayJob(scores []byte, err error, latency time.Duration) *replayJob {
	j := &replayJob{
		done:   make(chan struct{}),
		scores: scores,
		err:    err,
	}
	if latency <= 0 {
		close(j.done)
	} else {
		j.timer = time.AfterFunc(latency, func() { close(j.done) })
	}
	return j
}

// Returns true if the job is finished
func (j *replayJob) Wait(wait time.Duration) bool {
	select {
	case <-j.done:
		return true
	default:
	}
	if wait <= 0 {
		return false
	}
	timeout := time.NewTimer(wait)
	defer timeout.Stop()
	select {
	case <-j.done:
		return true
	case <-timeout.C:
		return false
	}
}

func (j *replayJob) Scores() ([]byte, error) {
	select {
	case <-j.done:
		return j.scores, j.err
	default:
		return nil, ErrJobNotFinished
	}
}

func (j *replayJob) Close() {
	if j.timer != nil {
		j.timer.Stop()
	}
}
