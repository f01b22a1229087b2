// Package logprefix wraps a logs.Log so that every message from a subsystem carries its name,
// and rate limits errors that repeat on every cycle.
package logprefix

import (
	"sync"
	"time"

	"github.com/cyclopcam/logs"
)

// Subsystem is the log of one part of the service, such as "Monitor" or "EventDB".
// Every message is written to the shared log as "<Name>: <message>".
// Closing a Subsystem does not close the shared log, which belongs to main().
type Subsystem struct {
	Name   string
	shared logs.Log
	prefix string
}

func NewSubsystem(shared logs.Log, name string) *Subsystem {
	return &Subsystem{
		Name:   name,
		shared: shared,
		prefix: name + ": ",
	}
}

func (l *Subsystem) Close() {}

func (l *Subsystem) Debugf(format string, a ...interface{}) {
	l.shared.Debugf(l.prefix+format, a...)
}

func (l *Subsystem) Infof(format string, a ...interface{}) {
	l.shared.Infof(l.prefix+format, a...)
}

func (l *Subsystem) Warnf(format string, a ...interface{}) {
	l.shared.Warnf(l.prefix+format, a...)
}

func (l *Subsystem) Errorf(format string, a ...interface{}) {
	l.shared.Errorf(l.prefix+format, a...)
}

func (l *Subsystem) Criticalf(format string, a ...interface{}) {
	l.shared.Criticalf(l.prefix+format, a...)
}

// ErrorLimiter logs an error at most once per Interval.
// A cycle loop that fails on every frame would otherwise flood the log.
type ErrorLimiter struct {
	Log      logs.Log
	Interval time.Duration

	lock       sync.Mutex
	lastErrAt  time.Time
	suppressed int
}

func NewErrorLimiter(log logs.Log, interval time.Duration) *ErrorLimiter {
	return &ErrorLimiter{
		Log:      log,
		Interval: interval,
	}
}

// Errorf logs the message if the previous one was logged more than Interval ago.
// Returns true if the message was logged.
func (e *ErrorLimiter) Errorf(format string, a ...interface{}) bool {
	return e.ErrorfAt(time.Now(), format, a...)
}

// ErrorfAt is Errorf with an explicit clock
func (e *ErrorLimiter) ErrorfAt(now time.Time, format string, a ...interface{}) bool {
	e.lock.Lock()
	if !e.lastErrAt.IsZero() && now.Sub(e.lastErrAt) <= e.Interval {
		e.suppressed++
		e.lock.Unlock()
		return false
	}
	suppressed := e.suppressed
	e.suppressed = 0
	e.lastErrAt = now
	e.lock.Unlock()

	e.Log.Errorf(format, a...)
	if suppressed != 0 {
		e.Log.Errorf("(%v similar errors suppressed)", suppressed)
	}
	return true
}

// Reset forgets the last error, so that the next one is logged immediately
func (e *ErrorLimiter) Reset() {
	e.lock.Lock()
	e.lastErrAt = time.Time{}
	e.suppressed = 0
	e.lock.Unlock()
}
