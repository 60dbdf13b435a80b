// Package signals tracks the process-wide interruption state. The state is
// set at most a handful of times by the watcher goroutine and polled by the
// solver between decisions and by the parsers between lines.
package signals

import (
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/pkg/errors"
)

// ErrInterrupted is returned by long-running operations that observed the
// interruption state.
var ErrInterrupted = errors.New("interrupted by signal")

// State describes why the process was asked to stop.
type State int32

const (
	None State = iota
	Other
	Interrupt
	Terminate
	Alarm
)

var state atomic.Int32

// Install registers the signal watcher. Calling it more than once has no
// effect beyond the first registration.
func Install() {
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		for sig := range c {
			switch sig {
			case os.Interrupt:
				state.Store(int32(Interrupt))
			case syscall.SIGTERM:
				state.Store(int32(Terminate))
			default:
				state.Store(int32(Other))
			}
		}
	}()
}

// StartTimeout arranges for the state to become Alarm after d, unless a
// signal arrived first.
func StartTimeout(d time.Duration) {
	time.AfterFunc(d, func() {
		state.CompareAndSwap(int32(None), int32(Alarm))
	})
}

// Received reports whether a signal or the timeout has been observed.
func Received() bool {
	return Current() != None
}

// Current returns the interruption state.
func Current() State {
	return State(state.Load())
}
