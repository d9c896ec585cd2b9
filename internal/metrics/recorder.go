package metrics

import "time"

// ClickOutcome enumerates click gate results for counters.
type ClickOutcome string

const (
	OutcomeAccepted       ClickOutcome = "accepted"
	OutcomeAlreadyClicked ClickOutcome = "already_clicked"
	OutcomeLocked         ClickOutcome = "locked"
	OutcomeError          ClickOutcome = "error"
)

// Recorder defines observability hooks for the tide pool core. All methods
// must be safe on the NoopRecorder so injection stays optional.
type Recorder interface {
	IncClick(outcome ClickOutcome)
	ObserveClickDuration(d time.Duration)
	IncCommand(command string)
	IncNotification(success bool)
	IncStallCheck(stalled bool)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) IncClick(ClickOutcome)              {}
func (NoopRecorder) ObserveClickDuration(time.Duration) {}
func (NoopRecorder) IncCommand(string)                  {}
func (NoopRecorder) IncNotification(bool)               {}
func (NoopRecorder) IncStallCheck(bool)                 {}
