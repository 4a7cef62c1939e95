package esim

import (
	"fmt"
	"time"
)

// Outcome is the state of one activation attempt.
type Outcome string

const (
	OutcomePending      Outcome = "pending"
	OutcomeSuccess      Outcome = "confirmed-success"
	OutcomeFailure      Outcome = "confirmed-failure"
	OutcomeUnverifiable Outcome = "unverifiable"
)

// Attempt is a snapshot of one activation call. It exists only for the
// duration of that call; callers receive copies.
type Attempt struct {
	ID         string
	TargetID   int
	Strategies []string
	Index      int
	Strategy   string
	Outcome    Outcome
	Started    time.Time
	Finished   time.Time
	Reason     string
}

// Success reports whether the attempt was confirmed by verification.
func (a Attempt) Success() bool {
	return a.Outcome == OutcomeSuccess
}

// Elapsed is the attempt's duration, or zero while it is pending.
func (a Attempt) Elapsed() time.Duration {
	if a.Finished.IsZero() {
		return 0
	}
	return a.Finished.Sub(a.Started)
}

// EventKind labels an activation progress event.
type EventKind string

const (
	EventStarted   EventKind = "started"
	EventSkipped   EventKind = "skipped"
	EventEngaged   EventKind = "engaged"
	EventCallback  EventKind = "callback"
	EventVerifying EventKind = "verifying"
	EventCompleted EventKind = "completed"
)

// Event reports a transition of an activation attempt.
type Event struct {
	AttemptID string
	TargetID  int
	Kind      EventKind
	Strategy  string
	Outcome   Outcome
	Message   string
}

func (e Event) String() string {
	s := fmt.Sprintf("[%s] target=%d %s", shortID(e.AttemptID), e.TargetID, e.Kind)
	if e.Strategy != "" {
		s += " strategy=" + e.Strategy
	}
	if e.Kind == EventCompleted {
		s += " outcome=" + string(e.Outcome)
	}
	if e.Message != "" {
		s += ": " + e.Message
	}
	return s
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
