package clicker

import (
	"fmt"
	"time"
)

type EventKind uint8

const (
	EventClickSucceeded EventKind = iota
	EventActuationFailed
	EventSessionCompleted
)

func (k EventKind) String() string {
	switch k {
	case EventClickSucceeded:
		return "click_succeeded"
	case EventActuationFailed:
		return "actuation_failed"
	case EventSessionCompleted:
		return "session_completed"
	default:
		return fmt.Sprintf("event(%d)", uint8(k))
	}
}

// StatusEvent flows from the background loop to the caller, FIFO.
// Seq is per run and starts at 1; gaps mean the buffer overflowed.
type StatusEvent struct {
	Kind    EventKind
	Message string
	Seq     uint64
	At      time.Time
}

// Terminal reports whether the run ends after this event.
func (e StatusEvent) Terminal() bool {
	return e.Kind == EventActuationFailed || e.Kind == EventSessionCompleted
}
