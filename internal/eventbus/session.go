package eventbus

import "time"

const (
	TopicSessionStarted   = "session.started"
	TopicSessionStopped   = "session.stopped"
	TopicSessionFailed    = "session.failed"
	TopicSessionCompleted = "session.completed"
)

// SessionEvent is the payload of every session.* topic.
// EndedAt, Clicks, Reason and Error are only set once the session is over.
type SessionEvent struct {
	ID        string    `json:"id"`
	Delay     string    `json:"delay"`
	Kind      string    `json:"kind"`
	Button    string    `json:"button"`
	Repeat    string    `json:"repeat"`
	Origin    string    `json:"origin,omitempty"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at,omitempty"`
	Clicks    uint64    `json:"clicks"`
	Dropped   uint64    `json:"dropped,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Outcome maps a session topic to the short word stored in history.
func Outcome(topic string) string {
	switch topic {
	case TopicSessionStopped:
		return "stopped"
	case TopicSessionFailed:
		return "failed"
	case TopicSessionCompleted:
		return "completed"
	case TopicSessionStarted:
		return "running"
	default:
		return ""
	}
}
