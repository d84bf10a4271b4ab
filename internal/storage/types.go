package storage

import (
	"errors"
	"time"
)

var (
	ErrDisabled      = errors.New("storage disabled")
	ErrUnknownDriver = errors.New("unknown storage driver")
)

// Config configures storage.
//
// Driver values:
//   - "file": JSON Lines file, compacted to the newest KeepRecords
//   - "sqlite": SQLite database file (modernc.org/sqlite, no cgo)
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
	KeepRecords int           // 0 means defaultKeepRecords
}

const defaultKeepRecords = 1000

// SessionRecord is one finished click session. Keep it schema-stable.
type SessionRecord struct {
	ID        string    `json:"id"`
	Origin    string    `json:"origin,omitempty"`
	Delay     string    `json:"delay"`
	Kind      string    `json:"kind"`
	Button    string    `json:"button"`
	Repeat    string    `json:"repeat"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
	Clicks    uint64    `json:"clicks"`
	Dropped   uint64    `json:"dropped,omitempty"`
	Outcome   string    `json:"outcome"`
	Reason    string    `json:"reason,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Duration is EndedAt - StartedAt, or 0 when either is unset.
func (r SessionRecord) Duration() time.Duration {
	if r.StartedAt.IsZero() || r.EndedAt.IsZero() {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt)
}
