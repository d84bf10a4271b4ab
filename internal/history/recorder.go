// Package history turns session.* bus events into stored session records.
package history

import (
	"context"
	"time"

	"clickd/internal/eventbus"
	"clickd/internal/storage"
	logx "clickd/pkg/logx"
)

const writeTimeout = 2 * time.Second

// Recorder writes every finished session to a Store. It subscribes at
// construction so no event published after New is missed.
type Recorder struct {
	store storage.Store
	log   logx.Logger

	events <-chan eventbus.Event
	unsub  func()
}

func New(bus eventbus.Bus, store storage.Store, log logx.Logger) *Recorder {
	if log.IsZero() {
		log = logx.Nop()
	}
	ch, unsub := bus.Subscribe(64, "session.")
	return &Recorder{store: store, log: log, events: ch, unsub: unsub}
}

// Run records sessions until ctx ends, then flushes what is already queued.
func (r *Recorder) Run(ctx context.Context) error {
	defer r.unsub()
	for {
		select {
		case <-ctx.Done():
			r.flush()
			return nil
		case ev, ok := <-r.events:
			if !ok {
				return nil
			}
			r.handle(ev)
		}
	}
}

func (r *Recorder) flush() {
	for {
		select {
		case ev, ok := <-r.events:
			if !ok {
				return
			}
			r.handle(ev)
		default:
			return
		}
	}
}

func (r *Recorder) handle(ev eventbus.Event) {
	if ev.Type == eventbus.TopicSessionStarted {
		return
	}
	se, ok := ev.Data.(eventbus.SessionEvent)
	if !ok || se.ID == "" {
		return
	}
	rec := storage.SessionRecord{
		ID:        se.ID,
		Origin:    se.Origin,
		Delay:     se.Delay,
		Kind:      se.Kind,
		Button:    se.Button,
		Repeat:    se.Repeat,
		StartedAt: se.StartedAt,
		EndedAt:   se.EndedAt,
		Clicks:    se.Clicks,
		Dropped:   se.Dropped,
		Outcome:   eventbus.Outcome(ev.Type),
		Reason:    se.Reason,
		Error:     se.Error,
	}
	if rec.EndedAt.IsZero() {
		rec.EndedAt = ev.Time
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := r.store.RecordSession(ctx, rec); err != nil {
		r.log.Warn("session record failed", logx.String("session", rec.ID), logx.Err(err))
		return
	}
	r.log.Debug("session recorded",
		logx.String("session", rec.ID),
		logx.String("outcome", rec.Outcome),
		logx.Uint64("clicks", rec.Clicks),
	)
}
