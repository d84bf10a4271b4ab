package clicker

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"clickd/internal/eventbus"
	logx "clickd/pkg/logx"
)

// Session describes the run a Handle is currently tracking.
type Session struct {
	ID        string
	Origin    string
	Config    ClickConfig
	StartedAt time.Time
}

type HandleOption func(*Handle)

// WithBus makes the handle publish session.* events.
func WithBus(bus eventbus.Bus) HandleOption {
	return func(h *Handle) { h.bus = bus }
}

func WithHandleLogger(log logx.Logger) HandleOption {
	return func(h *Handle) { h.log = log }
}

// Handle is the caller-facing side of a Scheduler. It is safe for
// concurrent use, though a single polling loop is the intended caller.
//
// PollStatus is the only place a background failure becomes visible:
// an ActuationFailed or SessionCompleted event flips IsRunning to false.
type Handle struct {
	sched *Scheduler
	bus   eventbus.Bus
	log   logx.Logger

	mu      sync.Mutex
	status  <-chan StatusEvent
	running bool
	session Session
	closed  bool
}

func NewHandle(s *Scheduler, opts ...HandleOption) *Handle {
	h := &Handle{sched: s}
	for _, o := range opts {
		o(h)
	}
	if h.log.IsZero() {
		h.log = logx.Nop()
	}
	return h
}

// Start validates cfg and launches a new session, replacing any current one.
func (h *Handle) Start(cfg ClickConfig) error {
	return h.StartFrom(cfg, "")
}

// StartFrom is Start with an origin tag ("manual", "trigger:<name>", "reload")
// carried into session events.
func (h *Handle) StartFrom(cfg ClickConfig, origin string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrHandleClosed
	}
	if h.running {
		h.endLocked(eventbus.TopicSessionStopped, "replaced")
	}

	h.status = h.sched.Start(cfg)
	h.running = true
	h.session = Session{
		ID:        uuid.NewString(),
		Origin:    origin,
		Config:    cfg,
		StartedAt: time.Now(),
	}
	h.publish(eventbus.TopicSessionStarted, h.sessionEvent(false))
	h.log.Info("session started",
		logx.String("session", h.session.ID),
		logx.String("delay", cfg.Describe()),
		logx.String("kind", cfg.Kind.String()),
		logx.String("button", cfg.Button.String()),
		logx.String("origin", origin),
	)
	return nil
}

// Stop ends the current session. No-op when idle.
func (h *Handle) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.running {
		h.sched.Stop()
		h.status = nil
		return
	}
	h.endLocked(eventbus.TopicSessionStopped, "")
}

// endLocked stops the scheduler and announces topic. Clicks are sampled
// before the run is forgotten.
func (h *Handle) endLocked(topic, reason string) {
	ev := h.sessionEvent(true)
	ev.Reason = reason
	if topic == eventbus.TopicSessionFailed {
		ev.Error = reason
	}
	h.sched.Stop()
	h.status = nil
	h.running = false
	h.publish(topic, ev)
	h.log.Info("session ended",
		logx.String("session", ev.ID),
		logx.String("outcome", eventbus.Outcome(topic)),
		logx.Uint64("clicks", ev.Clicks),
		logx.String("reason", reason),
	)
}

func (h *Handle) IsRunning() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}

// Current returns the tracked session, if one is running.
func (h *Handle) Current() (Session, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.session, h.running
}

// Clicks returns successful actuations of the running session.
func (h *Handle) Clicks() uint64 { return h.sched.Clicks() }

// PollStatus returns the next pending event without blocking.
func (h *Handle) PollStatus() (StatusEvent, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.status == nil {
		return StatusEvent{}, false
	}

	select {
	case ev, ok := <-h.status:
		if !ok {
			h.status = nil
			h.running = false
			return StatusEvent{}, false
		}
		if ev.Terminal() {
			topic := eventbus.TopicSessionCompleted
			reason := ""
			if ev.Kind == EventActuationFailed {
				topic = eventbus.TopicSessionFailed
				reason = ev.Message
			}
			h.endLocked(topic, reason)
		}
		return ev, true
	default:
		return StatusEvent{}, false
	}
}

// Close stops the session and discards any further events. Later Start
// calls return ErrHandleClosed.
func (h *Handle) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	if h.running {
		h.endLocked(eventbus.TopicSessionStopped, "closed")
	} else {
		h.sched.Stop()
		h.status = nil
	}
	h.closed = true
}

func (h *Handle) sessionEvent(ended bool) eventbus.SessionEvent {
	s := h.session
	ev := eventbus.SessionEvent{
		ID:        s.ID,
		Delay:     s.Config.Describe(),
		Kind:      s.Config.Kind.String(),
		Button:    s.Config.Button.String(),
		Repeat:    s.Config.Repeat.Mode.String(),
		Origin:    s.Origin,
		StartedAt: s.StartedAt,
	}
	if ended {
		ev.Clicks = h.sched.Clicks()
		ev.Dropped = h.sched.Dropped()
		ev.EndedAt = time.Now()
	}
	return ev
}

func (h *Handle) publish(topic string, ev eventbus.SessionEvent) {
	if h.bus == nil {
		return
	}
	h.bus.Publish(eventbus.Event{Type: topic, Data: ev})
}
