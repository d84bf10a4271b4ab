package clicker

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	logx "clickd/pkg/logx"
)

const (
	doubleClickPause    = 50 * time.Millisecond
	holdPause           = 100 * time.Millisecond
	defaultStatusBuffer = 256
)

type Option func(*Scheduler)

func WithLogger(log logx.Logger) Option {
	return func(s *Scheduler) { s.log = log }
}

// WithStatusBuffer sets the per-run status channel capacity.
func WithStatusBuffer(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.buffer = n
		}
	}
}

// WithSeed makes jitter sequences reproducible. Each run still gets its
// own source, derived from the seed and the run number.
func WithSeed(seed uint64) Option {
	return func(s *Scheduler) {
		s.seed = func(runID uint64) *rand.Rand {
			return rand.New(rand.NewPCG(seed, runID))
		}
	}
}

// Scheduler drives at most one background click loop at a time.
//
// Each run owns its running flag, its stop signal and its status channel,
// so a loop that has been stopped but not yet exited cannot disturb the
// run that replaced it.
type Scheduler struct {
	factory ActuatorFactory
	log     logx.Logger
	buffer  int
	seed    func(runID uint64) *rand.Rand

	mu   sync.Mutex
	cur  *run
	runs uint64

	active atomic.Int64
}

type run struct {
	id      uint64
	ctx     context.Context
	cancel  context.CancelFunc
	running atomic.Bool
	status  chan StatusEvent

	clicks  atomic.Uint64
	dropped atomic.Uint64
	seq     uint64 // loop goroutine only
}

func New(factory ActuatorFactory, opts ...Option) *Scheduler {
	s := &Scheduler{
		factory: factory,
		buffer:  defaultStatusBuffer,
		seed: func(uint64) *rand.Rand {
			return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		},
	}
	for _, o := range opts {
		o(s)
	}
	if s.log.IsZero() {
		s.log = logx.Nop()
	}
	return s
}

// Start stops any current run and launches a new one. cfg must already be
// valid. The running flag is set before Start returns. The returned channel
// is closed when the loop exits.
func (s *Scheduler) Start(cfg ClickConfig) <-chan StatusEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()

	s.runs++
	ctx, cancel := context.WithCancel(context.Background())
	r := &run{
		id:     s.runs,
		ctx:    ctx,
		cancel: cancel,
		status: make(chan StatusEvent, s.buffer),
	}
	r.running.Store(true)
	s.cur = r

	s.active.Add(1)
	go s.loop(r, cfg)
	return r.status
}

// Stop signals the current run to end and forgets it. It never waits for
// the loop goroutine.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopLocked()
	s.mu.Unlock()
}

func (s *Scheduler) stopLocked() {
	r := s.cur
	if r == nil {
		return
	}
	s.cur = nil
	r.running.Store(false)
	r.cancel()
}

func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur != nil && s.cur.running.Load()
}

// Clicks returns the successful actuations of the current run.
func (s *Scheduler) Clicks() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur == nil {
		return 0
	}
	return s.cur.clicks.Load()
}

// Dropped returns how many status events the current run discarded
// because the consumer fell behind.
func (s *Scheduler) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur == nil {
		return 0
	}
	return s.cur.dropped.Load()
}

// Active returns the number of loop goroutines that have not exited yet,
// including stopped runs still unwinding.
func (s *Scheduler) Active() int { return int(s.active.Load()) }

func (s *Scheduler) loop(r *run, cfg ClickConfig) {
	defer s.active.Add(-1)
	defer close(r.status)
	defer r.running.Store(false)

	log := s.log.With(logx.Uint64("run", r.id))
	log.Debug("click loop started", logx.String("delay", cfg.Describe()), logx.String("kind", cfg.Kind.String()))

	act, err := s.newActuator()
	if err != nil {
		log.Error("actuator init failed", logx.Err(err))
		s.finish(r, EventActuationFailed, (&ActuationError{Op: "init", Err: err}).Error())
		return
	}
	defer func() {
		if err := act.Close(); err != nil {
			log.Warn("actuator close failed", logx.Err(err))
		}
	}()

	p := newPacer(cfg.Delay, s.seed(r.id))

	next := time.Now()
	var deadline time.Time
	if cfg.Repeat.Mode == RepeatDuration {
		deadline = next.Add(cfg.Repeat.For)
	}

	for {
		if r.ctx.Err() != nil || !r.running.Load() {
			log.Debug("click loop stopped", logx.Uint64("clicks", r.clicks.Load()))
			return
		}
		if !deadline.IsZero() && !next.Before(deadline) {
			if !sleepUntil(r.ctx, deadline) {
				return
			}
			s.finish(r, EventSessionCompleted, fmt.Sprintf("completed after %s", cfg.Repeat.For))
			return
		}
		if !sleepUntil(r.ctx, next) {
			return
		}

		if err := actuate(r.ctx, act, cfg.Kind, cfg.Button); err != nil {
			log.Error("actuation failed", logx.Err(err), logx.Uint64("clicks", r.clicks.Load()))
			s.finish(r, EventActuationFailed, err.Error())
			return
		}
		n := r.clicks.Add(1)
		s.deliver(r, StatusEvent{Kind: EventClickSucceeded})
		log.Trace("click", logx.Uint64("n", n))

		if cfg.Repeat.Mode == RepeatCount && n >= cfg.Repeat.Count {
			s.finish(r, EventSessionCompleted, fmt.Sprintf("completed %d clicks", n))
			return
		}
		next = next.Add(p.next())
	}
}

func (s *Scheduler) newActuator() (act Actuator, err error) {
	if s.factory == nil {
		return nil, fmt.Errorf("no actuator factory")
	}
	defer func() {
		if p := recover(); p != nil {
			act, err = nil, fmt.Errorf("panic: %v", p)
		}
	}()
	act, err = s.factory()
	if err == nil && act == nil {
		err = fmt.Errorf("factory returned nil actuator")
	}
	return act, err
}

// finish clears the running flag before publishing the terminal event, so a
// caller that observes the event also observes the stopped state.
func (s *Scheduler) finish(r *run, kind EventKind, msg string) {
	r.running.Store(false)
	s.deliver(r, StatusEvent{Kind: kind, Message: msg})
}

// deliver never blocks. On a full buffer the oldest pending event is
// discarded so the newest (possibly terminal) one gets through. A stopped
// run delivers nothing.
func (s *Scheduler) deliver(r *run, ev StatusEvent) bool {
	if r.ctx.Err() != nil {
		return false
	}
	r.seq++
	ev.Seq = r.seq
	ev.At = time.Now()

	select {
	case r.status <- ev:
		return true
	default:
	}
	select {
	case <-r.status:
		r.dropped.Add(1)
	default:
	}
	select {
	case r.status <- ev:
		return true
	default:
		r.dropped.Add(1)
		return false
	}
}

func actuate(ctx context.Context, act Actuator, kind Kind, b Button) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &ActuationError{Op: "click", Button: b, Err: fmt.Errorf("panic: %v", p)}
		}
	}()

	switch kind {
	case KindDouble:
		if err := act.Click(b); err != nil {
			return &ActuationError{Op: "click", Button: b, Err: err}
		}
		if !sleepFor(ctx, doubleClickPause) {
			return nil
		}
		if err := act.Click(b); err != nil {
			return &ActuationError{Op: "click", Button: b, Err: err}
		}
	case KindHold:
		if err := act.Press(b); err != nil {
			return &ActuationError{Op: "press", Button: b, Err: err}
		}
		// Release even when stopped mid-hold so the button is never left down.
		sleepFor(ctx, holdPause)
		if err := act.Release(b); err != nil {
			return &ActuationError{Op: "release", Button: b, Err: err}
		}
	default:
		if err := act.Click(b); err != nil {
			return &ActuationError{Op: "click", Button: b, Err: err}
		}
	}
	return nil
}

// sleepUntil waits for the monotonic deadline t. It returns false if ctx
// ends first. A deadline in the past returns immediately.
func sleepUntil(ctx context.Context, t time.Time) bool {
	return sleepFor(ctx, time.Until(t))
}

func sleepFor(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
