// Package trigger starts timed click sessions from cron schedules.
package trigger

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"clickd/internal/clicker"
	logx "clickd/pkg/logx"
)

// Schedule fires at Spec and asks for a session lasting Duration.
// A nil Click means "use the current top-level click config".
type Schedule struct {
	Name     string
	Spec     string
	Duration time.Duration
	Click    *clicker.ClickConfig
}

type Config struct {
	Enabled   bool
	Timezone  string
	Schedules []Schedule
}

// Fire is one schedule activation handed to the owner.
type Fire struct {
	Name     string
	Duration time.Duration
	Click    *clicker.ClickConfig
	At       time.Time
}

// NextRun reports when a schedule fires next.
type NextRun struct {
	Name string
	Spec string
	Next time.Time
}

// SecondOptional allows both 5-field and 6-field (with seconds) specs.
var parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

var reHHMM = regexp.MustCompile(`^\s*(\d{1,3}):(\d{2})\s*$`)

// Normalize turns a schedule string into a cron expression. Besides cron
// and @descriptors it accepts a bare interval ("90s", "2h30m") or an
// HH:MM interval ("00:50"), both meaning "@every".
func Normalize(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("schedule required")
	}
	if strings.ContainsAny(s, " \t") || strings.HasPrefix(s, "@") {
		return s, nil
	}
	if m := reHHMM.FindStringSubmatch(s); m != nil {
		d, err := time.ParseDuration(m[1] + "h" + m[2] + "m")
		if err != nil || m[2][0] > '5' || d <= 0 {
			return "", fmt.Errorf("invalid interval %q", raw)
		}
		return "@every " + d.String(), nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		if d <= 0 {
			return "", fmt.Errorf("interval must be > 0")
		}
		return "@every " + d.String(), nil
	}
	return "", fmt.Errorf("invalid schedule %q (use cron like '0 9 * * 1-5', HH:MM like '02:30', or duration like '55m')", raw)
}

// ParseSpec validates a schedule string.
func ParseSpec(raw string) (cron.Schedule, error) {
	expr, err := Normalize(raw)
	if err != nil {
		return nil, err
	}
	sched, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", raw, err)
	}
	return sched, nil
}

// Service owns one cron runner. Fires are delivered through the callback
// on cron's goroutine; the callback must not block.
type Service struct {
	log  logx.Logger
	fire func(Fire)

	mu      sync.Mutex
	cfg     Config
	c       *cron.Cron
	entries map[string]cron.EntryID
	started bool
}

func New(cfg Config, fire func(Fire), log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{cfg: cfg, fire: fire, log: log, entries: map[string]cron.EntryID{}}
}

// Validate checks every schedule and the timezone of cfg.
func Validate(cfg Config) error {
	if _, err := loadLocation(cfg.Timezone); err != nil {
		return err
	}
	for _, s := range cfg.Schedules {
		if _, err := ParseSpec(s.Spec); err != nil {
			return fmt.Errorf("trigger %q: %w", s.Name, err)
		}
		if s.Duration <= 0 {
			return fmt.Errorf("trigger %q: duration must be > 0", s.Name)
		}
	}
	return nil
}

func loadLocation(tz string) (*time.Location, error) {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", tz, err)
	}
	return loc, nil
}

// Start begins firing. It is a no-op when disabled or already started.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = true
	return s.rebuildLocked()
}

// Apply swaps in cfg. A started service re-registers its schedules.
func (s *Service) Apply(cfg Config) error {
	if err := Validate(cfg); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	if !s.started {
		return nil
	}
	s.stopLocked(context.Background())
	return s.rebuildLocked()
}

func (s *Service) rebuildLocked() error {
	if s.c != nil || !s.cfg.Enabled {
		return nil
	}
	loc, err := loadLocation(s.cfg.Timezone)
	if err != nil {
		return err
	}
	c := cron.New(cron.WithParser(parser), cron.WithLocation(loc))
	entries := map[string]cron.EntryID{}
	for _, sc := range s.cfg.Schedules {
		sched, err := ParseSpec(sc.Spec)
		if err != nil {
			return fmt.Errorf("trigger %q: %w", sc.Name, err)
		}
		sc := sc
		entries[sc.Name] = c.Schedule(sched, cron.FuncJob(func() { s.onFire(sc) }))
	}
	c.Start()
	s.c = c
	s.entries = entries
	s.log.Info("triggers started", logx.String("tz", loc.String()), logx.Int("schedules", len(entries)))
	return nil
}

func (s *Service) onFire(sc Schedule) {
	s.log.Info("trigger fired", logx.String("trigger", sc.Name), logx.Duration("duration", sc.Duration))
	if s.fire == nil {
		return
	}
	s.fire(Fire{Name: sc.Name, Duration: sc.Duration, Click: sc.Click, At: time.Now()})
}

// Stop halts firing and waits for a running callback, bounded by ctx.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = false
	s.stopLocked(ctx)
}

func (s *Service) stopLocked(ctx context.Context) {
	if s.c == nil {
		return
	}
	select {
	case <-s.c.Stop().Done():
	case <-ctx.Done():
	}
	s.c = nil
	s.entries = map[string]cron.EntryID{}
	s.log.Debug("triggers stopped")
}

// Run starts the service and stops it when ctx ends.
func (s *Service) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.Stop(stopCtx)
	return nil
}

// Upcoming lists the next activation of every registered schedule,
// soonest first.
func (s *Service) Upcoming() []NextRun {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c == nil {
		return nil
	}
	out := make([]NextRun, 0, len(s.entries))
	for _, sc := range s.cfg.Schedules {
		id, ok := s.entries[sc.Name]
		if !ok {
			continue
		}
		out = append(out, NextRun{Name: sc.Name, Spec: sc.Spec, Next: s.c.Entry(id).Next})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Next.Before(out[j].Next) })
	return out
}
