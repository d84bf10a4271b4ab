package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	logx "clickd/pkg/logx"
)

// Validate checks the structure of cfg: known enum words, parseable
// durations, unique trigger names. Click semantics (rate against floor,
// jitter ordering) are checked by clicker.ClickConfig.Validate once mapped.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	add(validateClick("click", cfg.Click))

	_, err := ParseDurationField("actuator.dryrun.latency", cfg.Actuator.DryRun.Latency)
	add(err)
	if cfg.Actuator.DryRun.FailAfter < 0 {
		add(errors.New("actuator.dryrun.fail_after: must be >= 0"))
	}

	_, err = ParseDurationField("status.poll_interval", cfg.Status.PollInterval)
	add(err)
	if cfg.Status.Buffer < 0 {
		add(errors.New("status.buffer: must be >= 0"))
	}

	if !logx.ValidLevel(cfg.Logging.Level) {
		add(fmt.Errorf("logging.level: unknown level %q", cfg.Logging.Level))
	}
	if cfg.Logging.MaxDebugPerSec < 0 {
		add(errors.New("logging.max_debug_per_sec: must be >= 0"))
	}

	if tz := strings.TrimSpace(cfg.Triggers.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			add(fmt.Errorf("triggers.timezone: %w", err))
		}
	}
	seen := map[string]bool{}
	for i, tr := range cfg.Triggers.Schedules {
		path := fmt.Sprintf("triggers.schedules[%d]", i)
		name := strings.TrimSpace(tr.Name)
		if name == "" {
			add(fmt.Errorf("%s.name: required", path))
		} else if seen[name] {
			add(fmt.Errorf("%s.name: duplicate %q", path, name))
		}
		seen[name] = true
		if strings.TrimSpace(tr.Spec) == "" {
			add(fmt.Errorf("%s.spec: required", path))
		}
		d, err := ParseDurationField(path+".duration", tr.Duration)
		add(err)
		if err == nil && d <= 0 {
			add(fmt.Errorf("%s.duration: must be > 0", path))
		}
		if tr.Click != nil {
			add(validateClick(path+".click", *tr.Click))
		}
	}

	if s := cfg.Storage; s != nil {
		switch strings.ToLower(strings.TrimSpace(s.Driver)) {
		case "", "none":
		case "file", "sqlite", "sqlite3":
			if strings.TrimSpace(s.Path) == "" {
				add(errors.New("storage.path: required"))
			}
		default:
			add(fmt.Errorf("storage.driver: unknown driver %q", s.Driver))
		}
		_, err := ParseDurationField("storage.busy_timeout", s.BusyTimeout)
		add(err)
	}

	return errors.Join(errs...)
}

func validateClick(path string, c ClickConfig) error {
	var errs []error
	switch strings.ToLower(strings.TrimSpace(c.Mode)) {
	case "", "rate", "jitter":
	default:
		errs = append(errs, fmt.Errorf("%s.mode: unknown mode %q (use rate or jitter)", path, c.Mode))
	}
	if c.Rate < 0 {
		errs = append(errs, fmt.Errorf("%s.rate: must be >= 0", path))
	}
	switch strings.ToLower(strings.TrimSpace(c.Repeat.Mode)) {
	case "", "continuous":
	case "count":
		if c.Repeat.Count == 0 {
			errs = append(errs, fmt.Errorf("%s.repeat.count: must be > 0", path))
		}
	case "duration":
		d, err := ParseDurationField(path+".repeat.duration", c.Repeat.Duration)
		if err != nil {
			errs = append(errs, err)
		} else if d <= 0 {
			errs = append(errs, fmt.Errorf("%s.repeat.duration: must be > 0", path))
		}
	default:
		errs = append(errs, fmt.Errorf("%s.repeat.mode: unknown mode %q", path, c.Repeat.Mode))
	}
	return errors.Join(errs...)
}
