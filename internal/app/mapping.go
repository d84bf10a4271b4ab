package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"clickd/internal/actuator"
	"clickd/internal/clicker"
	"clickd/internal/config"
	"clickd/internal/storage"
	"clickd/internal/trigger"
	logx "clickd/pkg/logx"
)

const (
	defaultPollInterval = 100 * time.Millisecond
	defaultDebugPerSec  = 20
	defaultBusyTimeout  = time.Second
)

// mapClick turns the file's click section into a validated scheduler config.
func mapClick(c config.ClickConfig) (clicker.ClickConfig, error) {
	out := clicker.DefaultConfig()
	if c.MinIntervalMS != 0 {
		out.MinIntervalMS = c.MinIntervalMS
	}

	switch strings.ToLower(strings.TrimSpace(c.Mode)) {
	case "", "rate":
		if c.Rate != 0 {
			out.Delay = clicker.FixedRate{PerSecond: c.Rate}
		}
	case "jitter":
		j := clicker.Jitter{MinMS: clicker.DefaultJitterMinMS, MaxMS: clicker.DefaultJitterMaxMS}
		if c.Jitter.MinMS != 0 || c.Jitter.MaxMS != 0 {
			j = clicker.Jitter{MinMS: c.Jitter.MinMS, MaxMS: c.Jitter.MaxMS}
		}
		out.Delay = j
	default:
		return clicker.ClickConfig{}, fmt.Errorf("click.mode: unknown mode %q", c.Mode)
	}

	var err error
	if out.Kind, err = clicker.ParseKind(c.Kind); err != nil {
		return clicker.ClickConfig{}, err
	}
	if out.Button, err = clicker.ParseButton(c.Button); err != nil {
		return clicker.ClickConfig{}, err
	}

	switch strings.ToLower(strings.TrimSpace(c.Repeat.Mode)) {
	case "", "continuous":
	case "count":
		out.Repeat = clicker.Repeat{Mode: clicker.RepeatCount, Count: c.Repeat.Count}
	case "duration":
		d, err := config.ParseDurationField("click.repeat.duration", c.Repeat.Duration)
		if err != nil {
			return clicker.ClickConfig{}, err
		}
		out.Repeat = clicker.Repeat{Mode: clicker.RepeatDuration, For: d}
	default:
		return clicker.ClickConfig{}, fmt.Errorf("click.repeat.mode: unknown mode %q", c.Repeat.Mode)
	}

	if err := out.Validate(); err != nil {
		return clicker.ClickConfig{}, err
	}
	return out, nil
}

func mapActuator(cfg *config.Config) (actuator.Config, error) {
	a := cfg.Actuator
	if !actuator.ValidBackend(a.Backend) {
		return actuator.Config{}, fmt.Errorf("actuator.backend: %w: %q", actuator.ErrUnknownBackend, a.Backend)
	}
	lat, err := config.ParseDurationField("actuator.dryrun.latency", a.DryRun.Latency)
	if err != nil {
		return actuator.Config{}, err
	}
	return actuator.Config{
		Backend:   a.Backend,
		Display:   a.Display,
		Latency:   lat,
		FailAfter: a.DryRun.FailAfter,
	}, nil
}

func mapLogging(cfg *config.Config) logx.Config {
	perSec := cfg.Logging.MaxDebugPerSec
	if perSec == 0 {
		perSec = defaultDebugPerSec
	}
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		DebugPerSec: perSec,
	}
}

type statusSettings struct {
	poll   time.Duration
	buffer int
}

func mapStatus(cfg *config.Config) (statusSettings, error) {
	poll, err := config.ParseDurationOrDefault("status.poll_interval", cfg.Status.PollInterval, defaultPollInterval)
	if err != nil {
		return statusSettings{}, err
	}
	if poll <= 0 {
		return statusSettings{}, errors.New("status.poll_interval: must be > 0")
	}
	return statusSettings{poll: poll, buffer: cfg.Status.Buffer}, nil
}

// mapStorage reports enabled=false when no driver is configured.
func mapStorage(cfg *config.Config) (storage.Config, bool, error) {
	if cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	path := strings.TrimSpace(sc.Path)
	if path == "" {
		return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=%s", driver)
	}
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, defaultBusyTimeout)
	if err != nil {
		return storage.Config{}, false, err
	}
	return storage.Config{Driver: driver, Path: path, BusyTimeout: busy}, true, nil
}

func mapTriggers(cfg *config.Config) (trigger.Config, error) {
	t := cfg.Triggers
	out := trigger.Config{Enabled: t.Enabled, Timezone: t.Timezone}
	for i, s := range t.Schedules {
		path := fmt.Sprintf("triggers.schedules[%d]", i)
		d, err := config.ParseDurationField(path+".duration", s.Duration)
		if err != nil {
			return trigger.Config{}, err
		}
		sc := trigger.Schedule{Name: strings.TrimSpace(s.Name), Spec: s.Spec, Duration: d}
		if s.Click != nil {
			cc, err := mapClick(*s.Click)
			if err != nil {
				return trigger.Config{}, fmt.Errorf("%s.click: %w", path, err)
			}
			sc.Click = &cc
		}
		out.Schedules = append(out.Schedules, sc)
	}
	if err := trigger.Validate(out); err != nil {
		return trigger.Config{}, err
	}
	return out, nil
}

// runtimeConfig is everything the controller derives from one file version.
type runtimeConfig struct {
	click    clicker.ClickConfig
	actuator actuator.Config
	logging  logx.Config
	status   statusSettings
	triggers trigger.Config
	storage  storage.Config
	store    bool
	auto     bool
}

func mapConfig(cfg *config.Config) (runtimeConfig, error) {
	if cfg == nil {
		return runtimeConfig{}, errors.New("config is nil")
	}
	var (
		rc   runtimeConfig
		err  error
		errs []error
	)
	if rc.click, err = mapClick(cfg.Click); err != nil {
		errs = append(errs, fmt.Errorf("click: %w", err))
	}
	if rc.actuator, err = mapActuator(cfg); err != nil {
		errs = append(errs, err)
	}
	if rc.status, err = mapStatus(cfg); err != nil {
		errs = append(errs, err)
	}
	if rc.triggers, err = mapTriggers(cfg); err != nil {
		errs = append(errs, err)
	}
	if rc.storage, rc.store, err = mapStorage(cfg); err != nil {
		errs = append(errs, err)
	}
	rc.logging = mapLogging(cfg)
	rc.auto = cfg.Click.AutoStart
	return rc, errors.Join(errs...)
}
