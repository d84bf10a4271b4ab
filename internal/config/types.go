package config

// Config is the on-disk configuration (JSON or YAML).
//
// Durations are Go duration strings ("100ms", "30s", "1m").
type Config struct {
	Click    ClickConfig    `json:"click"`
	Actuator ActuatorConfig `json:"actuator"`
	Status   StatusConfig   `json:"status,omitempty"`
	Triggers TriggersConfig `json:"triggers,omitempty"`
	Logging  LoggingConfig  `json:"logging"`
	Storage  *StorageConfig `json:"storage,omitempty"`
}

// ClickConfig describes one click session.
//
// Defaults (when fields are omitted/zero):
//   - mode: "rate"
//   - rate: 11
//   - jitter: 60ms..110ms
//   - kind: "single", button: "left"
//   - min_interval_ms: 10
//   - repeat.mode: "continuous"
type ClickConfig struct {
	// Mode is "rate" (fixed clicks per second) or "jitter" (random gap).
	Mode          string       `json:"mode,omitempty"`
	Rate          float64      `json:"rate,omitempty"`
	Jitter        JitterConfig `json:"jitter,omitempty"`
	Kind          string       `json:"kind,omitempty"`
	Button        string       `json:"button,omitempty"`
	MinIntervalMS uint64       `json:"min_interval_ms,omitempty"`
	Repeat        RepeatConfig `json:"repeat,omitempty"`

	// AutoStart begins a session as soon as `clickd run` is up.
	AutoStart bool `json:"auto_start,omitempty"`
}

type JitterConfig struct {
	MinMS uint64 `json:"min_ms,omitempty"`
	MaxMS uint64 `json:"max_ms,omitempty"`
}

// RepeatConfig bounds a session: "continuous", "count" (Count clicks) or
// "duration" (Duration long).
type RepeatConfig struct {
	Mode     string `json:"mode,omitempty"`
	Count    uint64 `json:"count,omitempty"`
	Duration string `json:"duration,omitempty"`
}

// ActuatorConfig selects the input backend ("auto", "x11", "dryrun").
type ActuatorConfig struct {
	Backend string       `json:"backend,omitempty"`
	Display string       `json:"display,omitempty"` // x11; empty means $DISPLAY
	DryRun  DryRunConfig `json:"dryrun,omitempty"`
}

type DryRunConfig struct {
	Latency   string `json:"latency,omitempty"`
	FailAfter int    `json:"fail_after,omitempty"`
}

// StatusConfig controls how the controller drains status events.
//
// Defaults: poll_interval "100ms", buffer 256.
type StatusConfig struct {
	PollInterval string `json:"poll_interval,omitempty"`
	Buffer       int    `json:"buffer,omitempty"`
}

// TriggersConfig starts timed sessions from cron specs.
type TriggersConfig struct {
	Enabled   bool            `json:"enabled,omitempty"`
	Timezone  string          `json:"timezone,omitempty"`
	Schedules []TriggerConfig `json:"schedules,omitempty"`
}

// TriggerConfig fires at Spec (cron, 5 or 6 fields, or @descriptor) and
// runs for Duration. Click, when set, replaces the top-level click section
// for that session.
type TriggerConfig struct {
	Name     string       `json:"name"`
	Spec     string       `json:"spec"`
	Duration string       `json:"duration"`
	Click    *ClickConfig `json:"click,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file,omitempty"`
	// MaxDebugPerSec bounds debug/trace output. 0 means the default (20).
	MaxDebugPerSec int `json:"max_debug_per_sec,omitempty"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig controls session history persistence.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./clickd.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite
}
