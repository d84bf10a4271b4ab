package clicker

import (
	"fmt"
	"math"
	"strings"
	"time"
)

const (
	DefaultMinIntervalMS uint64  = 10
	DefaultRate          float64 = 11
	DefaultJitterMinMS   uint64  = 60
	DefaultJitterMaxMS   uint64  = 110

	// MaxIntervalMS caps the gap between clicks at one day.
	MaxIntervalMS uint64 = 24 * 60 * 60 * 1000
)

// Button selects the mouse button to actuate.
type Button uint8

const (
	ButtonLeft Button = iota
	ButtonRight
	ButtonMiddle
)

func (b Button) String() string {
	switch b {
	case ButtonLeft:
		return "left"
	case ButtonRight:
		return "right"
	case ButtonMiddle:
		return "middle"
	default:
		return fmt.Sprintf("button(%d)", uint8(b))
	}
}

func ParseButton(s string) (Button, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "left":
		return ButtonLeft, nil
	case "right":
		return ButtonRight, nil
	case "middle":
		return ButtonMiddle, nil
	default:
		return 0, invalid("button", "unknown button %q (use left, right or middle)", s)
	}
}

// Kind is the actuation pattern performed at each fire time.
type Kind uint8

const (
	KindSingle Kind = iota
	KindDouble
	KindHold
)

func (k Kind) String() string {
	switch k {
	case KindSingle:
		return "single"
	case KindDouble:
		return "double"
	case KindHold:
		return "hold"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "single":
		return KindSingle, nil
	case "double":
		return KindDouble, nil
	case "hold":
		return KindHold, nil
	default:
		return 0, invalid("kind", "unknown click kind %q (use single, double or hold)", s)
	}
}

// Delay is either FixedRate or Jitter.
type Delay interface {
	Describe() string
	delay()
}

// FixedRate fires PerSecond times per second on a drift-free grid.
type FixedRate struct {
	PerSecond float64
}

func (FixedRate) delay() {}

func (d FixedRate) Describe() string { return fmt.Sprintf("%.1f CPS", d.PerSecond) }

// Interval is the grid spacing, 1s / PerSecond.
func (d FixedRate) Interval() time.Duration {
	return time.Duration(float64(time.Second) / d.PerSecond)
}

// Jitter waits a uniformly random whole number of milliseconds in [MinMS, MaxMS].
type Jitter struct {
	MinMS uint64
	MaxMS uint64
}

func (Jitter) delay() {}

func (d Jitter) Describe() string { return fmt.Sprintf("Jitter: %dms - %dms", d.MinMS, d.MaxMS) }

type RepeatMode uint8

const (
	RepeatContinuous RepeatMode = iota
	RepeatCount
	RepeatDuration
)

func (m RepeatMode) String() string {
	switch m {
	case RepeatContinuous:
		return "continuous"
	case RepeatCount:
		return "count"
	case RepeatDuration:
		return "duration"
	default:
		return fmt.Sprintf("repeat(%d)", uint8(m))
	}
}

// Repeat bounds a session. Count applies to RepeatCount, For to RepeatDuration.
type Repeat struct {
	Mode  RepeatMode
	Count uint64
	For   time.Duration
}

// ClickConfig is the immutable per-run snapshot handed to the scheduler.
type ClickConfig struct {
	Delay         Delay
	Kind          Kind
	Button        Button
	MinIntervalMS uint64
	Repeat        Repeat
}

// DefaultConfig returns 11 CPS single left clicks with a 10ms floor.
func DefaultConfig() ClickConfig {
	return ClickConfig{
		Delay:         FixedRate{PerSecond: DefaultRate},
		Kind:          KindSingle,
		Button:        ButtonLeft,
		MinIntervalMS: DefaultMinIntervalMS,
	}
}

// Validate checks the invariants the scheduler relies on. Errors are *ConfigError.
func (c ClickConfig) Validate() error {
	if c.MinIntervalMS == 0 {
		return invalid("min_interval", "must be > 0")
	}
	switch d := c.Delay.(type) {
	case nil:
		return invalid("delay", "required")
	case FixedRate:
		if math.IsNaN(d.PerSecond) || math.IsInf(d.PerSecond, 0) || d.PerSecond <= 0 {
			return invalid("rate", "must be a positive number, got %v", d.PerSecond)
		}
		if 1000/d.PerSecond < float64(c.MinIntervalMS) {
			return invalid("rate", "%.1f CPS gives %.2fms between clicks, below the %dms floor",
				d.PerSecond, 1000/d.PerSecond, c.MinIntervalMS)
		}
		if 1000/d.PerSecond > float64(MaxIntervalMS) {
			return invalid("rate", "%v CPS gives more than %dms between clicks", d.PerSecond, MaxIntervalMS)
		}
	case Jitter:
		if d.MinMS < c.MinIntervalMS {
			return invalid("jitter.min", "%dms is below the %dms floor", d.MinMS, c.MinIntervalMS)
		}
		if d.MinMS > d.MaxMS {
			return invalid("jitter", "min %dms exceeds max %dms", d.MinMS, d.MaxMS)
		}
		if d.MaxMS > MaxIntervalMS {
			return invalid("jitter.max", "%dms exceeds the %dms ceiling", d.MaxMS, MaxIntervalMS)
		}
	default:
		return invalid("delay", "unsupported delay %T", d)
	}
	if c.Kind > KindHold {
		return invalid("kind", "unknown click kind %d", c.Kind)
	}
	if c.Button > ButtonMiddle {
		return invalid("button", "unknown button %d", c.Button)
	}
	switch c.Repeat.Mode {
	case RepeatContinuous:
	case RepeatCount:
		if c.Repeat.Count == 0 {
			return invalid("repeat.count", "must be > 0")
		}
	case RepeatDuration:
		if c.Repeat.For <= 0 {
			return invalid("repeat.duration", "must be > 0")
		}
	default:
		return invalid("repeat", "unknown mode %d", c.Repeat.Mode)
	}
	return nil
}

// Describe renders the delay the way the status line shows it.
func (c ClickConfig) Describe() string {
	if c.Delay == nil {
		return "no delay"
	}
	return c.Delay.Describe()
}
