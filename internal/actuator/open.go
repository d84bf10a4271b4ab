package actuator

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"clickd/internal/clicker"
	logx "clickd/pkg/logx"
)

var (
	ErrUnsupportedBackend = errors.New("input injection not supported on this platform")
	ErrUnknownBackend     = errors.New("unknown actuator backend")
)

// Config selects and tunes the input backend.
//
// Backend values:
//   - "auto" or "": X11 XTEST where available
//   - "x11": X11 XTEST fake input (linux)
//   - "dryrun": log and count, inject nothing
type Config struct {
	Backend string
	Display string

	// dryrun only
	Latency   time.Duration
	FailAfter int
}

// Open resolves cfg into a factory. No device is touched until the
// scheduler calls the factory at the start of a run.
func Open(cfg Config, log logx.Logger) (clicker.ActuatorFactory, string, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	switch backend {
	case "", "auto", "x11":
		if !x11Supported {
			return nil, "x11", ErrUnsupportedBackend
		}
		display := cfg.Display
		return func() (clicker.Actuator, error) {
			return openX11(display, log)
		}, "x11", nil
	case "dryrun", "dry-run", "noop":
		return func() (clicker.Actuator, error) {
			return NewDryRun(DryRunConfig{Latency: cfg.Latency, FailAfter: cfg.FailAfter}, log), nil
		}, "dryrun", nil
	default:
		return nil, backend, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

// ValidBackend reports whether name is accepted by Open on some platform.
func ValidBackend(name string) bool {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "auto", "x11", "dryrun", "dry-run", "noop":
		return true
	default:
		return false
	}
}
