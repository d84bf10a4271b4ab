package actuator

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"clickd/internal/clicker"
	logx "clickd/pkg/logx"
)

var ErrInjectedFailure = errors.New("dryrun: injected failure")

type DryRunConfig struct {
	// Latency is slept on every call, to rehearse slow injection paths.
	Latency time.Duration
	// FailAfter makes the call after the N-th successful click fail. 0 disables.
	FailAfter int
}

// DryRun is an Actuator that injects nothing. It tracks which buttons are
// held so press/release pairing mistakes surface as errors.
type DryRun struct {
	cfg DryRunConfig
	log logx.Logger

	mu       sync.Mutex
	held     map[clicker.Button]bool
	clicks   int
	presses  int
	releases int
	closed   bool
}

func NewDryRun(cfg DryRunConfig, log logx.Logger) *DryRun {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &DryRun{cfg: cfg, log: log.With(logx.String("backend", "dryrun")), held: map[clicker.Button]bool{}}
}

func (d *DryRun) Press(b clicker.Button) error {
	d.pause()
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkLocked(); err != nil {
		return err
	}
	if d.held[b] {
		return fmt.Errorf("dryrun: %s already pressed", b)
	}
	d.held[b] = true
	d.presses++
	d.log.Trace("press", logx.String("button", b.String()))
	return nil
}

func (d *DryRun) Release(b clicker.Button) error {
	d.pause()
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return errors.New("dryrun: closed")
	}
	if !d.held[b] {
		return fmt.Errorf("dryrun: %s released while up", b)
	}
	delete(d.held, b)
	d.releases++
	d.log.Trace("release", logx.String("button", b.String()))
	return nil
}

func (d *DryRun) Click(b clicker.Button) error {
	d.pause()
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkLocked(); err != nil {
		return err
	}
	d.clicks++
	d.log.Trace("click", logx.String("button", b.String()), logx.Int("n", d.clicks))
	return nil
}

func (d *DryRun) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.log.Debug("closed",
		logx.Int("clicks", d.clicks),
		logx.Int("presses", d.presses),
		logx.Int("releases", d.releases),
		logx.Int("held", len(d.held)),
	)
	return nil
}

// Counts returns clicks, presses and releases performed so far.
func (d *DryRun) Counts() (clicks, presses, releases int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.clicks, d.presses, d.releases
}

func (d *DryRun) checkLocked() error {
	if d.closed {
		return errors.New("dryrun: closed")
	}
	if d.cfg.FailAfter > 0 && d.clicks+d.presses >= d.cfg.FailAfter {
		return ErrInjectedFailure
	}
	return nil
}

func (d *DryRun) pause() {
	if d.cfg.Latency > 0 {
		time.Sleep(d.cfg.Latency)
	}
}
