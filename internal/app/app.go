// Package app wires the click scheduler to its config file, triggers,
// history store and command input, and runs them as one daemon.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"clickd/internal/actuator"
	"clickd/internal/clicker"
	"clickd/internal/config"
	"clickd/internal/eventbus"
	"clickd/internal/history"
	"clickd/internal/runtime/supervisor"
	"clickd/internal/storage"
	"clickd/internal/trigger"
	logx "clickd/pkg/logx"
)

const commandQueue = 32

type Option func(*App)

// WithInput reads controller commands from r, one per line.
func WithInput(r io.Reader) Option { return func(a *App) { a.in = r } }

// WithOutput sends controller replies to w instead of stdout.
func WithOutput(w io.Writer) Option { return func(a *App) { a.out = w } }

// WithNotify replaces the systemd notifier.
func WithNotify(fn func(state string)) Option { return func(a *App) { a.notify = fn } }

type App struct {
	cfgm *config.ConfigManager
	log  logx.Logger
	logs *logx.Service

	bus    eventbus.Bus
	store  storage.Store
	rec    *history.Recorder
	sched  *clicker.Scheduler
	handle *clicker.Handle
	trig   *trigger.Service
	sup    *supervisor.Supervisor

	factory     atomic.Value // clicker.ActuatorFactory
	backendName string

	// controller goroutine only
	cfg *config.Config
	rc  runtimeConfig

	cmds   chan command
	in     io.Reader
	out    io.Writer
	notify func(state string)
}

// New loads cfgPath and builds every component. Nothing runs until Run.
func New(cfgPath string, opts ...Option) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	rc, err := mapConfig(cfg)
	if err != nil {
		return nil, err
	}

	logs, log := logx.New(rc.logging)
	a := &App{
		cfgm:   cfgm,
		log:    log.With(logx.String("comp", "app")),
		logs:   logs,
		bus:    eventbus.New(),
		cfg:    cfg,
		rc:     rc,
		cmds:   make(chan command, commandQueue),
		out:    os.Stdout,
		notify: sdNotify,
	}
	for _, o := range opts {
		o(a)
	}

	cfgm.SetLogger(log.With(logx.String("comp", "config")))
	cfgm.SetValidator(func(_ context.Context, c *config.Config) error {
		_, err := mapConfig(c)
		return err
	})

	if err := a.setBackend(rc.actuator); err != nil {
		_ = logs.Close()
		return nil, err
	}

	if rc.store {
		st, err := storage.Open(rc.storage, log.With(logx.String("comp", "storage")))
		if err != nil {
			_ = logs.Close()
			return nil, err
		}
		a.store = st
		a.rec = history.New(a.bus, st, log.With(logx.String("comp", "history")))
		a.log.Info("storage enabled", logx.String("driver", rc.storage.Driver))
	}

	a.sched = clicker.New(a.newActuator,
		clicker.WithLogger(log.With(logx.String("comp", "clicker"))),
		clicker.WithStatusBuffer(rc.status.buffer),
	)
	a.handle = clicker.NewHandle(a.sched,
		clicker.WithBus(a.bus),
		clicker.WithHandleLogger(log.With(logx.String("comp", "session"))),
	)
	a.trig = trigger.New(rc.triggers, a.onFire, log.With(logx.String("comp", "trigger")))
	return a, nil
}

func (a *App) newActuator() (clicker.Actuator, error) {
	f, _ := a.factory.Load().(clicker.ActuatorFactory)
	if f == nil {
		return nil, actuator.ErrUnsupportedBackend
	}
	return f()
}

// setBackend swaps the factory used by the next session.
func (a *App) setBackend(cfg actuator.Config) error {
	f, name, err := actuator.Open(cfg, a.log.With(logx.String("comp", "actuator")))
	if err != nil {
		return err
	}
	a.factory.Store(f)
	a.backendName = name
	return nil
}

// Bus exposes session events to embedders.
func (a *App) Bus() eventbus.Bus { return a.bus }

// Run blocks until ctx ends, a quit command arrives or a task fails, then
// shuts everything down. It returns the first task error.
func (a *App) Run(ctx context.Context) error {
	a.sup = supervisor.New(ctx,
		supervisor.WithLogger(a.log.With(logx.String("comp", "supervisor"))),
		supervisor.WithCancelOnError(true),
	)

	// The recorder outlives the supervisor so it sees the final
	// session.stopped published during shutdown.
	recCtx, recCancel := context.WithCancel(context.Background())
	recDone := make(chan struct{})
	if a.rec != nil {
		go func() {
			defer close(recDone)
			_ = a.rec.Run(recCtx)
		}()
	} else {
		close(recDone)
	}

	a.log.Info("clickd starting",
		logx.String("config", a.cfgm.Path()),
		logx.String("backend", a.backendName),
		logx.String("delay", a.rc.click.Describe()),
	)

	a.sup.Go("controller", a.controller)
	a.sup.GoRestart("config.watch", a.cfgm.Watch, supervisor.WithRestartBackoff(time.Second, 30*time.Second))
	a.sup.Go("triggers", a.trig.Run)
	if a.in != nil {
		go a.readCommands(a.sup.Context(), a.in)
	}

	a.notify(sdReady)

	<-a.sup.Context().Done()
	a.shutdown(recCancel, recDone)
	return a.sup.Err()
}

// Stop asks a running app to shut down.
func (a *App) Stop() {
	if a.sup != nil {
		a.sup.Cancel()
	}
}

func (a *App) shutdown(recCancel context.CancelFunc, recDone <-chan struct{}) {
	a.log.Info("stopping")
	a.notify(sdStopping)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	a.step(ctx, "supervisor", 2*time.Second, a.sup.Wait)
	a.step(ctx, "history", time.Second, func(c context.Context) error {
		recCancel()
		select {
		case <-recDone:
			return nil
		case <-c.Done():
			return c.Err()
		}
	})
	a.step(ctx, "storage", time.Second, func(context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})

	a.log.Info("stopped")
	_ = a.logs.Close()
}

// step runs one shutdown step bounded by max and the caller's deadline,
// so one stuck component cannot stall the rest.
func (a *App) step(ctx context.Context, name string, max time.Duration, fn func(context.Context) error) {
	start := time.Now()
	stepCtx, cancel := context.WithTimeout(ctx, max)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic in stop step %s: %v", name, r)
			}
		}()
		done <- fn(stepCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			a.log.Warn("stop step error", logx.String("step", name), logx.Err(err))
		}
		a.log.Debug("stop step end", logx.String("step", name), logx.Duration("took", time.Since(start)))
	case <-stepCtx.Done():
		a.log.Warn("stop step deadline reached (continuing)",
			logx.String("step", name),
			logx.Duration("elapsed", time.Since(start)),
		)
	}
}
