package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"clickd/internal/clicker"
	"clickd/internal/config"
	"clickd/internal/trigger"
	logx "clickd/pkg/logx"
)

const (
	originManual  = "manual"
	originAuto    = "auto"
	originReload  = "reload"
	triggerPrefix = "trigger:"
)

type commandKind int

const (
	cmdStart commandKind = iota
	cmdStop
	cmdToggle
	cmdStatus
	cmdHelp
	cmdQuit
	cmdFire
)

type command struct {
	kind commandKind
	fire trigger.Fire
}

var commandWords = map[string]commandKind{
	"start":  cmdStart,
	"stop":   cmdStop,
	"toggle": cmdToggle,
	"t":      cmdToggle,
	"status": cmdStatus,
	"s":      cmdStatus,
	"help":   cmdHelp,
	"?":      cmdHelp,
	"quit":   cmdQuit,
	"exit":   cmdQuit,
	"q":      cmdQuit,
}

const helpText = `commands:
  start    start clicking (restarts a running session)
  stop     stop clicking
  toggle   start when idle, stop when running (t)
  status   show the current session and next triggers (s)
  quit     stop and exit (q)`

// ErrUnknownCommand is returned by Exec for a word it does not know.
var ErrUnknownCommand = errors.New("unknown command")

func parseCommand(line string) (command, bool, error) {
	word := strings.ToLower(strings.TrimSpace(line))
	if word == "" {
		return command{}, false, nil
	}
	k, ok := commandWords[word]
	if !ok {
		return command{}, false, fmt.Errorf("%w %q (try help)", ErrUnknownCommand, word)
	}
	return command{kind: k}, true, nil
}

// Exec queues one command line for the controller. Blank lines are ignored.
func (a *App) Exec(ctx context.Context, line string) error {
	cmd, ok, err := parseCommand(line)
	if err != nil || !ok {
		return err
	}
	select {
	case a.cmds <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// readCommands feeds input lines to the controller. End of input is not a
// quit: a daemon under systemd reads from /dev/null.
func (a *App) readCommands(ctx context.Context, r io.Reader) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if err := a.Exec(ctx, sc.Text()); err != nil {
			if ctx.Err() != nil {
				return
			}
			a.say("error: %v", err)
		}
	}
	if err := sc.Err(); err != nil {
		a.log.Warn("command input closed", logx.Err(err))
	}
}

// onFire runs on the cron goroutine and must not block.
func (a *App) onFire(f trigger.Fire) {
	select {
	case a.cmds <- command{kind: cmdFire, fire: f}:
	default:
		a.log.Warn("trigger dropped; command queue full", logx.String("trigger", f.Name))
	}
}

// controller is the only goroutine that drives the Handle. It polls status
// on a fixed tick, the way a UI frame loop would.
func (a *App) controller(ctx context.Context) error {
	sub := a.cfgm.Subscribe(4)
	defer a.cfgm.Unsubscribe(sub)

	tick := time.NewTicker(a.rc.status.poll)
	defer tick.Stop()

	if a.rc.auto {
		a.start(a.rc.click, originAuto)
	}
	a.notifyState()

	for {
		select {
		case <-ctx.Done():
			a.handle.Close()
			return nil
		case cmd := <-a.cmds:
			if quit := a.exec(cmd); quit {
				a.say("bye")
				a.sup.Cancel()
			}
		case <-tick.C:
			a.drain()
		case cfg, ok := <-sub:
			if !ok {
				sub = nil
				continue
			}
			a.reconfigure(cfg, tick)
		}
	}
}

func (a *App) exec(cmd command) (quit bool) {
	switch cmd.kind {
	case cmdStart:
		a.start(a.rc.click, originManual)
	case cmdStop:
		a.stop()
	case cmdToggle:
		if a.handle.IsRunning() {
			a.stop()
		} else {
			a.start(a.rc.click, originManual)
		}
	case cmdStatus:
		a.status()
	case cmdHelp:
		a.say("%s", helpText)
	case cmdQuit:
		a.stop()
		return true
	case cmdFire:
		a.fire(cmd.fire)
	}
	return false
}

func (a *App) start(cfg clicker.ClickConfig, origin string) {
	if err := a.handle.StartFrom(cfg, origin); err != nil {
		a.log.Warn("start rejected", logx.String("origin", origin), logx.Err(err))
		a.say("error: %v", err)
		return
	}
	s, _ := a.handle.Current()
	a.say("started: %s (%s %s, %s)", cfg.Describe(), cfg.Kind, cfg.Button, describeRepeat(cfg.Repeat))
	a.log.Debug("controller started session", logx.String("session", s.ID))
	a.notifyState()
}

func (a *App) stop() {
	if !a.handle.IsRunning() {
		return
	}
	a.drain()
	if !a.handle.IsRunning() {
		return
	}
	clicks := a.handle.Clicks()
	a.handle.Stop()
	a.say("stopped after %d clicks", clicks)
	a.notifyState()
}

// fire starts a trigger session unless one is already running. A trigger
// never preempts a session the operator started.
func (a *App) fire(f trigger.Fire) {
	if a.handle.IsRunning() {
		s, _ := a.handle.Current()
		a.log.Info("trigger skipped; session running",
			logx.String("trigger", f.Name),
			logx.String("session", s.ID),
		)
		a.say("trigger %s skipped: session running", f.Name)
		return
	}
	cfg := a.rc.click
	if f.Click != nil {
		cfg = *f.Click
	}
	cfg.Repeat = clicker.Repeat{Mode: clicker.RepeatDuration, For: f.Duration}
	a.say("trigger %s fired", f.Name)
	a.start(cfg, triggerPrefix+f.Name)
}

// drain empties the status channel. Only terminal events reach the output;
// individual clicks go to the (sampled) debug log.
func (a *App) drain() {
	for {
		ev, ok := a.handle.PollStatus()
		if !ok {
			return
		}
		switch ev.Kind {
		case clicker.EventClickSucceeded:
			a.log.Trace("click", logx.Uint64("seq", ev.Seq))
		case clicker.EventActuationFailed:
			a.say("error: %s", ev.Message)
			a.notifyState()
		case clicker.EventSessionCompleted:
			a.say("completed: %s", ev.Message)
			a.notifyState()
		}
	}
}

func (a *App) status() {
	s, running := a.handle.Current()
	if !running {
		a.say("idle: next start %s (%s %s)", a.rc.click.Describe(), a.rc.click.Kind, a.rc.click.Button)
	} else {
		a.say("running: %s (%s %s, %s) origin=%s clicks=%d up=%s",
			s.Config.Describe(), s.Config.Kind, s.Config.Button, describeRepeat(s.Config.Repeat),
			s.Origin, a.handle.Clicks(), time.Since(s.StartedAt).Round(100*time.Millisecond))
	}
	for _, n := range a.trig.Upcoming() {
		a.say("trigger %s next at %s", n.Name, n.Next.Format(time.RFC3339))
	}
}

// reconfigure applies a committed config. A session started by hand or by
// auto_start restarts with the new click settings; trigger sessions keep
// theirs until they end.
func (a *App) reconfigure(cfg *config.Config, tick *time.Ticker) {
	rc, err := mapConfig(cfg)
	if err != nil {
		a.log.Warn("config reload not applied", logx.Err(err))
		return
	}
	sections, attrs := config.SummarizeConfigChange(a.cfg, cfg)
	changed := map[string]bool{}
	for _, s := range sections {
		changed[s] = true
	}

	if changed["logging"] {
		a.logs.Apply(rc.logging)
	}
	if changed["actuator"] {
		if err := a.setBackend(rc.actuator); err != nil {
			a.log.Warn("actuator config not applied", logx.Err(err))
		}
	}
	if changed["triggers"] {
		if err := a.trig.Apply(rc.triggers); err != nil {
			a.log.Warn("trigger config not applied", logx.Err(err))
		}
	}
	if changed["status"] {
		tick.Reset(rc.status.poll)
		if rc.status.buffer != a.rc.status.buffer {
			a.log.Warn("status.buffer changed; restart required for it to take effect")
		}
	}
	if changed["storage"] {
		a.log.Warn("storage config changed; restart required for changes to take effect")
	}

	a.cfg, a.rc = cfg, rc

	if (changed["click"] || changed["actuator"]) && a.handle.IsRunning() {
		if s, _ := a.handle.Current(); !strings.HasPrefix(s.Origin, triggerPrefix) {
			a.say("config changed; restarting session")
			a.start(rc.click, originReload)
		}
	}

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config applied", fields...)
}

func describeRepeat(r clicker.Repeat) string {
	switch r.Mode {
	case clicker.RepeatCount:
		return fmt.Sprintf("%d clicks", r.Count)
	case clicker.RepeatDuration:
		return "for " + r.For.String()
	default:
		return "continuous"
	}
}

func (a *App) say(format string, args ...any) {
	fmt.Fprintf(a.out, format+"\n", args...)
}
