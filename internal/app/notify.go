package app

import (
	"fmt"

	"github.com/coreos/go-systemd/v22/daemon"
)

const (
	sdReady    = daemon.SdNotifyReady
	sdStopping = daemon.SdNotifyStopping
)

// sdNotify is a no-op outside a systemd Type=notify unit.
func sdNotify(state string) {
	_, _ = daemon.SdNotify(false, state)
}

// notifyState publishes the session line shown by `systemctl status`.
func (a *App) notifyState() {
	s, running := a.handle.Current()
	if !running {
		a.notify("STATUS=idle")
		return
	}
	a.notify(fmt.Sprintf("STATUS=clicking %s %s (%s)", s.Config.Describe(), s.Config.Button, s.Origin))
}
