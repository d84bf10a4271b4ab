package app

import (
	"context"
	"fmt"

	"clickd/internal/config"
	"clickd/internal/storage"
	logx "clickd/pkg/logx"
)

// Check loads and fully maps the config at path without touching any
// device, and returns a short human summary of what it would run.
func Check(path string) ([]string, error) {
	cfg, err := config.NewConfigManager(path).Parse()
	if err != nil {
		return nil, err
	}
	rc, err := mapConfig(cfg)
	if err != nil {
		return nil, err
	}

	backend := rc.actuator.Backend
	if backend == "" {
		backend = "auto"
	}
	out := []string{
		fmt.Sprintf("click: %s (%s %s, %s, floor %dms)",
			rc.click.Describe(), rc.click.Kind, rc.click.Button, describeRepeat(rc.click.Repeat), rc.click.MinIntervalMS),
		"actuator: " + backend,
		fmt.Sprintf("status: poll every %s", rc.status.poll),
	}
	if rc.triggers.Enabled {
		for _, s := range rc.triggers.Schedules {
			out = append(out, fmt.Sprintf("trigger %s: %q for %s", s.Name, s.Spec, s.Duration))
		}
	}
	if rc.store {
		out = append(out, fmt.Sprintf("storage: %s at %s", rc.storage.Driver, rc.storage.Path))
	}
	return out, nil
}

// History opens the store configured at path and lists up to limit
// sessions, newest first. It returns storage.ErrDisabled when no store is
// configured.
func History(ctx context.Context, path string, limit int) ([]storage.SessionRecord, error) {
	cfg, err := config.NewConfigManager(path).Parse()
	if err != nil {
		return nil, err
	}
	sc, enabled, err := mapStorage(cfg)
	if err != nil {
		return nil, err
	}
	if !enabled {
		return nil, storage.ErrDisabled
	}
	st, err := storage.Open(sc, logx.Nop())
	if err != nil {
		return nil, err
	}
	defer st.Close()
	return st.RecentSessions(ctx, limit)
}
