package config

import (
	"reflect"
	"sort"

	logx "clickd/pkg/logx"
)

// SummarizeConfigChange lists the top-level sections that differ and a
// few structured fields describing the new values, for the reload log line.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 12)

	if !reflect.DeepEqual(oldCfg.Click, newCfg.Click) {
		changed = append(changed, "click")
		attrs = append(attrs,
			logx.String("click.mode", newCfg.Click.Mode),
			logx.Float64("click.rate", newCfg.Click.Rate),
			logx.String("click.kind", newCfg.Click.Kind),
			logx.String("click.button", newCfg.Click.Button),
		)
	}
	if !reflect.DeepEqual(oldCfg.Actuator, newCfg.Actuator) {
		changed = append(changed, "actuator")
		attrs = append(attrs, logx.String("actuator.backend", newCfg.Actuator.Backend))
	}
	if oldCfg.Status != newCfg.Status {
		changed = append(changed, "status")
		attrs = append(attrs, logx.String("status.poll_interval", newCfg.Status.PollInterval))
	}
	if !reflect.DeepEqual(oldCfg.Triggers, newCfg.Triggers) {
		changed = append(changed, "triggers")
		attrs = append(attrs,
			logx.Bool("triggers.enabled", newCfg.Triggers.Enabled),
			logx.Int("triggers.count", len(newCfg.Triggers.Schedules)),
		)
	}
	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	var oS, nS StorageConfig
	if oldCfg.Storage != nil {
		oS = *oldCfg.Storage
	}
	if newCfg.Storage != nil {
		nS = *newCfg.Storage
	}
	if oS != nS {
		changed = append(changed, "storage")
		attrs = append(attrs, logx.String("storage.driver", nS.Driver))
	}

	sort.Strings(changed)
	return changed, attrs
}
