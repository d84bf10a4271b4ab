package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clickd/internal/clicker"
	"clickd/internal/config"
)

func TestMapClickDefaults(t *testing.T) {
	got, err := mapClick(config.ClickConfig{})
	require.NoError(t, err)
	assert.Equal(t, clicker.DefaultConfig(), got)

	got, err = mapClick(config.ClickConfig{Mode: "jitter"})
	require.NoError(t, err)
	assert.Equal(t, clicker.Jitter{MinMS: 60, MaxMS: 110}, got.Delay)
}

func TestMapClickFull(t *testing.T) {
	got, err := mapClick(config.ClickConfig{
		Mode:          "jitter",
		Jitter:        config.JitterConfig{MinMS: 20, MaxMS: 40},
		Kind:          "hold",
		Button:        "right",
		MinIntervalMS: 15,
		Repeat:        config.RepeatConfig{Mode: "duration", Duration: "90s"},
	})
	require.NoError(t, err)
	assert.Equal(t, clicker.ClickConfig{
		Delay:         clicker.Jitter{MinMS: 20, MaxMS: 40},
		Kind:          clicker.KindHold,
		Button:        clicker.ButtonRight,
		MinIntervalMS: 15,
		Repeat:        clicker.Repeat{Mode: clicker.RepeatDuration, For: 90 * time.Second},
	}, got)
}

func TestMapClickRejects(t *testing.T) {
	cases := map[string]config.ClickConfig{
		"rate above floor":   {Rate: 200},
		"jitter below floor": {Mode: "jitter", Jitter: config.JitterConfig{MinMS: 5, MaxMS: 50}},
		"jitter inverted":    {Mode: "jitter", Jitter: config.JitterConfig{MinMS: 90, MaxMS: 40}},
		"bad button":         {Button: "thumb"},
		"bad kind":           {Kind: "triple"},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := mapClick(c)
			assert.ErrorIs(t, err, clicker.ErrInvalidConfig)
		})
	}

	_, err := mapClick(config.ClickConfig{Mode: "burst"})
	assert.Error(t, err)
}

func TestMapConfigJoinsErrors(t *testing.T) {
	cfg := &config.Config{
		Click:    config.ClickConfig{Rate: 500},
		Actuator: config.ActuatorConfig{Backend: "wayland"},
		Status:   config.StatusConfig{PollInterval: "soon"},
	}
	_, err := mapConfig(cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, clicker.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "actuator.backend")
	assert.Contains(t, err.Error(), "status.poll_interval")
}

func TestMapTriggersOverride(t *testing.T) {
	cfg := &config.Config{Triggers: config.TriggersConfig{
		Enabled: true,
		Schedules: []config.TriggerConfig{{
			Name: " burst ", Spec: "@hourly", Duration: "30s",
			Click: &config.ClickConfig{Rate: 25},
		}},
	}}
	tc, err := mapTriggers(cfg)
	require.NoError(t, err)
	require.Len(t, tc.Schedules, 1)
	s := tc.Schedules[0]
	assert.Equal(t, "burst", s.Name)
	assert.Equal(t, 30*time.Second, s.Duration)
	require.NotNil(t, s.Click)
	assert.Equal(t, "25.0 CPS", s.Click.Describe())
}

func TestMapLoggingDefaultsSampler(t *testing.T) {
	lc := mapLogging(&config.Config{Logging: config.LoggingConfig{Level: "debug"}})
	assert.Equal(t, defaultDebugPerSec, lc.DebugPerSec)
	lc = mapLogging(&config.Config{Logging: config.LoggingConfig{MaxDebugPerSec: 5}})
	assert.Equal(t, 5, lc.DebugPerSec)
}
