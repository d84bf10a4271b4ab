package actuator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clickd/internal/clicker"
	logx "clickd/pkg/logx"
)

func TestDryRunPairsPressAndRelease(t *testing.T) {
	d := NewDryRun(DryRunConfig{}, logx.Nop())

	require.NoError(t, d.Press(clicker.ButtonLeft))
	assert.Error(t, d.Press(clicker.ButtonLeft), "double press")
	require.NoError(t, d.Release(clicker.ButtonLeft))
	assert.Error(t, d.Release(clicker.ButtonLeft), "release while up")
	require.NoError(t, d.Click(clicker.ButtonMiddle))

	clicks, presses, releases := d.Counts()
	assert.Equal(t, 1, clicks)
	assert.Equal(t, 1, presses)
	assert.Equal(t, 1, releases)

	require.NoError(t, d.Close())
	assert.Error(t, d.Click(clicker.ButtonLeft))
}

func TestDryRunFailAfter(t *testing.T) {
	d := NewDryRun(DryRunConfig{FailAfter: 2}, logx.Nop())
	require.NoError(t, d.Click(clicker.ButtonLeft))
	require.NoError(t, d.Click(clicker.ButtonLeft))
	assert.ErrorIs(t, d.Click(clicker.ButtonLeft), ErrInjectedFailure)
}

func TestDryRunDrivesScheduler(t *testing.T) {
	factory, _, err := Open(Config{Backend: "dryrun", FailAfter: 4}, logx.Nop())
	require.NoError(t, err)

	s := clicker.New(factory)
	cfg := clicker.DefaultConfig()
	cfg.Delay = clicker.FixedRate{PerSecond: 100}

	var evs []clicker.StatusEvent
	ch := s.Start(cfg)
	timeout := time.After(2 * time.Second)
	for done := false; !done; {
		select {
		case ev, ok := <-ch:
			if !ok {
				done = true
				break
			}
			evs = append(evs, ev)
		case <-timeout:
			t.Fatal("session did not end")
		}
	}

	require.Len(t, evs, 5)
	assert.Equal(t, clicker.EventActuationFailed, evs[4].Kind)
	assert.Contains(t, evs[4].Message, "injected failure")
}
