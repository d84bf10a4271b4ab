package clicker

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countCfg(d Delay, kind Kind, n uint64) ClickConfig {
	c := DefaultConfig()
	c.Delay = d
	c.Kind = kind
	c.Repeat = Repeat{Mode: RepeatCount, Count: n}
	return c
}

func TestFixedRateDoesNotDrift(t *testing.T) {
	// 25ms grid with 5ms of actuator overhead per click. A sleep-after-click
	// loop would take 21*30ms; the accumulator keeps it at 20*25ms.
	ff := &fakeFactory{proto: fakeActuator{overhead: 5 * time.Millisecond}}
	s := New(ff.New)

	ch := s.Start(countCfg(FixedRate{PerSecond: 40}, KindSingle, 21))
	evs := drain(t, ch, 3*time.Second)
	require.Equal(t, 21, countKind(evs, EventClickSucceeded))
	require.Equal(t, EventSessionCompleted, evs[len(evs)-1].Kind)

	calls := ff.get(0).snapshot()
	require.Len(t, calls, 21)
	elapsed := calls[20].at.Sub(calls[0].at)
	assert.GreaterOrEqual(t, elapsed, 490*time.Millisecond)
	assert.Less(t, elapsed, 570*time.Millisecond, "fire times drifted: %v", elapsed)
}

func TestJitterGapsStayInRange(t *testing.T) {
	ff := &fakeFactory{}
	s := New(ff.New, WithSeed(3))

	ch := s.Start(countCfg(Jitter{MinMS: 20, MaxMS: 30}, KindSingle, 15))
	drain(t, ch, 3*time.Second)

	calls := ff.get(0).snapshot()
	require.Len(t, calls, 15)
	total := calls[14].at.Sub(calls[0].at)
	assert.GreaterOrEqual(t, total, 14*20*time.Millisecond)
	assert.Less(t, total, 14*30*time.Millisecond+60*time.Millisecond)
}

func TestDegenerateJitterIsExact(t *testing.T) {
	ff := &fakeFactory{}
	s := New(ff.New)

	ch := s.Start(countCfg(Jitter{MinMS: 100, MaxMS: 100}, KindSingle, 6))
	drain(t, ch, 3*time.Second)

	calls := ff.get(0).snapshot()
	require.Len(t, calls, 6)
	total := calls[5].at.Sub(calls[0].at)
	assert.GreaterOrEqual(t, total, 500*time.Millisecond)
	assert.Less(t, total, 540*time.Millisecond)
}

func TestStopIsPromptAndNonBlocking(t *testing.T) {
	ff := &fakeFactory{}
	s := New(ff.New)

	cfg := DefaultConfig()
	cfg.Delay = FixedRate{PerSecond: 1}
	ch := s.Start(cfg)
	require.True(t, s.IsRunning())

	select {
	case ev := <-ch:
		require.Equal(t, EventClickSucceeded, ev.Kind)
	case <-time.After(time.Second):
		t.Fatal("first click never arrived")
	}

	begin := time.Now()
	s.Stop()
	assert.Less(t, time.Since(begin), 5*time.Millisecond, "Stop blocked")
	assert.False(t, s.IsRunning())

	drain(t, ch, 100*time.Millisecond)
	assert.Less(t, time.Since(begin), 100*time.Millisecond)
	assert.Len(t, ff.get(0).snapshot(), 1)
	assert.True(t, ff.get(0).closed.Load())

	s.Stop()
}

func TestRestartLeavesOneLoop(t *testing.T) {
	ff := &fakeFactory{}
	s := New(ff.New)

	cfg := DefaultConfig()
	cfg.Delay = FixedRate{PerSecond: 50}
	first := s.Start(cfg)
	select {
	case <-first:
	case <-time.After(time.Second):
		t.Fatal("first run never clicked")
	}
	second := s.Start(cfg)

	drain(t, first, time.Second)
	waitFor(t, time.Second, func() bool { return s.Active() == 1 })
	require.True(t, s.IsRunning())

	waitFor(t, time.Second, func() bool { return ff.get(0).closed.Load() })
	before := len(ff.get(0).snapshot())
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, before, len(ff.get(0).snapshot()), "retired loop kept clicking")

	s.Stop()
	drain(t, second, time.Second)
	waitFor(t, time.Second, func() bool { return s.Active() == 0 })
}

func TestActuationFailureIsReportedOnce(t *testing.T) {
	ff := &fakeFactory{proto: fakeActuator{failOn: 3}}
	s := New(ff.New)

	cfg := DefaultConfig()
	cfg.Delay = FixedRate{PerSecond: 100}
	evs := drain(t, s.Start(cfg), time.Second)

	require.Equal(t, 2, countKind(evs, EventClickSucceeded))
	require.Equal(t, 1, countKind(evs, EventActuationFailed))
	last := evs[len(evs)-1]
	assert.Equal(t, EventActuationFailed, last.Kind)
	assert.Contains(t, last.Message, "device gone")
	assert.False(t, s.IsRunning())
	assert.Equal(t, 3, len(ff.get(0).snapshot()), "loop retried after failure")
	assert.True(t, ff.get(0).closed.Load())

	for i, ev := range evs {
		assert.Equal(t, uint64(i+1), ev.Seq)
	}
}

func TestActuatorPanicBecomesFailure(t *testing.T) {
	ff := &fakeFactory{proto: fakeActuator{panicky: true}}
	s := New(ff.New)

	evs := drain(t, s.Start(DefaultConfig()), time.Second)
	require.Len(t, evs, 1)
	assert.Equal(t, EventActuationFailed, evs[0].Kind)
	assert.Contains(t, evs[0].Message, "driver exploded")
}

func TestActuatorInitFailure(t *testing.T) {
	ff := &fakeFactory{err: errors.New("no display")}
	s := New(ff.New)

	evs := drain(t, s.Start(DefaultConfig()), time.Second)
	require.Len(t, evs, 1)
	assert.Equal(t, EventActuationFailed, evs[0].Kind)
	assert.True(t, strings.HasPrefix(evs[0].Message, "failed to initialize actuator"))
	assert.False(t, s.IsRunning())
}

func TestDoubleClickPattern(t *testing.T) {
	ff := &fakeFactory{}
	s := New(ff.New)

	drain(t, s.Start(countCfg(FixedRate{PerSecond: 5}, KindDouble, 2)), 2*time.Second)

	calls := ff.get(0).snapshot()
	require.Len(t, calls, 4)
	gap := calls[1].at.Sub(calls[0].at)
	assert.GreaterOrEqual(t, gap, doubleClickPause)
	assert.Less(t, gap, doubleClickPause+30*time.Millisecond)
}

func TestDoubleClickSkipsSecondWhenStopped(t *testing.T) {
	ff := &fakeFactory{}
	s := New(ff.New)

	cfg := DefaultConfig()
	cfg.Delay = FixedRate{PerSecond: 1}
	cfg.Kind = KindDouble
	ch := s.Start(cfg)

	waitFor(t, time.Second, func() bool { a := ff.get(0); return a != nil && len(a.snapshot()) == 1 })
	s.Stop()
	drain(t, ch, time.Second)
	assert.Equal(t, []string{"click"}, ff.get(0).ops())
}

func TestHoldReleasesEvenWhenStopped(t *testing.T) {
	ff := &fakeFactory{}
	s := New(ff.New)

	cfg := DefaultConfig()
	cfg.Delay = FixedRate{PerSecond: 1}
	cfg.Kind = KindHold
	cfg.Button = ButtonRight
	ch := s.Start(cfg)

	waitFor(t, time.Second, func() bool { a := ff.get(0); return a != nil && len(a.snapshot()) == 1 })
	s.Stop()
	drain(t, ch, time.Second)

	calls := ff.get(0).snapshot()
	require.Len(t, calls, 2)
	assert.Equal(t, "press", calls[0].op)
	assert.Equal(t, "release", calls[1].op)
	assert.Equal(t, ButtonRight, calls[1].b)
	assert.Less(t, calls[1].at.Sub(calls[0].at), holdPause)
}

func TestHoldPauseBetweenPressAndRelease(t *testing.T) {
	ff := &fakeFactory{}
	s := New(ff.New)

	drain(t, s.Start(countCfg(FixedRate{PerSecond: 5}, KindHold, 1)), 2*time.Second)
	calls := ff.get(0).snapshot()
	require.Len(t, calls, 2)
	assert.GreaterOrEqual(t, calls[1].at.Sub(calls[0].at), holdPause)
}

func TestRepeatDurationCompletes(t *testing.T) {
	ff := &fakeFactory{}
	s := New(ff.New)

	cfg := DefaultConfig()
	cfg.Delay = FixedRate{PerSecond: 20}
	cfg.Repeat = Repeat{Mode: RepeatDuration, For: 200 * time.Millisecond}

	begin := time.Now()
	evs := drain(t, s.Start(cfg), 2*time.Second)
	took := time.Since(begin)

	require.NotEmpty(t, evs)
	assert.Equal(t, EventSessionCompleted, evs[len(evs)-1].Kind)
	clicks := countKind(evs, EventClickSucceeded)
	assert.GreaterOrEqual(t, clicks, 3)
	assert.LessOrEqual(t, clicks, 4)
	assert.GreaterOrEqual(t, took, 200*time.Millisecond)
	assert.False(t, s.IsRunning())
}

func TestSlowConsumerKeepsNewestEvents(t *testing.T) {
	ff := &fakeFactory{}
	s := New(ff.New, WithStatusBuffer(2))

	ch := s.Start(countCfg(FixedRate{PerSecond: 100}, KindSingle, 20))
	waitFor(t, 2*time.Second, func() bool { return s.Active() == 0 })

	evs := drain(t, ch, time.Second)
	require.Len(t, evs, 2)
	assert.Equal(t, EventSessionCompleted, evs[1].Kind)
	assert.Equal(t, uint64(21), evs[1].Seq)
	assert.Equal(t, uint64(19), s.Dropped())
	assert.Equal(t, uint64(20), s.Clicks())
}
