package clicker

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

var errDeviceGone = errors.New("device gone")

type call struct {
	op string
	b  Button
	at time.Time
}

// fakeActuator records every call. failOn makes the n-th Click (1-based)
// return errDeviceGone; overhead simulates a slow injection path.
type fakeActuator struct {
	mu       sync.Mutex
	calls    []call
	clicks   int
	failOn   int
	overhead time.Duration
	panicky  bool
	closed   atomic.Bool
}

func (f *fakeActuator) record(op string, b Button) {
	f.mu.Lock()
	f.calls = append(f.calls, call{op: op, b: b, at: time.Now()})
	f.mu.Unlock()
	if f.overhead > 0 {
		time.Sleep(f.overhead)
	}
}

func (f *fakeActuator) Press(b Button) error   { f.record("press", b); return nil }
func (f *fakeActuator) Release(b Button) error { f.record("release", b); return nil }

func (f *fakeActuator) Click(b Button) error {
	f.record("click", b)
	f.mu.Lock()
	f.clicks++
	n := f.clicks
	f.mu.Unlock()
	if f.panicky {
		panic("driver exploded")
	}
	if f.failOn > 0 && n >= f.failOn {
		return errDeviceGone
	}
	return nil
}

func (f *fakeActuator) Close() error {
	f.closed.Store(true)
	return nil
}

func (f *fakeActuator) snapshot() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

func (f *fakeActuator) ops() []string {
	calls := f.snapshot()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.op
	}
	return out
}

// fakeFactory hands out a new fakeActuator per run and remembers them.
type fakeFactory struct {
	mu    sync.Mutex
	made  []*fakeActuator
	proto fakeActuator
	err   error
}

func (ff *fakeFactory) New() (Actuator, error) {
	if ff.err != nil {
		return nil, ff.err
	}
	ff.mu.Lock()
	defer ff.mu.Unlock()
	a := &fakeActuator{failOn: ff.proto.failOn, overhead: ff.proto.overhead, panicky: ff.proto.panicky}
	ff.made = append(ff.made, a)
	return a, nil
}

func (ff *fakeFactory) get(i int) *fakeActuator {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	if i >= len(ff.made) {
		return nil
	}
	return ff.made[i]
}

// drain collects events until the channel closes or timeout passes.
func drain(t *testing.T, ch <-chan StatusEvent, timeout time.Duration) []StatusEvent {
	t.Helper()
	var out []StatusEvent
	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-deadline:
			t.Fatalf("status channel not closed within %s (got %d events)", timeout, len(out))
			return out
		}
	}
}

func countKind(evs []StatusEvent, k EventKind) int {
	n := 0
	for _, ev := range evs {
		if ev.Kind == k {
			n++
		}
	}
	return n
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}
