package history

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clickd/internal/clicker"
	"clickd/internal/eventbus"
	"clickd/internal/storage"
	logx "clickd/pkg/logx"
)

type memStore struct {
	mu   sync.Mutex
	recs []storage.SessionRecord
}

func (m *memStore) RecordSession(_ context.Context, r storage.SessionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append(m.recs, r)
	return nil
}

func (m *memStore) RecentSessions(context.Context, int) ([]storage.SessionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]storage.SessionRecord(nil), m.recs...), nil
}

func (m *memStore) Close() error { return nil }

type okActuator struct{}

func (okActuator) Press(clicker.Button) error   { return nil }
func (okActuator) Release(clicker.Button) error { return nil }
func (okActuator) Click(clicker.Button) error   { return nil }
func (okActuator) Close() error                 { return nil }

func TestRecorderStoresFinishedSessions(t *testing.T) {
	bus := eventbus.New()
	st := &memStore{}
	rec := New(bus, st, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = rec.Run(ctx)
	}()

	h := clicker.NewHandle(clicker.New(func() (clicker.Actuator, error) { return okActuator{}, nil }), clicker.WithBus(bus))
	cfg := clicker.DefaultConfig()
	cfg.Delay = clicker.FixedRate{PerSecond: 100}
	require.NoError(t, h.StartFrom(cfg, "manual"))
	time.Sleep(50 * time.Millisecond)
	h.Stop()

	require.Eventually(t, func() bool {
		recs, _ := st.RecentSessions(context.Background(), 0)
		return len(recs) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done

	recs, _ := st.RecentSessions(context.Background(), 0)
	r := recs[0]
	assert.Equal(t, "stopped", r.Outcome)
	assert.Equal(t, "manual", r.Origin)
	assert.Equal(t, "100.0 CPS", r.Delay)
	assert.Greater(t, r.Clicks, uint64(0))
	assert.False(t, r.EndedAt.Before(r.StartedAt))
}

func TestRecorderIgnoresStartAndForeignPayloads(t *testing.T) {
	bus := eventbus.New()
	st := &memStore{}
	rec := New(bus, st, logx.Nop())

	bus.Publish(eventbus.Event{Type: eventbus.TopicSessionStarted, Data: eventbus.SessionEvent{ID: "x"}})
	bus.Publish(eventbus.Event{Type: eventbus.TopicSessionFailed, Data: "not a session"})
	bus.Publish(eventbus.Event{Type: eventbus.TopicSessionCompleted, Data: eventbus.SessionEvent{ID: "y", Clicks: 3}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, rec.Run(ctx))

	recs, _ := st.RecentSessions(context.Background(), 0)
	require.Len(t, recs, 1)
	assert.Equal(t, "y", recs[0].ID)
	assert.Equal(t, "completed", recs[0].Outcome)
	assert.False(t, recs[0].EndedAt.IsZero())
}
