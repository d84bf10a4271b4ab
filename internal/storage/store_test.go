package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logx "clickd/pkg/logx"
)

func record(i int, base time.Time) SessionRecord {
	return SessionRecord{
		ID:        fmt.Sprintf("s-%03d", i),
		Delay:     "11.0 CPS",
		Kind:      "single",
		Button:    "left",
		Repeat:    "continuous",
		StartedAt: base.Add(time.Duration(i) * time.Second),
		EndedAt:   base.Add(time.Duration(i)*time.Second + 500*time.Millisecond),
		Clicks:    uint64(i),
		Outcome:   "stopped",
	}
}

func drivers(t *testing.T) map[string]Config {
	dir := t.TempDir()
	return map[string]Config{
		"file":   {Driver: "file", Path: filepath.Join(dir, "hist"), KeepRecords: 5},
		"sqlite": {Driver: "sqlite", Path: filepath.Join(dir, "hist.db"), KeepRecords: 5, BusyTimeout: time.Second},
	}
}

func TestStoreRoundTripNewestFirst(t *testing.T) {
	base := time.UnixMilli(1_700_000_000_000)
	for name, cfg := range drivers(t) {
		cfg := cfg
		t.Run(name, func(t *testing.T) {
			st, err := Open(cfg, logx.Nop())
			require.NoError(t, err)
			defer st.Close()

			ctx := context.Background()
			for i := 1; i <= 3; i++ {
				require.NoError(t, st.RecordSession(ctx, record(i, base)))
			}
			failed := record(4, base)
			failed.Outcome = "failed"
			failed.Error = "failed to click left button: device gone"
			require.NoError(t, st.RecordSession(ctx, failed))

			got, err := st.RecentSessions(ctx, 2)
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, "s-004", got[0].ID)
			assert.Equal(t, "failed", got[0].Outcome)
			assert.Equal(t, failed.Error, got[0].Error)
			assert.Equal(t, 500*time.Millisecond, got[0].Duration())
			assert.Equal(t, "s-003", got[1].ID)
			assert.Equal(t, uint64(3), got[1].Clicks)
		})
	}
}

func TestStoreKeepsNewestRecords(t *testing.T) {
	base := time.UnixMilli(1_700_000_000_000)
	for name, cfg := range drivers(t) {
		cfg := cfg
		t.Run(name, func(t *testing.T) {
			st, err := Open(cfg, logx.Nop())
			require.NoError(t, err)
			defer st.Close()

			ctx := context.Background()
			for i := 1; i <= 10; i++ {
				require.NoError(t, st.RecordSession(ctx, record(i, base)))
			}
			got, err := st.RecentSessions(ctx, 0)
			require.NoError(t, err)
			require.Len(t, got, 5)
			assert.Equal(t, "s-010", got[0].ID)
			assert.Equal(t, "s-006", got[4].ID)
		})
	}
}

func TestFileStoreSkipsTornLines(t *testing.T) {
	dir := t.TempDir()
	st, err := Open(Config{Driver: "file", Path: filepath.Join(dir, "hist.json")}, logx.Nop())
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	require.NoError(t, st.RecordSession(ctx, record(1, time.Now())))

	f, err := os.OpenFile(filepath.Join(dir, "hist.sessions.jsonl"), os.O_APPEND|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	_, err = f.WriteString(`{"id":"s-00`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	got, err := st.RecentSessions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestOpenDisabledAndUnknown(t *testing.T) {
	st, err := Open(Config{Driver: "none"}, logx.Nop())
	require.NoError(t, err)
	assert.Nil(t, st)

	_, err = Open(Config{Driver: "redis", Path: "x"}, logx.Nop())
	assert.True(t, errors.Is(err, ErrUnknownDriver))

	_, err = Open(Config{Driver: "file"}, logx.Nop())
	assert.Error(t, err)
}
