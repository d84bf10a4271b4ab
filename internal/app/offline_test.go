package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clickd/internal/storage"
	logx "clickd/pkg/logx"
)

func TestCheckSummarizesExample(t *testing.T) {
	summary, err := Check("../../clickd.example.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, summary)
	assert.Equal(t, "click: 11.0 CPS (single left, continuous, floor 10ms)", summary[0])
	assert.Contains(t, summary, "actuator: auto")
}

func TestHistoryDisabled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clickd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("click: {rate: 5}\nactuator: {backend: dryrun}\nlogging: {level: info}\n"), 0o644))

	_, err := History(context.Background(), path, 10)
	assert.ErrorIs(t, err, storage.ErrDisabled)
}

func TestHistoryReadsStore(t *testing.T) {
	dir := t.TempDir()
	prefix := filepath.Join(dir, "hist")
	path := filepath.Join(dir, "clickd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("click: {rate: 5}\nactuator: {backend: dryrun}\nlogging: {level: info}\nstorage: {driver: file, path: "+prefix+"}\n"), 0o644))

	st, err := storage.Open(storage.Config{Driver: "file", Path: prefix}, logx.Nop())
	require.NoError(t, err)
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		start := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, st.RecordSession(context.Background(), storage.SessionRecord{
			ID: id, StartedAt: start, EndedAt: start.Add(time.Second), Outcome: "stopped",
		}))
	}
	require.NoError(t, st.Close())

	recs, err := History(context.Background(), path, 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "c", recs[0].ID)
	assert.Equal(t, "b", recs[1].ID)
}
