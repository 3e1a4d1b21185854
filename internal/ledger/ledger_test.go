package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), ".forge", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestLedger_RecordsRun(t *testing.T) {
	l := openTemp(t)
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, l.Begin(ctx, "run-1", "windows", "2.6.0", "reset", start))
	require.NoError(t, l.Transition(ctx, "run-1", "fetching", start.Add(time.Second)))
	require.NoError(t, l.Transition(ctx, "run-1", "patching", start.Add(2*time.Second)))
	require.NoError(t, l.Finish(ctx, "run-1", "done", "", start.Add(time.Minute)))

	runs, err := l.Recent(ctx, 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)
	assert.Equal(t, "windows", runs[0].Platform)
	assert.Equal(t, "2.6.0", runs[0].Version)
	assert.Equal(t, "done", runs[0].State)
	assert.True(t, runs[0].StartedAt.Equal(start))
	assert.True(t, runs[0].FinishedAt.Equal(start.Add(time.Minute)))

	trans, err := l.Transitions(ctx, "run-1")
	require.NoError(t, err)
	var states []string
	for _, tr := range trans {
		states = append(states, tr.State)
	}
	assert.Equal(t, []string{"reset", "fetching", "patching", "done"}, states)
}

func TestLedger_RecentNewestFirst(t *testing.T) {
	l := openTemp(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, l.Begin(ctx, id, "linux", "", "reset", base.Add(time.Duration(i)*time.Hour)))
	}
	require.NoError(t, l.Finish(ctx, "b", "failed", "download failed", base.Add(90*time.Minute)))

	runs, err := l.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].ID)
	assert.True(t, runs[0].FinishedAt.IsZero())
	assert.Equal(t, "b", runs[1].ID)
	assert.Equal(t, "download failed", runs[1].Error)
}

func TestLedger_RecentOrdersWithinOneSecond(t *testing.T) {
	l := openTemp(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 5, 0, time.UTC)

	require.NoError(t, l.Begin(ctx, "whole", "linux", "", "reset", base))
	require.NoError(t, l.Begin(ctx, "tenth", "linux", "", "reset", base.Add(100*time.Millisecond)))
	require.NoError(t, l.Begin(ctx, "micro", "linux", "", "reset", base.Add(120*time.Microsecond)))

	runs, err := l.Recent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, []string{"tenth", "micro", "whole"}, []string{runs[0].ID, runs[1].ID, runs[2].ID})
	assert.True(t, runs[2].StartedAt.Equal(base))
}

func TestParseTime_AcceptsTrimmedFractions(t *testing.T) {
	want := time.Date(2026, 3, 1, 12, 0, 5, 100_000_000, time.UTC)
	assert.True(t, parseTime("2026-03-01T12:00:05.1Z").Equal(want))
	assert.True(t, parseTime(want.Format(timeLayout)).Equal(want))
}

func TestLedger_UnknownRun(t *testing.T) {
	l := openTemp(t)
	err := l.Transition(context.Background(), "missing", "done", time.Now())
	assert.ErrorContains(t, err, "unknown run")
}

func TestLedger_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	l, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, l.Begin(context.Background(), "x", "darwin", "1.0.0", "reset", time.Now()))
	require.NoError(t, l.Close())

	l, err = Open(path)
	require.NoError(t, err)
	defer l.Close()
	runs, err := l.Recent(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
	assert.Equal(t, path, l.Path())
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open("")
	assert.Error(t, err)
}
