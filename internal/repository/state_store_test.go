package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"EmaScreen/internal/domain/models"
	"EmaScreen/pkg/cache"
)

func newStateStore() *StateStore {
	return NewStateStore(cache.NewMemoryStore())
}

func TestStateStoreEmaRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newStateStore()

	entry := &models.EmaEntry{
		Symbol:      "RELIANCE",
		LastClose:   2850.5,
		EmaValue:    2801.22,
		LastBarDate: time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC),
		UpdatedAt:   time.Now().UTC(),
		DataPoints:  412,
		Period:      200,
	}
	require.NoError(t, s.Save(ctx, entry))

	all, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, entry.Symbol, all[0].Symbol)
	assert.Equal(t, entry.EmaValue, all[0].EmaValue)
	assert.Equal(t, entry.DataPoints, all[0].DataPoints)
}

func TestStateStoreLoadAllEmpty(t *testing.T) {
	all, err := newStateStore().LoadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestLedgerBeginRunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newStateStore()
	runID := "2026-08-28"

	require.NoError(t, s.BeginRun(ctx, runID, []string{"A", "B"}))
	require.NoError(t, s.Mark(ctx, runID, "A", models.LedgerDone, nil))

	// restarting the same run must not reset A back to pending
	require.NoError(t, s.BeginRun(ctx, runID, []string{"A", "B"}))

	entry, err := s.Entry(ctx, runID, "A")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, models.LedgerDone, entry.Status)
}

func TestLedgerRecoverReturnsUnfinished(t *testing.T) {
	ctx := context.Background()
	s := newStateStore()
	runID := "2026-08-28"

	require.NoError(t, s.BeginRun(ctx, runID, []string{"A", "B", "C", "D"}))
	require.NoError(t, s.Mark(ctx, runID, "A", models.LedgerDone, nil))
	require.NoError(t, s.Mark(ctx, runID, "B", models.LedgerFailed, errors.New("boom")))
	require.NoError(t, s.Mark(ctx, runID, "C", models.LedgerInProgress, nil))

	remaining, err := s.Recover(ctx, runID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"B", "C", "D"}, remaining)
}

func TestLedgerAttemptsAndLastError(t *testing.T) {
	ctx := context.Background()
	s := newStateStore()
	runID := "2026-08-28"

	require.NoError(t, s.BeginRun(ctx, runID, []string{"A"}))
	require.NoError(t, s.Mark(ctx, runID, "A", models.LedgerInProgress, nil))
	require.NoError(t, s.Mark(ctx, runID, "A", models.LedgerFailed, errors.New("http 503")))
	require.NoError(t, s.Mark(ctx, runID, "A", models.LedgerInProgress, nil))

	entry, err := s.Entry(ctx, runID, "A")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, 2, entry.Attempts)

	failed, err := s.Entry(ctx, runID, "A")
	require.NoError(t, err)
	assert.Equal(t, models.LedgerInProgress, failed.Status)
}

func TestLedgerCompletionAndCounts(t *testing.T) {
	ctx := context.Background()
	s := newStateStore()
	runID := "2026-08-28"

	complete, err := s.IsComplete(ctx, runID)
	require.NoError(t, err)
	assert.False(t, complete, "an empty ledger is not a finished run")

	require.NoError(t, s.BeginRun(ctx, runID, []string{"A", "B"}))

	pending, failed, err := s.Counts(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, 2, pending)
	assert.Zero(t, failed)

	require.NoError(t, s.Mark(ctx, runID, "A", models.LedgerDone, nil))
	complete, err = s.IsComplete(ctx, runID)
	require.NoError(t, err)
	assert.False(t, complete)

	require.NoError(t, s.Mark(ctx, runID, "B", models.LedgerFailed, errors.New("boom")))
	complete, err = s.IsComplete(ctx, runID)
	require.NoError(t, err)
	assert.True(t, complete, "failed is a terminal state")

	pending, failed, err = s.Counts(ctx, runID)
	require.NoError(t, err)
	assert.Zero(t, pending)
	assert.Equal(t, 1, failed)
}

func TestLedgerClear(t *testing.T) {
	ctx := context.Background()
	s := newStateStore()
	runID := "2026-08-28"

	require.NoError(t, s.BeginRun(ctx, runID, []string{"A"}))
	require.NoError(t, s.Clear(ctx, runID))

	remaining, err := s.Recover(ctx, runID)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestLedgerEntryMiss(t *testing.T) {
	entry, err := newStateStore().Entry(context.Background(), "2026-08-28", "NOPE")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestRunMarkerRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newStateStore()

	marker, err := s.Read(ctx)
	require.NoError(t, err)
	assert.Nil(t, marker, "unwritten marker reads as nil")

	want := &models.RunMarker{
		LastSuccessDate: "2026-08-28",
		Cutoff:          "15:30",
		WrittenAt:       time.Now().UTC(),
	}
	require.NoError(t, s.Write(ctx, want))

	got, err := s.Read(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.LastSuccessDate, got.LastSuccessDate)
	assert.Equal(t, want.Cutoff, got.Cutoff)
}

func TestRunsAreIsolatedByID(t *testing.T) {
	ctx := context.Background()
	s := newStateStore()

	require.NoError(t, s.BeginRun(ctx, "2026-08-27", []string{"A"}))
	require.NoError(t, s.BeginRun(ctx, "2026-08-28", []string{"B"}))

	remaining, err := s.Recover(ctx, "2026-08-28")
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, remaining)
}
