package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"EmaScreen/internal/domain/models"
	internalrepo "EmaScreen/internal/repository"
	"EmaScreen/pkg/cache"
	"EmaScreen/pkg/logger"
)

type stubRegistry struct{ symbols []string }

func (r stubRegistry) Symbols() []string { return r.symbols }

type stubSource struct {
	mu          sync.Mutex
	bars        map[string][]models.PriceBar
	errs        map[string]error
	calls       []string
	ignoreSince bool
}

func (s *stubSource) FetchMissing(_ context.Context, symbol string, since time.Time) ([]models.PriceBar, error) {
	s.mu.Lock()
	s.calls = append(s.calls, symbol)
	s.mu.Unlock()
	if err := s.errs[symbol]; err != nil {
		return nil, err
	}
	if s.ignoreSince {
		return s.bars[symbol], nil
	}
	var out []models.PriceBar
	for _, b := range s.bars[symbol] {
		if b.Date.After(since) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *stubSource) fetched() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

type nopMetrics struct{}

func (nopMetrics) RecordFetch(string)                  {}
func (nopMetrics) RecordError(string)                  {}
func (nopMetrics) RecordRunDuration(float64)           {}
func (nopMetrics) RecordInstrumentsProcessed(string, int) {}
func (nopMetrics) SetScreenCounts(int, int, int)       {}

type updaterFixture struct {
	updater  *Updater
	screener *Screener
	history  *internalrepo.MemoryHistory
	state    *internalrepo.StateStore
	source   *stubSource
	symbols  []string
}

// afterCutoff is a Friday session well past the 15:30 close.
var afterCutoff = time.Date(2026, 8, 28, 16, 0, 0, 0, time.UTC)

func newUpdaterFixture(t *testing.T, period int, symbols []string) *updaterFixture {
	t.Helper()
	history := internalrepo.NewMemoryHistory()
	state := internalrepo.NewStateStore(cache.NewMemoryStore())
	screener := NewScreener(period, history, state, logger.Nop())
	source := &stubSource{bars: map[string][]models.PriceBar{}, errs: map[string]error{}}

	u := NewUpdater(
		UpdaterConfig{Location: time.UTC, CutoffHour: 15, CutoffMinute: 30},
		stubRegistry{symbols}, history, source, screener,
		state, state, internalrepo.NoopPublisher{}, nopMetrics{}, logger.Nop(),
	)
	u.now = func() time.Time { return afterCutoff }
	return &updaterFixture{
		updater: u, screener: screener, history: history,
		state: state, source: source, symbols: symbols,
	}
}

// seed gives every symbol enough source bars to warm up immediately.
func (f *updaterFixture) seed(n int) {
	start := afterCutoff.AddDate(0, 0, -n-10)
	for _, sym := range f.symbols {
		f.source.bars[sym] = testBars(time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC), syntheticCloses(n))
	}
}

func (f *updaterFixture) runToCompletion(t *testing.T, ctx context.Context) {
	t.Helper()
	symbols, runID, _, err := f.updater.planRun(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, symbols)
	f.updater.lastRunID = runID
	f.updater.setState(models.RunRunning)
	f.updater.run(ctx, runID, symbols)
}

func TestUpdaterBeforeCutoffDoesNothing(t *testing.T) {
	f := newUpdaterFixture(t, 3, []string{"A"})
	f.updater.now = func() time.Time {
		return time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	}

	result, err := f.updater.TriggerUpdate(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Started)
	assert.Equal(t, "before session cutoff", result.Reason)
	assert.Empty(t, f.source.fetched())
}

func TestUpdaterFullRunAdvancesMarker(t *testing.T) {
	ctx := context.Background()
	f := newUpdaterFixture(t, 3, []string{"A", "B"})
	f.seed(5)

	f.runToCompletion(t, ctx)

	marker, err := f.updater.markers.Read(ctx)
	require.NoError(t, err)
	require.NotNil(t, marker)
	assert.Equal(t, "2026-08-28", marker.LastSuccessDate)

	for _, sym := range f.symbols {
		e, err := f.screener.Snapshot(sym)
		require.NoError(t, err)
		assert.True(t, e.Ready())
	}

	// clean run clears its ledger
	pending, failed, err := f.state.Counts(ctx, "2026-08-28")
	require.NoError(t, err)
	assert.Zero(t, pending)
	assert.Zero(t, failed)
}

func TestUpdaterNoDuplicateSameDayRun(t *testing.T) {
	ctx := context.Background()
	f := newUpdaterFixture(t, 3, []string{"A"})
	f.seed(5)
	f.runToCompletion(t, ctx)

	result, err := f.updater.TriggerUpdate(ctx)
	require.NoError(t, err)
	assert.False(t, result.Started)
	assert.Contains(t, result.Reason, "already updated")
	assert.Len(t, f.source.fetched(), 1, "no second fetch pass")
}

func TestUpdaterRejectsConcurrentRun(t *testing.T) {
	f := newUpdaterFixture(t, 3, []string{"A"})
	f.updater.setState(models.RunRunning)

	_, err := f.updater.TriggerUpdate(context.Background())
	assert.ErrorIs(t, err, models.ErrRunActive)
}

func TestUpdaterResumeSkipsDoneInstruments(t *testing.T) {
	ctx := context.Background()
	f := newUpdaterFixture(t, 3, []string{"A", "B", "C"})
	f.seed(5)

	// simulate a crash: A finished, B and C never ran
	runID := "2026-08-28"
	require.NoError(t, f.state.BeginRun(ctx, runID, f.symbols))
	require.NoError(t, f.state.Mark(ctx, runID, "A", models.LedgerDone, nil))

	// resume takes priority even before the cutoff
	f.updater.now = func() time.Time {
		return time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	}
	symbols, gotRunID, reason, err := f.updater.planRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, runID, gotRunID)
	assert.ElementsMatch(t, []string{"B", "C"}, symbols)
	assert.Contains(t, reason, "resuming")

	f.updater.lastRunID = gotRunID
	f.updater.setState(models.RunRunning)
	f.updater.run(ctx, gotRunID, symbols)

	assert.NotContains(t, f.source.fetched(), "A", "done instrument is not refetched")

	marker, err := f.updater.markers.Read(ctx)
	require.NoError(t, err)
	require.NotNil(t, marker)
	assert.Equal(t, runID, marker.LastSuccessDate)
}

func TestUpdaterFailureIsContained(t *testing.T) {
	ctx := context.Background()
	f := newUpdaterFixture(t, 3, []string{"A", "B", "C"})
	f.seed(5)
	f.source.errs["B"] = errors.New("http 503")

	f.runToCompletion(t, ctx)

	// A and C still completed
	for _, sym := range []string{"A", "C"} {
		e, err := f.screener.Snapshot(sym)
		require.NoError(t, err)
		assert.True(t, e.Ready())
	}

	// the failure is journaled, and the marker still advances
	entry, err := f.state.Entry(ctx, "2026-08-28", "B")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, models.LedgerFailed, entry.Status)
	assert.Contains(t, entry.LastError, "503")

	marker, err := f.updater.markers.Read(ctx)
	require.NoError(t, err)
	require.NotNil(t, marker)
	assert.Equal(t, "2026-08-28", marker.LastSuccessDate)

	status, err := f.updater.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, status.Failed)
}

func TestUpdaterOutOfOrderBarsFailInstrument(t *testing.T) {
	ctx := context.Background()
	f := newUpdaterFixture(t, 3, []string{"A"})

	day := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	stored := testBars(day, []float64{10, 11})
	require.NoError(t, f.history.Append(ctx, "A", stored))

	// source misbehaves and returns bars on already stored dates
	f.source.bars["A"] = stored
	f.source.ignoreSince = true

	f.updater.setState(models.RunRunning)
	f.updater.lastRunID = "2026-08-28"
	require.NoError(t, f.state.BeginRun(ctx, "2026-08-28", []string{"A"}))
	err := f.updater.processInstrument(ctx, "2026-08-28", "A")
	require.ErrorIs(t, err, models.ErrOutOfOrderBar)

	// the stored series is untouched
	last, ok, err := f.history.LastDate(ctx, "A")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, stored[1].Date, last)
}

func TestUpdaterRecoversFromUnfoldedAppend(t *testing.T) {
	ctx := context.Background()
	f := newUpdaterFixture(t, 3, []string{"A"})

	day := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
	closes := syntheticCloses(6)
	bars := testBars(day, closes)

	// the first five bars reached both history and the cache
	require.NoError(t, f.history.Append(ctx, "A", bars[:5]))
	_, err := f.screener.Update(ctx, "A", nil)
	require.NoError(t, err)

	// the sixth was appended but never folded (process died in between)
	require.NoError(t, f.history.Append(ctx, "A", bars[5:]))
	anchor, ok := f.screener.LastBarDate("A")
	require.True(t, ok)
	require.Equal(t, bars[4].Date, anchor)

	f.runToCompletion(t, ctx)

	// the instrument completes instead of wedging on out-of-order appends,
	// and the entry catches up to the stored series
	entry, err := f.screener.Snapshot("A")
	require.NoError(t, err)
	assert.Equal(t, bars[5].Date, entry.LastBarDate)
	assert.Equal(t, 6, entry.DataPoints)

	want, ok := emaFromScratch(closes, 3)
	require.True(t, ok)
	assert.InEpsilon(t, want, entry.EmaValue, 1e-9)

	pending, failed, err := f.state.Counts(ctx, "2026-08-28")
	require.NoError(t, err)
	assert.Zero(t, pending)
	assert.Zero(t, failed)

	marker, err := f.updater.markers.Read(ctx)
	require.NoError(t, err)
	require.NotNil(t, marker)
	assert.Equal(t, "2026-08-28", marker.LastSuccessDate)
}

func TestUpdaterCancellationPreservesLedger(t *testing.T) {
	f := newUpdaterFixture(t, 3, []string{"A", "B"})
	f.seed(5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f.updater.setState(models.RunRunning)
	f.updater.lastRunID = "2026-08-28"
	f.updater.run(ctx, "2026-08-28", f.symbols)

	pending, _, err := f.state.Counts(context.Background(), "2026-08-28")
	require.NoError(t, err)
	assert.Equal(t, 2, pending, "cancelled run keeps its pending entries")

	marker, err := f.updater.markers.Read(context.Background())
	require.NoError(t, err)
	assert.Nil(t, marker, "marker must not advance on a cancelled run")

	status, err := f.updater.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.RunIdle, status.State)
}

func TestUpdaterWarmingUpCountsAsDone(t *testing.T) {
	ctx := context.Background()
	f := newUpdaterFixture(t, 200, []string{"A"})
	f.seed(50) // not enough for the period

	f.runToCompletion(t, ctx)

	marker, err := f.updater.markers.Read(ctx)
	require.NoError(t, err)
	require.NotNil(t, marker)

	e, err := f.screener.Snapshot("A")
	require.NoError(t, err)
	assert.False(t, e.Ready())
	assert.Equal(t, 50, e.DataPoints)
}

func TestUpdaterTriggerRunsInBackground(t *testing.T) {
	ctx := context.Background()
	f := newUpdaterFixture(t, 3, []string{"A"})
	f.seed(5)
	f.updater.Start(ctx)

	result, err := f.updater.TriggerUpdate(ctx)
	require.NoError(t, err)
	require.True(t, result.Started)

	require.Eventually(t, func() bool {
		status, err := f.updater.Status(ctx)
		return err == nil && status.State == models.RunIdle && status.LastSuccessDate == "2026-08-28"
	}, 5*time.Second, 10*time.Millisecond)
}
