package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"EmaScreen/internal/domain/models"
	"EmaScreen/internal/domain/repository"
	"EmaScreen/pkg/logger"
	"EmaScreen/pkg/util"
)

// UpdaterConfig carries the market-session parameters that decide staleness.
type UpdaterConfig struct {
	Location     *time.Location
	CutoffHour   int
	CutoffMinute int
}

// Updater drives batch refreshes of the whole instrument universe. At most
// one run is active per process; progress is journaled in the ledger so an
// interrupted run resumes where it stopped instead of starting over.
type Updater struct {
	cfg       UpdaterConfig
	registry  repository.Registry
	history   repository.HistoryStore
	source    repository.BarSource
	screener  *Screener
	ledger    repository.ProgressLedger
	markers   repository.RunMarkerStore
	publisher repository.UpdatePublisher
	metrics   repository.Metrics
	logger    *logger.Logger

	now func() time.Time

	mu        sync.Mutex
	state     models.RunState
	baseCtx   context.Context
	lastRunID string
}

// NewUpdater creates the orchestrator in the idle state.
func NewUpdater(
	cfg UpdaterConfig,
	registry repository.Registry,
	history repository.HistoryStore,
	source repository.BarSource,
	screener *Screener,
	ledger repository.ProgressLedger,
	markers repository.RunMarkerStore,
	publisher repository.UpdatePublisher,
	metrics repository.Metrics,
	log *logger.Logger,
) *Updater {
	return &Updater{
		cfg:       cfg,
		registry:  registry,
		history:   history,
		source:    source,
		screener:  screener,
		ledger:    ledger,
		markers:   markers,
		publisher: publisher,
		metrics:   metrics,
		logger:    log,
		now:       time.Now,
		state:     models.RunIdle,
		baseCtx:   context.Background(),
	}
}

// Start binds the context that background runs inherit. Cancelling it stops
// an active run at the next instrument boundary, leaving the ledger intact.
func (u *Updater) Start(ctx context.Context) {
	u.mu.Lock()
	u.baseCtx = ctx
	u.mu.Unlock()
}

// TriggerUpdate checks staleness and, when the universe is behind the most
// recent completed session, launches a background run. It returns
// models.ErrRunActive while a run is in flight. A trigger that finds the
// universe current is not an error; the result carries the reason.
func (u *Updater) TriggerUpdate(ctx context.Context) (models.TriggerResult, error) {
	u.mu.Lock()
	if u.state != models.RunIdle {
		u.mu.Unlock()
		return models.TriggerResult{}, models.ErrRunActive
	}
	u.state = models.RunChecking
	base := u.baseCtx
	u.mu.Unlock()

	symbols, runID, reason, err := u.planRun(ctx)
	if err != nil {
		u.setState(models.RunIdle)
		return models.TriggerResult{}, err
	}
	if len(symbols) == 0 {
		u.setState(models.RunIdle)
		return models.TriggerResult{Started: false, Reason: reason}, nil
	}

	u.mu.Lock()
	prevRunID := u.lastRunID
	u.state = models.RunRunning
	u.lastRunID = runID
	u.mu.Unlock()

	// a previous run's ledger (kept around for failure visibility) is
	// superseded once a new run begins
	if prevRunID != "" && prevRunID != runID {
		if err := u.ledger.Clear(ctx, prevRunID); err != nil {
			u.logger.Warn("stale ledger clear failed",
				logger.String("run_id", prevRunID), logger.Error(err))
		}
	}

	go u.run(base, runID, symbols)
	return models.TriggerResult{Started: true, Reason: reason}, nil
}

// planRun decides whether a run is due and which symbols it covers.
// An unfinished ledger for today's run always resumes, even before the
// session cutoff.
func (u *Updater) planRun(ctx context.Context) (symbols []string, runID, reason string, err error) {
	now := u.now().In(u.cfg.Location)
	today := util.TradingDate(now, u.cfg.Location)
	runID = today

	remaining, err := u.ledger.Recover(ctx, runID)
	if err != nil {
		return nil, "", "", err
	}
	if len(remaining) > 0 {
		u.logger.Info("resuming interrupted run",
			logger.String("run_id", runID),
			logger.Int("remaining", len(remaining)))
		return remaining, runID, "resuming interrupted run", nil
	}

	if !util.PastCutoff(now, u.cfg.Location, u.cfg.CutoffHour, u.cfg.CutoffMinute) {
		return nil, "", "before session cutoff", nil
	}

	marker, err := u.markers.Read(ctx)
	if err != nil {
		return nil, "", "", err
	}
	if marker != nil && marker.LastSuccessDate >= today {
		return nil, "", "already updated for " + today, nil
	}

	return u.registry.Symbols(), runID, "run started", nil
}

func (u *Updater) run(ctx context.Context, runID string, symbols []string) {
	started := u.now()
	u.logger.Info("run started",
		logger.String("run_id", runID),
		logger.Int("instruments", len(symbols)))

	if err := u.ledger.BeginRun(ctx, runID, symbols); err != nil {
		u.logger.Error("begin run failed", logger.Error(err), logger.String("run_id", runID))
		u.metrics.RecordError("ledger")
		u.setState(models.RunIdle)
		return
	}

	var done, failed int
	for _, symbol := range symbols {
		select {
		case <-ctx.Done():
			u.logger.Warn("run cancelled, ledger preserved",
				logger.String("run_id", runID),
				logger.Int("done", done))
			u.setState(models.RunIdle)
			return
		default:
		}

		switch err := u.processInstrument(ctx, runID, symbol); {
		case err == nil:
			done++
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			u.logger.Warn("run cancelled, ledger preserved",
				logger.String("run_id", runID),
				logger.Int("done", done))
			u.setState(models.RunIdle)
			return
		case errors.Is(err, errLedgerWrite):
			// cannot journal progress: resuming would be unsafe, stop the run
			u.logger.Error("ledger write failed, aborting run",
				logger.Error(err), logger.String("run_id", runID))
			u.metrics.RecordError("ledger")
			u.setState(models.RunIdle)
			return
		default:
			failed++
		}
	}

	u.finalize(ctx, runID, done, failed, started)
}

// errLedgerWrite marks ledger persistence failures, the only per-instrument
// error class that aborts a run.
var errLedgerWrite = errors.New("ledger write failed")

// processInstrument refreshes one symbol end to end: fetch missing bars,
// append to history, fold into the EMA cache, publish, and journal the
// outcome. Instrument-level failures are recorded as failed and returned;
// the caller keeps going.
func (u *Updater) processInstrument(ctx context.Context, runID, symbol string) error {
	entry, err := u.ledger.Entry(ctx, runID, symbol)
	if err != nil {
		return errors.Join(errLedgerWrite, err)
	}
	if entry != nil && entry.Status == models.LedgerDone {
		return nil
	}

	if err := u.ledger.Mark(ctx, runID, symbol, models.LedgerInProgress, nil); err != nil {
		return errors.Join(errLedgerWrite, err)
	}

	since, _ := u.screener.LastBarDate(symbol)
	histLast, stored, err := u.history.LastDate(ctx, symbol)
	if err != nil {
		return u.markFailed(ctx, runID, symbol, err)
	}

	// stored bars newer than the cache anchor mean a previous run stopped
	// between append and fold; fetch from the stored tail and rebuild the
	// entry from full history so the anchor catches up
	rebuild := stored && histLast.After(since)
	if rebuild {
		since = histLast
	}

	u.metrics.RecordFetch(symbol)
	bars, err := u.source.FetchMissing(ctx, symbol, since)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		u.metrics.RecordError("fetch")
		return u.markFailed(ctx, runID, symbol, err)
	}

	if len(bars) > 0 {
		if err := u.history.Append(ctx, symbol, bars); err != nil {
			u.metrics.RecordError("store")
			return u.markFailed(ctx, runID, symbol, err)
		}
	}

	var cached *models.EmaEntry
	if rebuild {
		cached, err = u.screener.Rebuild(ctx, symbol)
	} else {
		cached, err = u.screener.Update(ctx, symbol, bars)
	}
	if err != nil && !errors.Is(err, models.ErrInsufficientHistory) {
		u.metrics.RecordError("compute")
		return u.markFailed(ctx, runID, symbol, err)
	}
	// warming up is a normal state, the instrument is done for this run

	if cached != nil && cached.Ready() {
		if err := u.publisher.PublishEntry(ctx, cached); err != nil {
			// downstream fan-out is best effort, the cache is already updated
			u.logger.Warn("publish failed", logger.String("symbol", symbol), logger.Error(err))
			u.metrics.RecordError("publish")
		}
	}

	if err := u.ledger.Mark(ctx, runID, symbol, models.LedgerDone, nil); err != nil {
		return errors.Join(errLedgerWrite, err)
	}
	return nil
}

// markFailed journals an instrument failure. A ledger error here escalates
// to a run abort like any other ledger write failure.
func (u *Updater) markFailed(ctx context.Context, runID, symbol string, cause error) error {
	u.logger.Warn("instrument failed",
		logger.String("symbol", symbol),
		logger.String("run_id", runID),
		logger.Error(cause))
	if err := u.ledger.Mark(ctx, runID, symbol, models.LedgerFailed, cause); err != nil {
		return errors.Join(errLedgerWrite, err)
	}
	return cause
}

// finalize advances the run marker once every instrument reached a terminal
// state. Failed instruments do not hold the marker back; they are retried
// on the next run. A fully clean run also clears its ledger.
func (u *Updater) finalize(ctx context.Context, runID string, done, failed int, started time.Time) {
	u.setState(models.RunFinalizing)
	defer u.setState(models.RunIdle)

	complete, err := u.ledger.IsComplete(ctx, runID)
	if err != nil {
		u.logger.Error("completion check failed", logger.Error(err), logger.String("run_id", runID))
		u.metrics.RecordError("ledger")
		return
	}
	if !complete {
		u.logger.Warn("run left unfinished instruments, marker not advanced",
			logger.String("run_id", runID))
		return
	}

	marker := &models.RunMarker{
		LastSuccessDate: runID,
		Cutoff:          util.ClockString(u.cfg.CutoffHour, u.cfg.CutoffMinute),
		WrittenAt:       u.now().UTC(),
	}
	if err := u.markers.Write(ctx, marker); err != nil {
		u.logger.Error("run marker write failed", logger.Error(err), logger.String("run_id", runID))
		u.metrics.RecordError("ledger")
		return
	}

	if failed == 0 {
		if err := u.ledger.Clear(ctx, runID); err != nil {
			u.logger.Warn("ledger clear failed", logger.Error(err), logger.String("run_id", runID))
		}
	}

	elapsed := u.now().Sub(started)
	u.metrics.RecordRunDuration(elapsed.Seconds())
	u.metrics.RecordInstrumentsProcessed("done", done)
	u.metrics.RecordInstrumentsProcessed("failed", failed)

	sum := u.screener.Summary(len(u.registry.Symbols()))
	u.metrics.SetScreenCounts(sum.Above, sum.Below, sum.WarmingUp)

	u.logger.Info("run finished",
		logger.String("run_id", runID),
		logger.Int("done", done),
		logger.Int("failed", failed),
		logger.Duration("elapsed", elapsed))
}

// Status reports the orchestrator state, last success date, and the
// outstanding counts of the current or most recent run.
func (u *Updater) Status(ctx context.Context) (models.RunStatus, error) {
	u.mu.Lock()
	st := models.RunStatus{State: u.state}
	runID := u.lastRunID
	u.mu.Unlock()

	marker, err := u.markers.Read(ctx)
	if err != nil {
		return st, err
	}
	if marker != nil {
		st.LastSuccessDate = marker.LastSuccessDate
	}

	if runID == "" {
		// before the first trigger, today's ledger still tells us whether a
		// previous process left a run unfinished
		runID = util.TradingDate(u.now().In(u.cfg.Location), u.cfg.Location)
	}
	pending, failed, err := u.ledger.Counts(ctx, runID)
	if err != nil {
		return st, err
	}
	st.Pending, st.Failed = pending, failed
	return st, nil
}

func (u *Updater) setState(s models.RunState) {
	u.mu.Lock()
	u.state = s
	u.mu.Unlock()
}
