package repository

import (
	"context"
	"time"

	"EmaScreen/internal/domain/models"
)

// HistoryStore owns the per-instrument append-only bar series. Every
// successful Append is flushed to durable storage before the call returns,
// so committed bars survive a crash immediately afterwards.
type HistoryStore interface {
	// Append persists bars for symbol. The whole batch is rejected with
	// models.ErrOutOfOrderBar if any bar is not strictly newer than the
	// stored series (and strictly increasing within the batch).
	Append(ctx context.Context, symbol string, bars []models.PriceBar) error

	// ReadRange returns bars with from <= date <= to in ascending order.
	// An instrument with no data in range yields an empty slice, not an error.
	ReadRange(ctx context.Context, symbol string, from, to time.Time) ([]models.PriceBar, error)

	// LastDate returns the newest stored bar date for symbol.
	LastDate(ctx context.Context, symbol string) (time.Time, bool, error)

	Health(ctx context.Context) error
	Close() error
}

// BarSource retrieves missing price bars from the external market-data
// provider. Calls are rate limited by a token shared across all instruments
// of a run.
type BarSource interface {
	// FetchMissing returns all bars strictly after since up to the most
	// recent completed session, ascending. An empty slice means the
	// instrument is already current, not an error.
	FetchMissing(ctx context.Context, symbol string, since time.Time) ([]models.PriceBar, error)
}

// EmaStore persists EMA cache entries so the in-memory snapshot can be
// rebuilt after a restart.
type EmaStore interface {
	Save(ctx context.Context, entry *models.EmaEntry) error
	LoadAll(ctx context.Context) ([]*models.EmaEntry, error)
}

// ProgressLedger is the durable per-instrument completion record for one
// batch run. A run interrupted mid-way is resumed from here: done
// instruments are skipped, failed and in_progress ones retried.
type ProgressLedger interface {
	// BeginRun creates pending entries for every symbol under runID.
	// Existing entries for the same run are kept, making restart idempotent.
	BeginRun(ctx context.Context, runID string, symbols []string) error
	Mark(ctx context.Context, runID, symbol string, status models.LedgerStatus, cause error) error
	Entry(ctx context.Context, runID, symbol string) (*models.LedgerEntry, error)
	// Recover returns every symbol not yet done for runID.
	Recover(ctx context.Context, runID string) ([]string, error)
	IsComplete(ctx context.Context, runID string) (bool, error)
	Counts(ctx context.Context, runID string) (pending, failed int, err error)
	Clear(ctx context.Context, runID string) error
}

// RunMarkerStore persists the run-level last-success marker.
type RunMarkerStore interface {
	Read(ctx context.Context) (*models.RunMarker, error) // nil when never written
	Write(ctx context.Context, marker *models.RunMarker) error
}

// UpdatePublisher emits recomputed cache entries for downstream consumers.
type UpdatePublisher interface {
	PublishEntry(ctx context.Context, entry *models.EmaEntry) error
	Close() error
}

// Registry supplies the fixed instrument universe for a run.
type Registry interface {
	Symbols() []string
}

// Metrics records operational metrics for runs and fetches.
type Metrics interface {
	RecordFetch(symbol string)
	RecordError(kind string)
	RecordRunDuration(seconds float64)
	RecordInstrumentsProcessed(status string, n int)
	SetScreenCounts(above, below, warmingUp int)
}
