package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"EmaScreen/internal/domain/models"
	"EmaScreen/internal/domain/repository"
	"EmaScreen/pkg/logger"
	"EmaScreen/pkg/util"
)

// Screener maintains the per-instrument EMA cache: an in-memory snapshot
// serving reads without touching storage, backed by an EmaStore so the
// snapshot survives restarts. Entries are replaced atomically, so readers
// never observe a half-updated instrument.
type Screener struct {
	period  int
	history repository.HistoryStore
	store   repository.EmaStore
	logger  *logger.Logger

	mu      sync.RWMutex
	entries map[string]*models.EmaEntry
}

// NewScreener creates the cache. Call Load before serving reads.
func NewScreener(period int, history repository.HistoryStore, store repository.EmaStore, log *logger.Logger) *Screener {
	return &Screener{
		period:  period,
		history: history,
		store:   store,
		logger:  log,
		entries: make(map[string]*models.EmaEntry),
	}
}

// Period returns the configured EMA period.
func (s *Screener) Period() int { return s.period }

// Load rebuilds the in-memory snapshot from the persisted entries. Entries
// computed under a different period are dropped; their instruments recompute
// from full history on the next update.
func (s *Screener) Load(ctx context.Context) error {
	persisted, err := s.store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load ema cache: %w", err)
	}

	entries := make(map[string]*models.EmaEntry, len(persisted))
	dropped := 0
	for _, e := range persisted {
		if e.Period != s.period {
			dropped++
			continue
		}
		entries[e.Symbol] = e
	}

	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()

	s.logger.Info("ema cache loaded",
		logger.Int("entries", len(entries)),
		logger.Int("dropped", dropped),
		logger.Int("period", s.period))
	return nil
}

// Update folds newBars into symbol's cached entry. With no prior entry (or
// after a period change) it recomputes from the full stored series; otherwise
// it advances the existing EMA one bar at a time. Bars at or before the
// entry's LastBarDate are ignored.
//
// When the stored series is still shorter than the period, the partial entry
// is cached and persisted so progress is kept, and ErrInsufficientHistory is
// returned alongside it.
func (s *Screener) Update(ctx context.Context, symbol string, newBars []models.PriceBar) (*models.EmaEntry, error) {
	s.mu.RLock()
	prev := s.entries[symbol]
	s.mu.RUnlock()

	var next *models.EmaEntry
	var err error
	if prev == nil || !prev.Ready() {
		next, err = s.recompute(ctx, symbol)
	} else {
		next, err = s.advance(prev, newBars)
	}
	if next == nil {
		return nil, err
	}

	if saveErr := s.store.Save(ctx, next); saveErr != nil {
		return nil, saveErr
	}
	s.mu.Lock()
	s.entries[symbol] = next
	s.mu.Unlock()
	return next, err
}

// Rebuild replaces symbol's cached entry with one recomputed from the full
// stored series. Needed when stored bars have moved past the cached anchor,
// which happens when a run stopped between append and fold: advancing from
// the stale anchor would skip the unfolded bars for good.
func (s *Screener) Rebuild(ctx context.Context, symbol string) (*models.EmaEntry, error) {
	next, err := s.recompute(ctx, symbol)
	if next == nil {
		return nil, err
	}
	if saveErr := s.store.Save(ctx, next); saveErr != nil {
		return nil, saveErr
	}
	s.mu.Lock()
	s.entries[symbol] = next
	s.mu.Unlock()
	return next, err
}

// recompute derives the entry from the complete stored series.
func (s *Screener) recompute(ctx context.Context, symbol string) (*models.EmaEntry, error) {
	bars, err := s.history.ReadRange(ctx, symbol, time.Time{}, util.DateOnly(time.Now().UTC()))
	if err != nil {
		return nil, fmt.Errorf("recompute %s: %w", symbol, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("recompute %s: no stored bars: %w", symbol, models.ErrInsufficientHistory)
	}

	last := bars[len(bars)-1]
	entry := &models.EmaEntry{
		Symbol:      symbol,
		LastClose:   last.Close,
		LastBarDate: last.Date,
		UpdatedAt:   time.Now().UTC(),
		DataPoints:  len(bars),
		Period:      s.period,
	}

	ema, ok := emaFromScratch(closesOf(bars), s.period)
	if !ok {
		return entry, fmt.Errorf("recompute %s: %d of %d bars: %w",
			symbol, len(bars), s.period, models.ErrInsufficientHistory)
	}
	entry.EmaValue = ema
	return entry, nil
}

// advance folds newBars into a ready entry without touching storage.
func (s *Screener) advance(prev *models.EmaEntry, newBars []models.PriceBar) (*models.EmaEntry, error) {
	next := *prev
	next.UpdatedAt = time.Now().UTC()

	alpha := emaAlpha(s.period)
	for _, b := range newBars {
		if !b.Date.After(next.LastBarDate) {
			continue
		}
		next.EmaValue = foldEma(next.EmaValue, b.Close, alpha)
		next.LastClose = b.Close
		next.LastBarDate = b.Date
		next.DataPoints++
	}
	return &next, nil
}

// Snapshot returns a copy of symbol's cached entry.
func (s *Screener) Snapshot(symbol string) (*models.EmaEntry, error) {
	s.mu.RLock()
	e := s.entries[symbol]
	s.mu.RUnlock()
	if e == nil {
		return nil, fmt.Errorf("%s: %w", symbol, models.ErrNoEntry)
	}
	cp := *e
	return &cp, nil
}

// SnapshotAll returns copies of every cached entry, ready or warming up.
func (s *Screener) SnapshotAll() []*models.EmaEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.EmaEntry, 0, len(s.entries))
	for _, e := range s.entries {
		cp := *e
		out = append(out, &cp)
	}
	return out
}

// LastBarDate returns the newest bar date folded into symbol's entry.
func (s *Screener) LastBarDate(symbol string) (time.Time, bool) {
	s.mu.RLock()
	e := s.entries[symbol]
	s.mu.RUnlock()
	if e == nil {
		return time.Time{}, false
	}
	return e.LastBarDate, true
}

// Summary counts cached entries by position. Instruments in universe with no
// entry yet count as warming up.
func (s *Screener) Summary(universe int) models.ScreenSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := models.ScreenSummary{Total: universe}
	for _, e := range s.entries {
		if !e.Ready() {
			sum.WarmingUp++
			continue
		}
		if e.PositionToEma() == models.PositionAbove {
			sum.Above++
		} else {
			sum.Below++
		}
	}
	if missing := universe - len(s.entries); missing > 0 {
		sum.WarmingUp += missing
	}
	return sum
}
