package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"EmaScreen/internal/domain/models"
	"EmaScreen/internal/domain/repository"
	"EmaScreen/pkg/cache"
)

const (
	emaEntriesKey = "ema:entries"
	runMarkerKey  = "run:marker"
	runKeyPrefix  = "run:ledger:"
)

// StateStore persists EMA cache entries, the progress ledger, and the run
// marker on one cache.Store (Redis in production, memory in tests). It
// implements EmaStore, ProgressLedger, and RunMarkerStore.
type StateStore struct {
	kv cache.Store
}

// NewStateStore creates the store.
func NewStateStore(kv cache.Store) *StateStore {
	return &StateStore{kv: kv}
}

var (
	_ repository.EmaStore       = (*StateStore)(nil)
	_ repository.ProgressLedger = (*StateStore)(nil)
	_ repository.RunMarkerStore = (*StateStore)(nil)
)

// --- EmaStore ---

func (s *StateStore) Save(ctx context.Context, entry *models.EmaEntry) error {
	if err := s.kv.HSet(ctx, emaEntriesKey, entry.Symbol, entry); err != nil {
		return fmt.Errorf("save ema entry %s: %w", entry.Symbol, err)
	}
	return nil
}

func (s *StateStore) LoadAll(ctx context.Context) ([]*models.EmaEntry, error) {
	raw, err := s.kv.HGetAll(ctx, emaEntriesKey)
	if err != nil {
		return nil, fmt.Errorf("load ema entries: %w", err)
	}
	entries := make([]*models.EmaEntry, 0, len(raw))
	for symbol, data := range raw {
		var e models.EmaEntry
		if err := json.Unmarshal([]byte(data), &e); err != nil {
			return nil, fmt.Errorf("decode ema entry %s: %w", symbol, err)
		}
		entries = append(entries, &e)
	}
	return entries, nil
}

// --- ProgressLedger ---

func (s *StateStore) BeginRun(ctx context.Context, runID string, symbols []string) error {
	key := runKeyPrefix + runID
	for _, sym := range symbols {
		entry := models.LedgerEntry{
			Symbol:    sym,
			Status:    models.LedgerPending,
			UpdatedAt: time.Now().UTC(),
		}
		// existing entries survive so a restarted run resumes, not resets
		if err := s.kv.HSetNX(ctx, key, sym, entry); err != nil {
			return fmt.Errorf("begin run %s: %w", runID, err)
		}
	}
	return nil
}

func (s *StateStore) Mark(ctx context.Context, runID, symbol string, status models.LedgerStatus, cause error) error {
	key := runKeyPrefix + runID

	entry := models.LedgerEntry{Symbol: symbol, Status: status, UpdatedAt: time.Now().UTC()}
	if prev, err := s.Entry(ctx, runID, symbol); err == nil && prev != nil {
		entry.Attempts = prev.Attempts
	}
	if status == models.LedgerInProgress {
		entry.Attempts++
	}
	if cause != nil {
		entry.LastError = cause.Error()
	}

	if err := s.kv.HSet(ctx, key, symbol, entry); err != nil {
		return fmt.Errorf("ledger mark %s/%s: %w", runID, symbol, err)
	}
	return nil
}

func (s *StateStore) Entry(ctx context.Context, runID, symbol string) (*models.LedgerEntry, error) {
	var e models.LedgerEntry
	err := s.kv.HGet(ctx, runKeyPrefix+runID, symbol, &e)
	if err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, nil
		}
		return nil, fmt.Errorf("ledger entry %s/%s: %w", runID, symbol, err)
	}
	return &e, nil
}

func (s *StateStore) Recover(ctx context.Context, runID string) ([]string, error) {
	entries, err := s.entries(ctx, runID)
	if err != nil {
		return nil, err
	}
	var remaining []string
	for _, e := range entries {
		if e.Status != models.LedgerDone {
			remaining = append(remaining, e.Symbol)
		}
	}
	return remaining, nil
}

func (s *StateStore) IsComplete(ctx context.Context, runID string) (bool, error) {
	entries, err := s.entries(ctx, runID)
	if err != nil {
		return false, err
	}
	if len(entries) == 0 {
		return false, nil
	}
	for _, e := range entries {
		if e.Status == models.LedgerPending || e.Status == models.LedgerInProgress {
			return false, nil
		}
	}
	return true, nil
}

func (s *StateStore) Counts(ctx context.Context, runID string) (pending, failed int, err error) {
	entries, err := s.entries(ctx, runID)
	if err != nil {
		return 0, 0, err
	}
	for _, e := range entries {
		switch e.Status {
		case models.LedgerPending, models.LedgerInProgress:
			pending++
		case models.LedgerFailed:
			failed++
		}
	}
	return pending, failed, nil
}

func (s *StateStore) Clear(ctx context.Context, runID string) error {
	if err := s.kv.Delete(ctx, runKeyPrefix+runID); err != nil {
		return fmt.Errorf("clear run %s: %w", runID, err)
	}
	return nil
}

func (s *StateStore) entries(ctx context.Context, runID string) ([]models.LedgerEntry, error) {
	raw, err := s.kv.HGetAll(ctx, runKeyPrefix+runID)
	if err != nil {
		return nil, fmt.Errorf("read ledger %s: %w", runID, err)
	}
	entries := make([]models.LedgerEntry, 0, len(raw))
	for symbol, data := range raw {
		var e models.LedgerEntry
		if err := json.Unmarshal([]byte(data), &e); err != nil {
			return nil, fmt.Errorf("decode ledger entry %s: %w", symbol, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// --- RunMarkerStore ---

func (s *StateStore) Read(ctx context.Context) (*models.RunMarker, error) {
	var m models.RunMarker
	err := s.kv.Get(ctx, runMarkerKey, &m)
	if err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, nil
		}
		return nil, fmt.Errorf("read run marker: %w", err)
	}
	return &m, nil
}

func (s *StateStore) Write(ctx context.Context, marker *models.RunMarker) error {
	if err := s.kv.Set(ctx, runMarkerKey, marker, 0); err != nil {
		return fmt.Errorf("write run marker: %w", err)
	}
	return nil
}
