package repository

import (
	"context"
	"sync"
	"time"

	"EmaScreen/internal/domain/models"
	"EmaScreen/internal/domain/repository"
	"EmaScreen/pkg/util"
)

// MemoryHistory implements HistoryStore in process memory, for the memory
// storage backend and for tests. Same append contract as ClickHouse.
type MemoryHistory struct {
	mu     sync.RWMutex
	series map[string][]models.PriceBar
}

// NewMemoryHistory creates an empty in-memory history store.
func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{series: make(map[string][]models.PriceBar)}
}

var _ repository.HistoryStore = (*MemoryHistory)(nil)

func (s *MemoryHistory) Append(ctx context.Context, symbol string, bars []models.PriceBar) error {
	if len(bars) == 0 {
		return nil
	}
	if err := validateAppend(ctx, s, symbol, bars); err != nil {
		return err
	}
	s.mu.Lock()
	s.series[symbol] = append(s.series[symbol], bars...)
	s.mu.Unlock()
	return nil
}

func (s *MemoryHistory) ReadRange(_ context.Context, symbol string, from, to time.Time) ([]models.PriceBar, error) {
	from, to = util.DateOnly(from), util.DateOnly(to)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.PriceBar
	for _, b := range s.series[symbol] {
		if !b.Date.Before(from) && !b.Date.After(to) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *MemoryHistory) LastDate(_ context.Context, symbol string) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bars := s.series[symbol]
	if len(bars) == 0 {
		return time.Time{}, false, nil
	}
	return bars[len(bars)-1].Date, true, nil
}

func (s *MemoryHistory) Health(context.Context) error { return nil }

func (s *MemoryHistory) Close() error { return nil }
