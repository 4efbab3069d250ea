package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"EmaScreen/internal/domain/models"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func bar(date time.Time, close float64) models.PriceBar {
	return models.PriceBar{Date: date, Open: close, High: close, Low: close, Close: close, Volume: 100}
}

func TestMemoryHistoryAppendAndRead(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryHistory()

	bars := []models.PriceBar{
		bar(day(2026, 8, 24), 10),
		bar(day(2026, 8, 25), 11),
		bar(day(2026, 8, 26), 12),
	}
	require.NoError(t, s.Append(ctx, "A", bars))

	got, err := s.ReadRange(ctx, "A", day(2026, 8, 24), day(2026, 8, 25))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 10.0, got[0].Close)
	assert.Equal(t, 11.0, got[1].Close)

	last, ok, err := s.LastDate(ctx, "A")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, day(2026, 8, 26), last)
}

func TestMemoryHistoryEmptySymbol(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryHistory()

	got, err := s.ReadRange(ctx, "NONE", day(2026, 1, 1), day(2026, 12, 31))
	require.NoError(t, err)
	assert.Empty(t, got)

	_, ok, err := s.LastDate(ctx, "NONE")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryHistoryRejectsUnsortedBatch(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryHistory()

	err := s.Append(ctx, "A", []models.PriceBar{
		bar(day(2026, 8, 25), 11),
		bar(day(2026, 8, 24), 10),
	})
	require.ErrorIs(t, err, models.ErrOutOfOrderBar)

	// the whole batch is rejected, nothing was stored
	_, ok, err := s.LastDate(ctx, "A")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryHistoryRejectsStaleBatch(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryHistory()
	require.NoError(t, s.Append(ctx, "A", []models.PriceBar{bar(day(2026, 8, 26), 12)}))

	err := s.Append(ctx, "A", []models.PriceBar{bar(day(2026, 8, 26), 12)})
	require.ErrorIs(t, err, models.ErrOutOfOrderBar)

	err = s.Append(ctx, "A", []models.PriceBar{bar(day(2026, 8, 20), 9)})
	require.ErrorIs(t, err, models.ErrOutOfOrderBar)

	// stored series unchanged
	got, err := s.ReadRange(ctx, "A", day(2026, 1, 1), day(2026, 12, 31))
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestMemoryHistoryEmptyBatchIsNoop(t *testing.T) {
	s := NewMemoryHistory()
	assert.NoError(t, s.Append(context.Background(), "A", nil))
}

func TestMemoryHistorySymbolsAreIndependent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryHistory()
	require.NoError(t, s.Append(ctx, "A", []models.PriceBar{bar(day(2026, 8, 26), 12)}))
	// an older date on another symbol is fine
	require.NoError(t, s.Append(ctx, "B", []models.PriceBar{bar(day(2026, 8, 20), 9)}))
}
