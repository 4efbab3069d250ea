package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"EmaScreen/internal/domain/models"
	"EmaScreen/internal/domain/repository"
	pkgch "EmaScreen/pkg/clickhouse"
	"EmaScreen/pkg/util"
)

// ClickHouseHistory implements HistoryStore over a ClickHouse table.
// Inserts are synchronous: Append returns only after the batch is
// acknowledged, which is what makes ledger-based resume safe.
type ClickHouseHistory struct {
	client *pkgch.Client
	db     *sql.DB
	table  string
}

// HistorySchema returns the idempotent DDL for the bar table.
func HistorySchema(database string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.daily_bars (
			symbol LowCardinality(String),
			date   Date,
			open   Float64,
			high   Float64,
			low    Float64,
			close  Float64,
			volume Float64
		) ENGINE = ReplacingMergeTree ORDER BY (symbol, date)`, database),
	}
}

// NewClickHouseHistory creates the store against an initialized client.
func NewClickHouseHistory(client *pkgch.Client, database string) repository.HistoryStore {
	return &ClickHouseHistory{client: client, db: client.DB(), table: database + ".daily_bars"}
}

func (s *ClickHouseHistory) Append(ctx context.Context, symbol string, bars []models.PriceBar) error {
	if len(bars) == 0 {
		return nil
	}
	if err := validateAppend(ctx, s, symbol, bars); err != nil {
		return err
	}

	values := make([]string, 0, len(bars))
	args := make([]interface{}, 0, len(bars)*7)
	for _, b := range bars {
		values = append(values, "(?, ?, ?, ?, ?, ?, ?)")
		args = append(args, symbol, b.Date, b.Open, b.High, b.Low, b.Close, b.Volume)
	}
	q := fmt.Sprintf("INSERT INTO %s (symbol, date, open, high, low, close, volume) VALUES %s",
		s.table, strings.Join(values, ","))
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("append %s: %w", symbol, err)
	}
	return nil
}

func (s *ClickHouseHistory) ReadRange(ctx context.Context, symbol string, from, to time.Time) ([]models.PriceBar, error) {
	q := fmt.Sprintf("SELECT date, open, high, low, close, volume FROM %s WHERE symbol = ? AND date >= ? AND date <= ? ORDER BY date ASC", s.table)
	rows, err := s.db.QueryContext(ctx, q, symbol, util.DateOnly(from), util.DateOnly(to))
	if err != nil {
		return nil, fmt.Errorf("read range %s: %w", symbol, err)
	}
	defer rows.Close()

	var bars []models.PriceBar
	for rows.Next() {
		var b models.PriceBar
		var d time.Time
		if err := rows.Scan(&d, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		b.Date = util.DateOnly(d)
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

func (s *ClickHouseHistory) LastDate(ctx context.Context, symbol string) (time.Time, bool, error) {
	q := fmt.Sprintf("SELECT max(date) FROM %s WHERE symbol = ?", s.table)
	var d time.Time
	err := s.db.QueryRowContext(ctx, q, symbol).Scan(&d)
	if err != nil {
		if err == sql.ErrNoRows {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("last date %s: %w", symbol, err)
	}
	// max() over no rows yields the zero Date
	if d.Year() <= 1970 {
		return time.Time{}, false, nil
	}
	return util.DateOnly(d), true, nil
}

func (s *ClickHouseHistory) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseHistory) Close() error {
	return s.client.Close()
}

// validateAppend enforces the append-only invariant for any HistoryStore:
// bars must be strictly increasing within the batch and strictly newer than
// the stored series. Violations reject the whole batch.
func validateAppend(ctx context.Context, store repository.HistoryStore, symbol string, bars []models.PriceBar) error {
	for i := 1; i < len(bars); i++ {
		if !bars[i].Date.After(bars[i-1].Date) {
			return fmt.Errorf("%s batch at %s: %w", symbol,
				bars[i].Date.Format(util.DateLayout), models.ErrOutOfOrderBar)
		}
	}
	last, ok, err := store.LastDate(ctx, symbol)
	if err != nil {
		return err
	}
	if ok && !bars[0].Date.After(last) {
		return fmt.Errorf("%s bar %s not after stored %s: %w", symbol,
			bars[0].Date.Format(util.DateLayout), last.Format(util.DateLayout),
			models.ErrOutOfOrderBar)
	}
	return nil
}
