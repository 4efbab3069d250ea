package nse

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"EmaScreen/internal/domain/models"
)

var dateLayouts = []string{"02-Jan-2006", "02-01-2006", "2006-01-02"}

// parseBarsCSV decodes the exchange's historical CSV payload into bars
// sorted oldest first. Duplicate dates collapse to the last occurrence.
// A header-only payload yields an empty slice. Anything that is not CSV
// with a date column is a malformed (transient) response.
func parseBarsCSV(body []byte) ([]models.PriceBar, error) {
	body = bytes.TrimPrefix(body, []byte("\xef\xbb\xbf")) // BOM
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, fmt.Errorf("empty response")
	}

	r := csv.NewReader(bytes.NewReader(body))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("empty csv")
	}

	cols := indexColumns(records[0])
	if cols.date < 0 || cols.close < 0 {
		return nil, fmt.Errorf("unrecognized csv header: %v", records[0])
	}

	byDate := make(map[time.Time]models.PriceBar, len(records)-1)
	for _, rec := range records[1:] {
		if cols.date >= len(rec) || cols.close >= len(rec) {
			continue
		}
		date, ok := parseDate(clean(rec[cols.date]))
		if !ok {
			continue
		}
		close, err := parseNumber(rec[cols.close])
		if err != nil {
			continue
		}
		bar := models.PriceBar{
			Date:   date,
			Close:  close,
			Open:   numberAt(rec, cols.open, close),
			High:   numberAt(rec, cols.high, close),
			Low:    numberAt(rec, cols.low, close),
			Volume: numberAt(rec, cols.volume, 0),
		}
		byDate[date] = bar
	}

	bars := make([]models.PriceBar, 0, len(byDate))
	for _, b := range byDate {
		bars = append(bars, b)
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return bars, nil
}

type columnIndex struct {
	date, open, high, low, close, volume int
}

func indexColumns(header []string) columnIndex {
	cols := columnIndex{date: -1, open: -1, high: -1, low: -1, close: -1, volume: -1}
	for i, raw := range header {
		switch strings.ToLower(clean(raw)) {
		case "date":
			cols.date = i
		case "open":
			cols.open = i
		case "high":
			cols.high = i
		case "low":
			cols.low = i
		case "close", "ltp", "last", "price":
			if cols.close < 0 {
				cols.close = i
			}
		case "volume", "total traded quantity":
			cols.volume = i
		}
	}
	return cols
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

func parseNumber(s string) (float64, error) {
	s = strings.ReplaceAll(clean(s), ",", "")
	if s == "" || s == "-" {
		return 0, fmt.Errorf("empty number")
	}
	return strconv.ParseFloat(s, 64)
}

func numberAt(rec []string, idx int, fallback float64) float64 {
	if idx < 0 || idx >= len(rec) {
		return fallback
	}
	v, err := parseNumber(rec[idx])
	if err != nil {
		return fallback
	}
	return v
}

func clean(s string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(s), `"`))
}
