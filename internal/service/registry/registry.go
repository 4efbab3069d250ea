package registry

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"
)

// Registry holds the fixed instrument universe, loaded once from the
// exchange index constituents CSV. The set does not change for the life
// of a run.
type Registry struct {
	symbols []string
}

// LoadCSV reads symbols from the reference list. The file is expected to
// carry a SYMBOL column; the index's own row is skipped. Symbols are
// de-duplicated preserving file order.
func LoadCSV(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open registry file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse registry csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("registry file %s is empty", path)
	}

	col := -1
	for i, name := range records[0] {
		if strings.EqualFold(cleanField(name), "symbol") {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, fmt.Errorf("registry file %s has no SYMBOL column", path)
	}

	seen := make(map[string]struct{})
	var symbols []string
	for _, rec := range records[1:] {
		if col >= len(rec) {
			continue
		}
		sym := cleanField(rec[col])
		if sym == "" || strings.Contains(sym, " ") {
			// index rows like "NIFTY TOTAL MARKET" are not instruments
			continue
		}
		if _, dup := seen[sym]; dup {
			continue
		}
		seen[sym] = struct{}{}
		symbols = append(symbols, sym)
	}

	if len(symbols) == 0 {
		return nil, fmt.Errorf("registry file %s yielded no symbols", path)
	}
	return &Registry{symbols: symbols}, nil
}

// Symbols returns the universe in load order. Callers must not mutate it.
func (r *Registry) Symbols() []string {
	return r.symbols
}

// Size returns the universe size.
func (r *Registry) Size() int {
	return len(r.symbols)
}

func cleanField(s string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(s), `"`))
}
