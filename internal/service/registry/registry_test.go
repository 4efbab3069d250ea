package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "instruments.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadCSV(t *testing.T) {
	path := writeCSV(t, `SYMBOL,NAME OF COMPANY,SERIES
RELIANCE,Reliance Industries Limited,EQ
TCS,Tata Consultancy Services Limited,EQ
INFY,Infosys Limited,EQ
`)
	reg, err := LoadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"RELIANCE", "TCS", "INFY"}, reg.Symbols())
	assert.Equal(t, 3, reg.Size())
}

func TestLoadCSVHeaderCaseInsensitive(t *testing.T) {
	path := writeCSV(t, `"Company Name","Industry","Symbol"
"Reliance Industries Ltd.","Oil & Gas","RELIANCE"
"Tata Consultancy Services Ltd.","IT","TCS"
`)
	reg, err := LoadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"RELIANCE", "TCS"}, reg.Symbols())
}

func TestLoadCSVSkipsIndexRowsAndDuplicates(t *testing.T) {
	path := writeCSV(t, `SYMBOL
NIFTY TOTAL MARKET
RELIANCE
RELIANCE
TCS
`)
	reg, err := LoadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"RELIANCE", "TCS"}, reg.Symbols())
}

func TestLoadCSVErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadCSV(filepath.Join(t.TempDir(), "nope.csv"))
		assert.Error(t, err)
	})

	t.Run("no symbol column", func(t *testing.T) {
		_, err := LoadCSV(writeCSV(t, "NAME,SERIES\nFoo,EQ\n"))
		assert.ErrorContains(t, err, "SYMBOL")
	})

	t.Run("no instruments", func(t *testing.T) {
		_, err := LoadCSV(writeCSV(t, "SYMBOL\nNIFTY TOTAL MARKET\n"))
		assert.Error(t, err)
	})
}
