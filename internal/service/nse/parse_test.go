package nse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `"Date","series","OPEN","HIGH","LOW","PREV. CLOSE","ltp","close","vwap","52W H","52W L","VOLUME","VALUE","No of trades"
"26-Aug-2026","EQ","2,840.00","2,870.50","2,831.10","2,835.00","2,862.00","2,860.45","2,851.33","3,024.90","2,220.30","4,521,882","1.29E+10","210034"
"27-Aug-2026","EQ","2,861.00","2,880.00","2,852.25","2,860.45","2,875.10","2,874.60","2,868.90","3,024.90","2,220.30","3,918,404","1.12E+10","188421"
"28-Aug-2026","EQ","2,876.00","2,901.95","2,869.00","2,874.60","2,890.00","2,889.15","2,884.72","3,024.90","2,220.30","5,204,113","1.50E+10","244856"
`

func TestParseBarsCSV(t *testing.T) {
	bars, err := parseBarsCSV([]byte(sampleCSV))
	require.NoError(t, err)
	require.Len(t, bars, 3)

	assert.Equal(t, time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC), bars[0].Date)
	assert.Equal(t, 2860.45, bars[0].Close)
	assert.Equal(t, 2840.00, bars[0].Open)
	assert.Equal(t, 2870.50, bars[0].High)
	assert.Equal(t, 2831.10, bars[0].Low)
	assert.Equal(t, 4521882.0, bars[0].Volume)

	// ascending by date
	assert.True(t, bars[0].Date.Before(bars[1].Date))
	assert.True(t, bars[1].Date.Before(bars[2].Date))
}

func TestParseBarsCSVStripsBOM(t *testing.T) {
	bars, err := parseBarsCSV([]byte("\xef\xbb\xbf" + sampleCSV))
	require.NoError(t, err)
	assert.Len(t, bars, 3)
}

func TestParseBarsCSVHeaderOnly(t *testing.T) {
	bars, err := parseBarsCSV([]byte(`"Date","OPEN","close"` + "\n"))
	require.NoError(t, err)
	assert.Empty(t, bars)
}

func TestParseBarsCSVDeduplicatesDates(t *testing.T) {
	payload := `Date,close
26-Aug-2026,100.0
26-Aug-2026,101.0
`
	bars, err := parseBarsCSV([]byte(payload))
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, 101.0, bars[0].Close, "last occurrence wins")
}

func TestParseBarsCSVAlternateDateLayouts(t *testing.T) {
	payload := `Date,close
2026-08-26,100.0
27-08-2026,101.0
`
	bars, err := parseBarsCSV([]byte(payload))
	require.NoError(t, err)
	require.Len(t, bars, 2)
}

func TestParseBarsCSVFallsBackToLTP(t *testing.T) {
	payload := `Date,ltp
26-Aug-2026,100.50
`
	bars, err := parseBarsCSV([]byte(payload))
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, 100.50, bars[0].Close)
	// missing OHLC columns fall back to the close
	assert.Equal(t, 100.50, bars[0].Open)
}

func TestParseBarsCSVMalformed(t *testing.T) {
	cases := map[string]string{
		"empty":         "",
		"whitespace":    "   \n  ",
		"html error":    "<html><body>Access Denied</body></html>",
		"wrong columns": "foo,bar\n1,2\n",
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := parseBarsCSV([]byte(payload))
			assert.Error(t, err)
		})
	}
}

func TestParseBarsCSVSkipsBadRows(t *testing.T) {
	payload := `Date,close
26-Aug-2026,100.0
not-a-date,101.0
27-Aug-2026,-
28-Aug-2026,102.0
`
	bars, err := parseBarsCSV([]byte(payload))
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, 100.0, bars[0].Close)
	assert.Equal(t, 102.0, bars[1].Close)
}
