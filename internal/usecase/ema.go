package usecase

import "EmaScreen/internal/domain/models"

// emaAlpha returns the smoothing factor for the given period.
func emaAlpha(period int) float64 {
	return 2.0 / float64(period+1)
}

// emaFromScratch computes the EMA over a full close series: seeded with the
// simple average of the first period closes, then folded forward one bar at
// a time. Returns false when the series is shorter than period.
func emaFromScratch(closes []float64, period int) (float64, bool) {
	if len(closes) < period {
		return 0, false
	}
	sum := 0.0
	for _, c := range closes[:period] {
		sum += c
	}
	ema := sum / float64(period)

	alpha := emaAlpha(period)
	for _, c := range closes[period:] {
		ema = foldEma(ema, c, alpha)
	}
	return ema, true
}

// foldEma advances the EMA by one bar.
func foldEma(prev, close, alpha float64) float64 {
	return alpha*close + (1-alpha)*prev
}

func closesOf(bars []models.PriceBar) []float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes
}
