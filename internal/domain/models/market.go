package models

import "time"

// Position of the last close relative to the EMA.
type Position string

const (
	PositionAbove Position = "above"
	PositionBelow Position = "below"
)

// PriceBar is one completed trading session for one instrument.
// Date carries only the trading day (UTC midnight); bars for an
// instrument are strictly increasing by Date and immutable once stored.
type PriceBar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// EmaEntry is the cached screening state for one instrument.
//
// EmaValue is meaningful only when Ready() is true; until an instrument
// has accumulated a full period of history it is warming up and excluded
// from screening results. LastBarDate is the date of the newest bar folded
// into EmaValue and anchors incremental updates: any future update starts
// strictly after it.
type EmaEntry struct {
	Symbol      string    `json:"symbol"`
	LastClose   float64   `json:"last_close"`
	EmaValue    float64   `json:"ema_value"`
	LastBarDate time.Time `json:"last_bar_date"`
	UpdatedAt   time.Time `json:"updated_at"`
	DataPoints  int       `json:"data_points"`
	Period      int       `json:"period"`
}

// Ready reports whether enough history has been folded in for EmaValue
// to be defined.
func (e *EmaEntry) Ready() bool {
	return e.Period > 0 && e.DataPoints >= e.Period
}

// DistancePct returns the percentage distance of the last close from the EMA.
func (e *EmaEntry) DistancePct() float64 {
	if e.EmaValue == 0 {
		return 0
	}
	return (e.LastClose - e.EmaValue) / e.EmaValue * 100
}

// PositionToEma reports whether the last close sits above or below the EMA.
func (e *EmaEntry) PositionToEma() Position {
	if e.LastClose > e.EmaValue {
		return PositionAbove
	}
	return PositionBelow
}

// WithinBand reports whether the last close is within ±bandPct of the EMA.
func (e *EmaEntry) WithinBand(bandPct float64) bool {
	if e.EmaValue == 0 {
		return false
	}
	d := e.DistancePct()
	if d < 0 {
		d = -d
	}
	return d <= bandPct
}

// LedgerStatus is the per-instrument progress state within one batch run.
type LedgerStatus string

const (
	LedgerPending    LedgerStatus = "pending"
	LedgerInProgress LedgerStatus = "in_progress"
	LedgerDone       LedgerStatus = "done"
	LedgerFailed     LedgerStatus = "failed"
)

// LedgerEntry records one instrument's progress in a batch run.
type LedgerEntry struct {
	Symbol    string       `json:"symbol"`
	Status    LedgerStatus `json:"status"`
	Attempts  int          `json:"attempts"`
	LastError string       `json:"last_error,omitempty"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// RunMarker is the process-wide record of the last successful
// full-universe update. It is written only after every instrument in a run
// reached done or exhausted its retry budget.
type RunMarker struct {
	LastSuccessDate string    `json:"last_success_date"` // trading date, YYYY-MM-DD
	Cutoff          string    `json:"cutoff"`            // HH:MM session cutoff used
	WrittenAt       time.Time `json:"written_at"`
}

// RunState is the orchestrator state machine position.
type RunState string

const (
	RunIdle       RunState = "idle"
	RunChecking   RunState = "checking_staleness"
	RunRunning    RunState = "running"
	RunFinalizing RunState = "finalizing"
)

// ScreenRow is one instrument's view in screening query results.
type ScreenRow struct {
	Symbol      string    `json:"symbol"`
	LastClose   float64   `json:"last_close"`
	EmaValue    float64   `json:"ema_value"`
	DistancePct float64   `json:"distance_pct"`
	Position    Position  `json:"position"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ScreenSummary aggregates counts across the universe.
type ScreenSummary struct {
	Total     int `json:"total"`
	Above     int `json:"above"`
	Below     int `json:"below"`
	WarmingUp int `json:"warming_up"`
}

// RunStatus is the orchestrator status exposed to callers.
type RunStatus struct {
	State           RunState `json:"run_state"`
	LastSuccessDate string   `json:"last_success_date,omitempty"`
	Pending         int      `json:"pending_count"`
	Failed          int      `json:"failed_count"`
}

// TriggerResult reports the outcome of an update trigger.
type TriggerResult struct {
	Started bool   `json:"started"`
	Reason  string `json:"reason,omitempty"`
}
