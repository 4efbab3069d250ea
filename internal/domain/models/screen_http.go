package models

// Requests for the screening HTTP endpoints. Defined in domain for
// consistency and reuse.

type ScreenRequest struct {
	Position   string  `query:"position" json:"position" default:"all" validate:"oneof=all above below"`
	BandPct    float64 `query:"band" json:"band" default:"2.5" validate:"gte=0.1,lte=50"`
	WithinBand bool    `query:"within_band" json:"within_band"`
}

type HistoryRequest struct {
	From string `query:"from" json:"from"`
	To   string `query:"to" json:"to"`
}
