package models

// Requests for forecast HTTP endpoints. Defined in domain for consistency and reuse.

type ForecastRequest struct {
	Symbol string    `json:"symbol" validate:"required,max=32"`
	Values []float64 `json:"values" validate:"required,min=1,max=1000"`
	Models []string  `json:"models" validate:"omitempty,max=4,dive,oneof=linear logarithmic exponential power"`
}

type ModelInfo struct {
	Name    string `json:"name"`
	Label   string `json:"label"`
	Formula string `json:"formula"`
}

// ForecastQuery filters stored forecasts. From and To accept RFC3339 or unix
// seconds.
type ForecastQuery struct {
	Symbol string `query:"symbol" validate:"required,max=32"`
	From   string `query:"from"`
	To     string `query:"to"`
	Limit  int    `query:"limit" default:"100" validate:"gte=1,lte=1000"`
}
