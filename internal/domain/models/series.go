package models

// Series is one company's observations, one value per period. Period t is
// 1-based: Values[0] is t = 1.
type Series struct {
	Symbol string
	Values []float64
}

// Len returns the number of periods.
func (s Series) Len() int { return len(s.Values) }

// Dataset is a named collection of series, e.g. "Dividends".
type Dataset struct {
	Name   string
	Series []Series
	// Skipped counts input rows that could not be parsed.
	Skipped int
}

// SeriesMessage is the wire form of a series arriving on the series topic.
type SeriesMessage struct {
	Dataset string    `json:"dataset"`
	Symbol  string    `json:"symbol"`
	Values  []float64 `json:"values"`
	Models  []string  `json:"models,omitempty"`
}
