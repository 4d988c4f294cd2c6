package models

import (
	"encoding/json"
	"math"
	"strconv"
	"time"
)

// Forecast is the fitted coefficients of one model on one series together
// with the prediction for the next period.
type Forecast struct {
	Dataset   string    `json:"dataset,omitempty"`
	Symbol    string    `json:"symbol"`
	Model     string    `json:"model"`
	Intercept Number    `json:"w0"`
	Slope     Number    `json:"w1"`
	Value     Number    `json:"forecast"`
	Periods   int       `json:"periods"`
	CreatedAt time.Time `json:"created_at"`
}

// Number is a float64 whose JSON form tolerates NaN and ±Inf, which the
// fitting engine produces for degenerate input. Non-finite values are
// encoded as the strings "NaN", "+Inf" and "-Inf".
type Number float64

// MarshalJSON implements json.Marshaler.
func (n Number) MarshalJSON() ([]byte, error) {
	f := float64(n)
	switch {
	case math.IsNaN(f):
		return []byte(`"NaN"`), nil
	case math.IsInf(f, 1):
		return []byte(`"+Inf"`), nil
	case math.IsInf(f, -1):
		return []byte(`"-Inf"`), nil
	}
	return strconv.AppendFloat(nil, f, 'g', -1, 64), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *Number) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*n = Number(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*n = Number(f)
	return nil
}

// Float64 returns n as a float64.
func (n Number) Float64() float64 { return float64(n) }

// Finite reports whether n is neither NaN nor infinite.
func (n Number) Finite() bool {
	f := float64(n)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
