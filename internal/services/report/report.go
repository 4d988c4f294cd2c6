// Package report renders fitted forecasts for humans (text) or machines
// (JSON lines).
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"FinFit/internal/domain/models"
	"FinFit/internal/services/curvefit"
)

// Format selects the report encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

const separator = "======================================"

// Reporter writes dataset sections and per-company result blocks.
type Reporter interface {
	Header(dataset string) error
	Company(symbol string, forecasts []*models.Forecast) error
}

// New returns a Reporter writing to w in the given format.
func New(w io.Writer, format Format) (Reporter, error) {
	switch format {
	case "", FormatText:
		return &Text{w: w}, nil
	case FormatJSON:
		return &JSONLines{enc: json.NewEncoder(w)}, nil
	default:
		return nil, fmt.Errorf("report: unknown format %q", format)
	}
}

// Text is the plain log format:
//
//	Dividends
//	======================================
//	Company: A
//	w = 0 , 10
//	Linear prediction for next quarter = 50
//	...
//
// Each company block ends with a blank line.
type Text struct {
	w io.Writer
}

func (t *Text) Header(dataset string) error {
	_, err := fmt.Fprintf(t.w, "%s\n%s\n", dataset, separator)
	return err
}

func (t *Text) Company(symbol string, forecasts []*models.Forecast) error {
	var b strings.Builder
	b.WriteString(CompanyLine(symbol))
	b.WriteByte('\n')
	for _, f := range forecasts {
		b.WriteString(WeightsLine(f.Intercept.Float64(), f.Slope.Float64()))
		b.WriteByte('\n')
		b.WriteString(PredictionLine(curvefit.Kind(f.Model).Label(), f.Value.Float64()))
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	_, err := io.WriteString(t.w, b.String())
	return err
}

// CompanyLine renders "Company: <symbol>".
func CompanyLine(symbol string) string { return "Company: " + symbol }

// WeightsLine renders "w = <w0> , <w1>".
func WeightsLine(w0, w1 float64) string {
	return "w = " + FormatNumber(w0) + " , " + FormatNumber(w1)
}

// PredictionLine renders "<label> prediction for next quarter = <v>".
func PredictionLine(label string, v float64) string {
	return label + " prediction for next quarter = " + FormatNumber(v)
}

// FormatNumber renders v with six significant digits, switching to
// exponent form for large or small magnitudes. Non-finite values print as
// nan, inf and -inf.
func FormatNumber(v float64) string {
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	return strconv.FormatFloat(v, 'g', 6, 64)
}

// JSONLines writes one JSON object per forecast. Headers produce no output.
type JSONLines struct {
	enc *json.Encoder
}

func (j *JSONLines) Header(string) error { return nil }

func (j *JSONLines) Company(_ string, forecasts []*models.Forecast) error {
	for _, f := range forecasts {
		if err := j.enc.Encode(f); err != nil {
			return fmt.Errorf("report: encode %s/%s: %w", f.Symbol, f.Model, err)
		}
	}
	return nil
}

// Open resolves a report output: "" or "stdout", "stderr", or a file path
// opened for append.
func Open(output string) (io.WriteCloser, error) {
	switch output {
	case "", "stdout":
		return nopCloser{os.Stdout}, nil
	case "stderr":
		return nopCloser{os.Stderr}, nil
	}
	f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("report: open %s: %w", output, err)
	}
	return f, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
