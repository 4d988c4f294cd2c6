// Package ingest turns tabular company data into series and design matrices.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"FinFit/internal/domain/models"
	"FinFit/pkg/linalg"
)

var (
	ErrNoSymbol     = errors.New("ingest: missing symbol")
	ErrNoValues     = errors.New("ingest: row has no values")
	ErrEmptyField   = errors.New("ingest: empty value field")
	ErrInvalidValue = errors.New("ingest: invalid numeric value")
	ErrMalformed    = errors.New("ingest: malformed csv row")
)

// RowError describes a skipped input row.
type RowError struct {
	Line   int
	Symbol string
	Field  int // 1-based value index, 0 when not field specific
	Value  string
	Err    error
}

func (e *RowError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "line %d", e.Line)
	if e.Symbol != "" {
		fmt.Fprintf(&b, " (%s)", e.Symbol)
	}
	if e.Field > 0 {
		fmt.Fprintf(&b, " value %d %q", e.Field, e.Value)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

func (e *RowError) Unwrap() error { return e.Err }

// ReadSeries parses rows of the form "symbol,v1,v2,...". Rows that cannot be
// parsed are skipped and returned as RowErrors; the returned error is only
// set when the reader itself fails.
func ReadSeries(r io.Reader) ([]models.Series, []*RowError, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	var (
		out     []models.Series
		skipped []*RowError
	)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				skipped = append(skipped, &RowError{Line: pe.StartLine, Err: fmt.Errorf("%w: %v", ErrMalformed, pe.Err)})
				continue
			}
			return nil, nil, fmt.Errorf("read series: %w", err)
		}
		line, _ := cr.FieldPos(0)

		s, rowErr := parseRecord(rec)
		if rowErr != nil {
			rowErr.Line = line
			skipped = append(skipped, rowErr)
			continue
		}
		out = append(out, s)
	}
	return out, skipped, nil
}

func parseRecord(rec []string) (models.Series, *RowError) {
	symbol := strings.TrimSpace(rec[0])
	if symbol == "" {
		return models.Series{}, &RowError{Err: ErrNoSymbol}
	}

	fields := rec[1:]
	// A single trailing separator leaves one empty field.
	if n := len(fields); n > 0 && strings.TrimSpace(fields[n-1]) == "" {
		fields = fields[:n-1]
	}
	if len(fields) == 0 {
		return models.Series{}, &RowError{Symbol: symbol, Err: ErrNoValues}
	}

	values := make([]float64, len(fields))
	for i, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			return models.Series{}, &RowError{Symbol: symbol, Field: i + 1, Err: ErrEmptyField}
		}
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return models.Series{}, &RowError{Symbol: symbol, Field: i + 1, Value: f, Err: ErrInvalidValue}
		}
		values[i] = v
	}
	return models.Series{Symbol: symbol, Values: values}, nil
}

// DesignMatrix returns the n×2 predictor matrix with rows (1, t) for
// t = 1..n. It returns nil for n <= 0.
func DesignMatrix(n int) linalg.Matrix {
	if n <= 0 {
		return nil
	}
	x := make(linalg.Matrix, n)
	for i := range x {
		x[i] = []float64{1, float64(i + 1)}
	}
	return x
}
