package report

import (
	"bytes"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"FinFit/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func forecast(model string, w0, w1, v float64) *models.Forecast {
	return &models.Forecast{
		Symbol:    "A",
		Model:     model,
		Intercept: models.Number(w0),
		Slope:     models.Number(w1),
		Value:     models.Number(v),
		Periods:   4,
	}
}

func TestTextReport(t *testing.T) {
	var buf bytes.Buffer
	r, err := New(&buf, FormatText)
	require.NoError(t, err)

	require.NoError(t, r.Header("Dividends"))
	require.NoError(t, r.Company("A", []*models.Forecast{
		forecast("linear", 0, 10, 50),
		forecast("power", 2.302585092994046, 1, 50.00000001),
	}))

	want := strings.Join([]string{
		"Dividends",
		"======================================",
		"Company: A",
		"w = 0 , 10",
		"Linear prediction for next quarter = 50",
		"w = 2.30259 , 1",
		"Power Curve prediction for next quarter = 50",
		"",
		"",
	}, "\n")
	assert.Equal(t, want, buf.String())
}

func TestFormatNumber(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{50, "50"},
		{-1.5, "-1.5"},
		{1234567, "1.23457e+06"},
		{0.0001, "0.0001"},
		{0.00001234, "1.234e-05"},
		{3 * math.Exp(2.5), "36.5475"},
		{math.NaN(), "nan"},
		{math.Inf(1), "inf"},
		{math.Inf(-1), "-inf"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, FormatNumber(tc.in))
	}
}

func TestJSONLinesReport(t *testing.T) {
	var buf bytes.Buffer
	r, err := New(&buf, FormatJSON)
	require.NoError(t, err)

	require.NoError(t, r.Header("Dividends"))
	require.NoError(t, r.Company("A", []*models.Forecast{
		forecast("linear", 0, 10, 50),
		forecast("exponential", math.NaN(), math.Inf(1), math.NaN()),
	}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &got))
	assert.Equal(t, "linear", got["model"])
	assert.Equal(t, 50.0, got["forecast"])

	require.NoError(t, json.Unmarshal([]byte(lines[1]), &got))
	assert.Equal(t, "NaN", got["w0"])
	assert.Equal(t, "+Inf", got["w1"])
}

func TestNewUnknownFormat(t *testing.T) {
	_, err := New(&bytes.Buffer{}, "xml")
	require.Error(t, err)
}

func TestOpenAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.txt")
	for i := 0; i < 2; i++ {
		w, err := Open(path)
		require.NoError(t, err)
		_, err = w.Write([]byte("x\n"))
		require.NoError(t, err)
		require.NoError(t, w.Close())
	}
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "x\nx\n", string(b))
}
