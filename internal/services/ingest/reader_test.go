package ingest

import (
	"errors"
	"strings"
	"testing"
	"testing/iotest"

	"FinFit/internal/domain/models"
	"FinFit/pkg/linalg"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadSeries(t *testing.T) {
	in := strings.Join([]string{
		"A,10,20,30,40",
		"B, 1.5 ,2.5,3.5,",
		"",
		"C,1,,3",
		"D,1,abc,3",
		"E,",
		",1,2",
		`"F G",4,5,6`,
	}, "\n")

	got, skipped, err := ReadSeries(strings.NewReader(in))
	require.NoError(t, err)

	assert.Equal(t, []models.Series{
		{Symbol: "A", Values: []float64{10, 20, 30, 40}},
		{Symbol: "B", Values: []float64{1.5, 2.5, 3.5}},
		{Symbol: "F G", Values: []float64{4, 5, 6}},
	}, got)

	require.Len(t, skipped, 4)
	assert.ErrorIs(t, skipped[0], ErrEmptyField)
	assert.Equal(t, "C", skipped[0].Symbol)
	assert.Equal(t, 2, skipped[0].Field)
	assert.Equal(t, 4, skipped[0].Line)

	assert.ErrorIs(t, skipped[1], ErrInvalidValue)
	assert.Equal(t, "abc", skipped[1].Value)
	assert.Contains(t, skipped[1].Error(), `line 5 (D) value 2 "abc"`)

	assert.ErrorIs(t, skipped[2], ErrNoValues)
	assert.ErrorIs(t, skipped[3], ErrNoSymbol)
}

func TestReadSeriesMalformedQuote(t *testing.T) {
	got, skipped, err := ReadSeries(strings.NewReader("A,1,2\n\"B,1,2\n"))
	require.NoError(t, err)
	assert.Len(t, got, 1)
	require.Len(t, skipped, 1)
	assert.ErrorIs(t, skipped[0], ErrMalformed)
}

func TestReadSeriesEmpty(t *testing.T) {
	got, skipped, err := ReadSeries(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Empty(t, skipped)
}

func TestReadSeriesReaderError(t *testing.T) {
	boom := errors.New("boom")
	_, _, err := ReadSeries(iotest.ErrReader(boom))
	require.ErrorIs(t, err, boom)
}

func TestDesignMatrix(t *testing.T) {
	assert.Equal(t, linalg.Matrix{{1, 1}, {1, 2}, {1, 3}}, DesignMatrix(3))
	assert.Nil(t, DesignMatrix(0))
}
