package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"FinFit/internal/domain/models"
	domrepo "FinFit/internal/domain/repository"
	"FinFit/internal/services/ingest"
	pkghttp "FinFit/pkg/http"
	applogger "FinFit/pkg/logger"
)

// CSVSeriesSource loads datasets from CSV files on disk or over HTTP.
type CSVSeriesSource struct {
	client  *pkghttp.Client
	metrics domrepo.Metrics
	l       *applogger.Logger
}

var _ domrepo.SeriesSource = (*CSVSeriesSource)(nil)

func NewCSVSeriesSource(client *pkghttp.Client, metrics domrepo.Metrics, l *applogger.Logger) *CSVSeriesSource {
	if client == nil {
		client = pkghttp.NewClient()
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &CSVSeriesSource{client: client, metrics: metrics, l: l}
}

// Load reads location, a file path or an http(s) URL, into a dataset named
// name. Unparseable rows are logged, counted and left out.
func (s *CSVSeriesSource) Load(ctx context.Context, name, location string) (*models.Dataset, error) {
	rc, err := s.open(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("open dataset %s: %w", name, err)
	}
	defer rc.Close()

	series, skipped, err := ingest.ReadSeries(rc)
	if err != nil {
		return nil, fmt.Errorf("load dataset %s: %w", name, err)
	}
	for _, re := range skipped {
		s.l.Warn("skipping invalid row",
			applogger.String("dataset", name),
			applogger.Int("line", re.Line),
			applogger.String("symbol", re.Symbol),
			applogger.Error(re),
		)
		if s.metrics != nil {
			s.metrics.RecordSkipped(name, skipReason(re.Err))
		}
	}
	if len(series) == 0 {
		s.l.Warn("dataset has no series", applogger.String("dataset", name), applogger.String("location", location))
	}
	return &models.Dataset{Name: name, Series: series, Skipped: len(skipped)}, nil
}

func (s *CSVSeriesSource) open(ctx context.Context, location string) (io.ReadCloser, error) {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		return s.client.Open(ctx, location)
	}
	return os.Open(location)
}

func skipReason(err error) string {
	switch {
	case errors.Is(err, ingest.ErrNoSymbol):
		return "no_symbol"
	case errors.Is(err, ingest.ErrNoValues):
		return "no_values"
	case errors.Is(err, ingest.ErrEmptyField):
		return "empty_field"
	case errors.Is(err, ingest.ErrInvalidValue):
		return "invalid_value"
	case errors.Is(err, ingest.ErrMalformed):
		return "malformed"
	}
	return "other"
}
