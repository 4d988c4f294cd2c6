package repository

import (
	"context"
	"time"

	"FinFit/internal/domain/models"
)

// SeriesSource loads a dataset of company series.
type SeriesSource interface {
	Load(ctx context.Context, name, location string) (*models.Dataset, error)
}

type ForecastPublisher interface {
	Publish(ctx context.Context, f *models.Forecast) error
	PublishBatch(ctx context.Context, forecasts []*models.Forecast) error
	Close() error
}

type ForecastStore interface {
	Init(ctx context.Context) error // ensure tables, health checks
	StoreBatch(ctx context.Context, forecasts []*models.Forecast) error
	Query(ctx context.Context, symbol string, from, to time.Time, limit int) ([]*models.Forecast, error)
	Health(ctx context.Context) error // ping
	Close() error
}

// ForecastStream fans forecasts out to live subscribers.
type ForecastStream interface {
	Broadcast(forecasts []*models.Forecast)
}

type Metrics interface {
	RecordForecast(dataset, model string, finite bool)
	RecordSkipped(dataset, reason string)
	RecordMessageSent(backend string, n int)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
