package usecase

import (
	"time"

	"FinFit/internal/domain/models"
	"FinFit/internal/services/curvefit"
)

// toForecasts maps fit results of one series onto domain forecasts.
func toForecasts(dataset, symbol string, results []curvefit.Result, at time.Time) []*models.Forecast {
	out := make([]*models.Forecast, len(results))
	for i, r := range results {
		out[i] = &models.Forecast{
			Dataset:   dataset,
			Symbol:    symbol,
			Model:     r.Kind.String(),
			Intercept: models.Number(r.Weights.Intercept),
			Slope:     models.Number(r.Weights.Slope),
			Value:     models.Number(r.Forecast),
			Periods:   r.Periods,
			CreatedAt: at,
		}
	}
	return out
}

// nopMetrics is used when no recorder is wired.
type nopMetrics struct{}

func (nopMetrics) RecordForecast(string, string, bool) {}
func (nopMetrics) RecordSkipped(string, string)        {}
func (nopMetrics) RecordMessageSent(string, int)       {}
func (nopMetrics) RecordError(string)                  {}
func (nopMetrics) RecordLatency(string, float64)       {}
