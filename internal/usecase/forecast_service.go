package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"FinFit/internal/domain/models"
	"FinFit/internal/domain/service"
	apimetrics "FinFit/internal/service/metrics"
	"FinFit/internal/services/curvefit"
	"FinFit/internal/services/ingest"
	"FinFit/pkg/cache"
	applogger "FinFit/pkg/logger"
)

// ErrNoForecast is returned when none of the requested models could be fitted.
var ErrNoForecast = errors.New("usecase: no model could be fitted")

// ForecastService fits a single series on demand.
type ForecastService struct {
	fitter service.CurveFitter
	cache  cache.Service
	ttl    time.Duration
	l      *applogger.Logger
	now    func() time.Time
}

// NewForecastService creates the service. c may be nil to disable caching.
func NewForecastService(fitter service.CurveFitter, c cache.Service, ttl time.Duration, l *applogger.Logger) *ForecastService {
	if l == nil {
		l = applogger.Nop()
	}
	return &ForecastService{
		fitter: fitter,
		cache:  c,
		ttl:    ttl,
		l:      l,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Models lists the configured kinds in report order.
func (s *ForecastService) Models() []models.ModelInfo {
	kinds := s.fitter.Kinds()
	out := make([]models.ModelInfo, len(kinds))
	for i, k := range kinds {
		out[i] = models.ModelInfo{Name: k.String(), Label: k.Label(), Formula: k.Formula()}
	}
	return out
}

// Forecast fits the requested models to req.Values over periods 1..N.
// Models that fail are logged and left out; ErrNoForecast is returned when
// nothing could be fitted.
func (s *ForecastService) Forecast(ctx context.Context, req *models.ForecastRequest) ([]*models.Forecast, error) {
	kinds, err := curvefit.ParseKinds(req.Models)
	if err != nil {
		return nil, err
	}

	key := forecastCacheKey(req.Symbol, kinds, req.Values)
	if s.cache != nil {
		var cached []*models.Forecast
		err := s.cache.Get(ctx, key, &cached)
		switch {
		case err == nil:
			apimetrics.CacheHits.WithLabelValues("hit").Inc()
			return cached, nil
		case errors.Is(err, cache.ErrCacheMiss):
			apimetrics.CacheHits.WithLabelValues("miss").Inc()
		default:
			apimetrics.CacheHits.WithLabelValues("error").Inc()
			s.l.Warn("forecast cache get failed", applogger.String("key", key), applogger.Error(err))
		}
	}

	results, fitErr := s.fitter.FitKinds(ingest.DesignMatrix(len(req.Values)), req.Values, kinds)
	if fitErr != nil {
		s.l.Warn("forecast fit failed",
			applogger.String("symbol", req.Symbol),
			applogger.Int("periods", len(req.Values)),
			applogger.Error(fitErr),
		)
	}
	if len(results) == 0 {
		if fitErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrNoForecast, fitErr)
		}
		return nil, ErrNoForecast
	}

	out := toForecasts("", req.Symbol, results, s.now())
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, out, s.ttl); err != nil {
			s.l.Warn("forecast cache set failed", applogger.String("key", key), applogger.Error(err))
		}
	}
	return out, nil
}

func forecastCacheKey(symbol string, kinds []curvefit.Kind, values []float64) string {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}
	vals := make([]string, len(values))
	for i, v := range values {
		vals[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return cache.GenerateKey("forecast", cache.HashKey(symbol, strings.Join(names, ","), strings.Join(vals, ",")))
}
