package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"FinFit/internal/domain/models"
	drepo "FinFit/internal/domain/repository"
	"FinFit/internal/domain/service"
	"FinFit/internal/services/curvefit"
	"FinFit/internal/services/ingest"
	"FinFit/internal/services/report"
	"FinFit/pkg/linalg"
	applogger "FinFit/pkg/logger"
)

// DatasetRef names a dataset and where to load it from.
type DatasetRef struct {
	Name     string
	Location string
}

// ForecastRunner is the batch job: load each dataset, fit every company and
// write the report.
type ForecastRunner struct {
	source    drepo.SeriesSource
	fitter    service.CurveFitter
	processor Processor
	metrics   drepo.Metrics
	l         *applogger.Logger
	workers   int
	now       func() time.Time
}

// NewForecastRunner creates a runner. processor may be nil.
func NewForecastRunner(
	source drepo.SeriesSource,
	fitter service.CurveFitter,
	processor Processor,
	metrics drepo.Metrics,
	l *applogger.Logger,
	workers int,
) *ForecastRunner {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if l == nil {
		l = applogger.Nop()
	}
	if workers < 1 {
		workers = 1
	}
	return &ForecastRunner{
		source:    source,
		fitter:    fitter,
		processor: processor,
		metrics:   metrics,
		l:         l,
		workers:   workers,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// companyFit is the outcome for one series.
type companyFit struct {
	forecasts []*models.Forecast
	err       error
}

// Run processes datasets in order. A dataset that fails to load is logged
// and skipped; its error is part of the joined result.
func (r *ForecastRunner) Run(ctx context.Context, datasets []DatasetRef, rep report.Reporter) error {
	var errs []error
	for _, ref := range datasets {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.RunDataset(ctx, ref, rep); err != nil {
			r.l.Error("dataset failed", applogger.String("dataset", ref.Name), applogger.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RunDataset loads one dataset, writes its header and one block per company
// in input order, then hands all forecasts to the processor.
//
// The design matrix is built once from the first series' length. A company
// with a different length is logged, counted and left out of the report.
func (r *ForecastRunner) RunDataset(ctx context.Context, ref DatasetRef, rep report.Reporter) error {
	start := time.Now()
	ds, err := r.source.Load(ctx, ref.Name, ref.Location)
	if err != nil {
		r.metrics.RecordError("load")
		return err
	}

	if err := rep.Header(ds.Name); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if len(ds.Series) == 0 {
		r.l.Warn("nothing to fit", applogger.String("dataset", ds.Name))
		return nil
	}

	x := ingest.DesignMatrix(ds.Series[0].Len())
	fits := r.fitAll(ctx, ds, x)

	var all []*models.Forecast
	for i, s := range ds.Series {
		fit := fits[i]
		if fit.err != nil {
			r.logFitError(ds.Name, s, fit.err)
		}
		if len(fit.forecasts) == 0 {
			continue
		}
		if err := rep.Company(s.Symbol, fit.forecasts); err != nil {
			return fmt.Errorf("write company %s: %w", s.Symbol, err)
		}
		for _, f := range fit.forecasts {
			r.metrics.RecordForecast(ds.Name, f.Model, f.Value.Finite())
		}
		all = append(all, fit.forecasts...)
	}

	r.l.Info("dataset fitted",
		applogger.String("dataset", ds.Name),
		applogger.Int("companies", len(ds.Series)),
		applogger.Int("forecasts", len(all)),
		applogger.Int("skipped_rows", ds.Skipped),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	r.metrics.RecordLatency("fit_dataset", time.Since(start).Seconds())

	if r.processor != nil && len(all) > 0 {
		if err := r.processor.Process(ctx, all); err != nil {
			return fmt.Errorf("dataset %s: %w", ds.Name, err)
		}
	}
	return nil
}

// fitAll fits every series, concurrently when workers > 1. Results are
// indexed like ds.Series.
func (r *ForecastRunner) fitAll(ctx context.Context, ds *models.Dataset, x linalg.Matrix) []companyFit {
	fits := make([]companyFit, len(ds.Series))
	at := r.now()

	if r.workers == 1 || len(ds.Series) == 1 {
		for i, s := range ds.Series {
			fits[i] = r.fitSeries(ds.Name, x, s, at)
		}
		return fits
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < r.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				fits[i] = r.fitSeries(ds.Name, x, ds.Series[i], at)
			}
		}()
	}
	for i := range ds.Series {
		if ctx.Err() != nil {
			fits[i] = companyFit{err: ctx.Err()}
			continue
		}
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return fits
}

func (r *ForecastRunner) fitSeries(dataset string, x linalg.Matrix, s models.Series, at time.Time) companyFit {
	results, err := r.fitter.FitAll(x, s.Values)
	return companyFit{forecasts: toForecasts(dataset, s.Symbol, results, at), err: err}
}

func (r *ForecastRunner) logFitError(dataset string, s models.Series, err error) {
	fields := []applogger.Field{
		applogger.String("dataset", dataset),
		applogger.String("symbol", s.Symbol),
		applogger.Int("periods", s.Len()),
		applogger.Error(err),
	}
	switch {
	case errors.Is(err, curvefit.ErrDimensionMismatch):
		r.metrics.RecordSkipped(dataset, "length_mismatch")
		r.l.Warn("skipping company: series length differs from dataset", fields...)
	case errors.Is(err, curvefit.ErrEmpty):
		r.metrics.RecordSkipped(dataset, "empty")
		r.l.Warn("skipping company: empty series", fields...)
	default:
		r.metrics.RecordError("fit")
		r.l.Warn("fit failed", fields...)
	}
}
