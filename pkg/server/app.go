package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	mid "FinFit/internal/middleware"
	"FinFit/internal/service/stream"
	"FinFit/internal/services/report"
	"FinFit/internal/usecase"
	"FinFit/pkg/cache"
	pkgch "FinFit/pkg/clickhouse"
	"FinFit/pkg/config"
	xhttp "FinFit/pkg/http"
	pkgkafka "FinFit/pkg/kafka"
	applogger "FinFit/pkg/logger"
)

// Deps are the components the application owns. Optional ones are nil when
// switched off in the configuration.
type Deps struct {
	Config    *config.Config
	Logger    *applogger.Logger
	Runner    *usecase.ForecastRunner
	Processor *usecase.ForecastProcessor
	Pipeline  *mid.ForecastPipeline
	HTTP      *xhttp.Server
	Hub       *stream.Hub
	Consumer  *pkgkafka.Consumer
	Producer  *pkgkafka.Producer
	CH        *pkgch.Client
	Cache     cache.Service
}

// App encapsulates the entire application lifecycle.
type App struct {
	Deps
	signals chan os.Signal
}

// New creates a new App instance with all dependencies.
func New(d Deps) *App {
	if d.Logger == nil {
		d.Logger = applogger.Nop()
	}
	return &App{Deps: d}
}

// Serving reports whether Run keeps running after the batch report.
func (a *App) Serving() bool {
	return a.HTTP != nil || a.Consumer != nil
}

// Run writes the batch report for every configured dataset, then serves
// HTTP and consumes the series topic until interrupted. Without any
// long-running component it returns once the report is written.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.Pipeline != nil {
		a.Pipeline.Start(ctx)
	}

	batchErr := a.runBatch(ctx)
	if !a.Serving() {
		return errors.Join(batchErr, a.shutdown(context.Background()))
	}
	if batchErr != nil {
		a.Logger.Warn("batch report finished with errors", applogger.Error(batchErr))
	}

	if a.HTTP != nil {
		if err := a.HTTP.Start(); err != nil {
			a.Logger.Error("http server start error", applogger.Error(err))
			return errors.Join(err, a.shutdown(context.Background()))
		}
	}
	if a.Consumer != nil {
		if err := a.Consumer.Start(); err != nil {
			a.Logger.Error("kafka consumer error", applogger.Error(err))
			return errors.Join(err, a.shutdown(context.Background()))
		}
		a.Logger.Info("kafka consumer started", applogger.String("topic", a.Config.Kafka.SeriesTopic))
	}

	// Wait for interrupt
	sigCh := a.signals
	if sigCh == nil {
		sigCh = make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigCh)
	}
	select {
	case <-sigCh:
		a.Logger.Info("shutdown signal received")
	case <-ctx.Done():
	}
	return a.shutdown(context.Background())
}

func (a *App) runBatch(ctx context.Context) error {
	if len(a.Config.Datasets) == 0 {
		return nil
	}
	w, err := report.Open(a.Config.Report.Output)
	if err != nil {
		return err
	}
	defer w.Close()

	rep, err := report.New(w, report.Format(a.Config.Report.Format))
	if err != nil {
		return err
	}
	refs := make([]usecase.DatasetRef, len(a.Config.Datasets))
	for i, d := range a.Config.Datasets {
		refs[i] = usecase.DatasetRef{Name: d.Name, Location: d.Path}
	}

	a.Logger.Info("writing report",
		applogger.String("output", a.Config.Report.Output),
		applogger.Int("datasets", len(refs)),
	)
	if err := a.Runner.Run(ctx, refs, rep); err != nil {
		return fmt.Errorf("batch report: %w", err)
	}
	return nil
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	var errs []error

	// Shutdown HTTP server
	if a.HTTP != nil {
		if err := a.HTTP.Stop(ctx); err != nil {
			a.Logger.Error("http shutdown error", applogger.Error(err))
			errs = append(errs, err)
		}
	}

	// Stop consumer
	if a.Consumer != nil {
		stopCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
		if err := a.Consumer.Stop(stopCtx); err != nil {
			a.Logger.Warn("kafka consumer stop error", applogger.Error(err))
			errs = append(errs, err)
		}
		cancel()
	}

	if a.Hub != nil {
		_ = a.Hub.Close()
	}
	if a.Pipeline != nil {
		if n := a.Pipeline.Stop(); n > 0 {
			a.Logger.Warn("dropping buffered forecast batches", applogger.Int("batches", n))
		}
	}

	// Flush aggregated logs while the producer is still open.
	a.Logger.RemoveCollector()

	if a.Processor != nil {
		a.Processor.Close()
	}
	if a.Producer != nil {
		if err := a.Producer.Close(); err != nil {
			a.Logger.Warn("kafka producer close error", applogger.Error(err))
		}
	}
	if a.CH != nil {
		if err := a.CH.Close(); err != nil {
			a.Logger.Warn("clickhouse close error", applogger.Error(err))
		}
	}
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			a.Logger.Warn("cache close error", applogger.Error(err))
		}
	}

	a.Logger.Info("shutdown complete")
	return errors.Join(errs...)
}
