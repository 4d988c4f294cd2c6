package di

import (
	"context"
	"fmt"
	"time"

	"FinFit/internal/domain/repository"
	"FinFit/internal/handler/api"
	mid "FinFit/internal/middleware"
	internalrepo "FinFit/internal/repository"
	apimetrics "FinFit/internal/service/metrics"
	"FinFit/internal/service/ratelimit"
	"FinFit/internal/service/stream"
	"FinFit/internal/services/curvefit"
	"FinFit/internal/usecase"
	"FinFit/pkg/cache"
	pkgch "FinFit/pkg/clickhouse"
	"FinFit/pkg/config"
	xhttp "FinFit/pkg/http"
	pkgkafka "FinFit/pkg/kafka"
	applogger "FinFit/pkg/logger"
	"FinFit/pkg/metrics"
	"FinFit/pkg/server"

	"github.com/prometheus/client_golang/prometheus"
)

// Providers for optional infrastructure return untyped nil when the
// component is switched off so downstream nil checks hold.

// ProvideKafkaProducer creates a Kafka producer, or nil when no brokers are configured.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
		pkgkafka.WithProducerRegisterer(prometheus.DefaultRegisterer),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideLogger builds the application logger. Repeated errors are shipped
// to the log topic when the collector is enabled and Kafka is available.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: cfg.Log.TimeFormat,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	if cfg.Log.Collector.Enabled && producer != nil {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   cfg.Log.Collector.Interval,
			CountThreshold: cfg.Log.Collector.CountThreshold,
			Topic:          cfg.Kafka.LogTopic,
			Publisher:      producer,
		})
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	apimetrics.Register()
	return metrics.New(prometheus.DefaultRegisterer)
}

// ProvideFitter builds the curve fitter from the engine section.
func ProvideFitter(cfg *config.Config) (*curvefit.Fitter, error) {
	singular, err := curvefit.ParsePolicy(cfg.Engine.Singular)
	if err != nil {
		return nil, err
	}
	logDomain, err := curvefit.ParsePolicy(cfg.Engine.LogDomain)
	if err != nil {
		return nil, err
	}
	solver, err := curvefit.NewSolver(cfg.Engine.Solver,
		curvefit.WithSingularPolicy(singular),
		curvefit.WithSingularEpsilon(cfg.Engine.Epsilon),
	)
	if err != nil {
		return nil, err
	}
	kinds, err := curvefit.ParseKinds(cfg.Engine.Models)
	if err != nil {
		return nil, err
	}
	return curvefit.NewFitter(solver, kinds, curvefit.WithLogDomainPolicy(logDomain))
}

// ProvideClickHouseClient creates a ClickHouse client when the clickhouse backend is selected.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if cfg.Backend.Type != usecase.BackendClickHouse {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideForecastStore creates the ClickHouse forecast store and ensures its schema.
func ProvideForecastStore(ch *pkgch.Client, cfg *config.Config, l *applogger.Logger) (repository.ForecastStore, error) {
	if ch == nil {
		return nil, nil
	}
	store := internalrepo.NewCHForecastStore(ch, cfg.ClickHouse.Database, l)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return store, nil
}

// ProvideForecastPublisher creates the Kafka publisher when the kafka backend is selected.
func ProvideForecastPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.ForecastPublisher {
	if producer == nil || cfg.Backend.Type != usecase.BackendKafka {
		return nil
	}
	return internalrepo.NewKafkaForecastPublisher(producer, cfg.Kafka.Topic)
}

// ProvideSeriesSource creates the CSV dataset loader.
func ProvideSeriesSource(m repository.Metrics, l *applogger.Logger) repository.SeriesSource {
	client := xhttp.NewClient(xhttp.WithTimeout(30*time.Second), xhttp.WithUserAgent("finfit"))
	return internalrepo.NewCSVSeriesSource(client, m, l)
}

// ProvideCache creates the forecast cache selected by cache.type.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	switch cfg.Cache.Type {
	case "none":
		return nil, nil
	case "memory":
		return cache.NewMemoryCache(cache.WithMaxSize(cfg.Cache.MemoryMaxSize)), nil
	}

	opts := []cache.Option{
		cache.WithAddr(cfg.Redis.Addr),
		cache.WithAuth(cfg.Redis.Password, cfg.Redis.DB),
		cache.WithPoolSize(cfg.Redis.PoolSize),
		cache.WithMaxSize(cfg.Cache.MemoryMaxSize),
	}
	rc, err := cache.NewRedisCache(opts...)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	if cfg.Cache.Type == "layered" {
		return cache.NewLayeredCache(rc, opts...), nil
	}
	return rc, nil
}

// ProvideStreamHub creates the websocket hub for live forecasts.
func ProvideStreamHub(l *applogger.Logger) *stream.Hub {
	return stream.NewHub(l)
}

// ProvideForecastProcessor wires the backend selected by backend.type.
func ProvideForecastProcessor(
	pub repository.ForecastPublisher,
	store repository.ForecastStore,
	hub *stream.Hub,
	m repository.Metrics,
	cfg *config.Config,
) *usecase.ForecastProcessor {
	return usecase.NewForecastProcessor(pub, store, hub, m, cfg.Backend.Type)
}

// ProvideForecastPipeline puts a retrying buffer in front of the processor
// for streamed series.
func ProvideForecastPipeline(proc *usecase.ForecastProcessor, m repository.Metrics) *mid.ForecastPipeline {
	return mid.NewForecastPipeline(proc, m,
		mid.WithBufferSize(2000),
		mid.WithBackoff(100*time.Millisecond, 5*time.Second),
	)
}

// ProvideForecastRunner creates the batch runner.
func ProvideForecastRunner(
	source repository.SeriesSource,
	fitter *curvefit.Fitter,
	proc *usecase.ForecastProcessor,
	m repository.Metrics,
	l *applogger.Logger,
	cfg *config.Config,
) *usecase.ForecastRunner {
	return usecase.NewForecastRunner(source, fitter, proc, m, l, cfg.Engine.Workers)
}

// ProvideForecastService creates the on-demand forecast use case.
func ProvideForecastService(fitter *curvefit.Fitter, c cache.Service, cfg *config.Config, l *applogger.Logger) *usecase.ForecastService {
	return usecase.NewForecastService(fitter, c, cfg.Cache.TTL, l)
}

// ProvideForecastEchoHandler creates the HTTP API handler.
func ProvideForecastEchoHandler(
	l *applogger.Logger,
	svc *usecase.ForecastService,
	store repository.ForecastStore,
	cfg *config.Config,
) *api.ForecastEchoHandler {
	limiter := ratelimit.New(cfg.RateLimit.Capacity, cfg.RateLimit.RefillPerSec)
	return api.NewForecastEchoHandler(l, svc, store, limiter)
}

// ProvideHTTPServer creates the HTTP server, or nil when server.enabled is off.
func ProvideHTTPServer(cfg *config.Config, h *api.ForecastEchoHandler, hub *stream.Hub, l *applogger.Logger) *xhttp.Server {
	if !cfg.Server.Enabled {
		return nil
	}
	return xhttp.NewServer(xhttp.Handlers{h, hub}, l,
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithCORS(cfg.Server.CORSOrigins...),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithMetrics(cfg.Metrics.Enabled, cfg.Metrics.Path),
		xhttp.WithSlowThreshold(cfg.Metrics.SlowThreshold),
	)
}

// ProvideKafkaSeriesHandler creates the handler for the series topic.
func ProvideKafkaSeriesHandler(
	cfg *config.Config,
	fitter *curvefit.Fitter,
	pipe *mid.ForecastPipeline,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.KafkaSeriesHandler {
	return usecase.NewKafkaSeriesHandler(cfg.Kafka.SeriesTopic, fitter, pipe, m, l)
}

// ProvideKafkaConsumer creates a Kafka consumer for the series topic, or nil
// when no series topic is configured.
func ProvideKafkaConsumer(cfg *config.Config, kh *usecase.KafkaSeriesHandler, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if cfg.Kafka.SeriesTopic == "" {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerLogger(l),
		pkgkafka.WithConsumerRegisterer(prometheus.DefaultRegisterer),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.NewHookChain(
		pkgkafka.TraceHook{},
		kh.SchemaHook(),
		pkgkafka.LogHook{Logger: l},
	))
	consumer.RegisterHandler(kh)
	return consumer, nil
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	runner *usecase.ForecastRunner,
	proc *usecase.ForecastProcessor,
	pipe *mid.ForecastPipeline,
	httpServer *xhttp.Server,
	hub *stream.Hub,
	consumer *pkgkafka.Consumer,
	producer *pkgkafka.Producer,
	chClient *pkgch.Client,
	c cache.Service,
) *server.App {
	return server.New(server.Deps{
		Config:    cfg,
		Logger:    l,
		Runner:    runner,
		Processor: proc,
		Pipeline:  pipe,
		HTTP:      httpServer,
		Hub:       hub,
		Consumer:  consumer,
		Producer:  producer,
		CH:        chClient,
		Cache:     c,
	})
}
