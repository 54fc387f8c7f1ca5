package di

import (
	"context"
	"fmt"
	"time"

	"GrowthOpt/internal/dl"
	"GrowthOpt/internal/domain/repository"
	"GrowthOpt/internal/handler/api"
	"GrowthOpt/internal/ledoitwolf"
	"GrowthOpt/internal/port"
	internalrepo "GrowthOpt/internal/repository"
	"GrowthOpt/internal/usecase"
	"GrowthOpt/pkg/cache"
	pkgch "GrowthOpt/pkg/clickhouse"
	"GrowthOpt/pkg/config"
	xhttp "GrowthOpt/pkg/http"
	pkgkafka "GrowthOpt/pkg/kafka"
	"GrowthOpt/pkg/logger"
	"GrowthOpt/pkg/metrics"
	"GrowthOpt/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
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

// ProvideQuotes creates the quote repository and ensures its schema.
func ProvideQuotes(client *pkgch.Client, cfg *config.Config, log *logger.Logger) (repository.Quotes, error) {
	table := cfg.ClickHouse.QuotesTable
	if table == "" {
		table = cfg.ClickHouse.Database + ".quotes"
	}

	quotes := internalrepo.NewClickHouseQuotes(client, table, log)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := quotes.InitSchema(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("quotes schema: %w", err)
	}

	return quotes, nil
}

// ProvideModelStore creates the Redis-backed weight store.
func ProvideModelStore(cfg *config.Config, log *logger.Logger) (repository.ModelStore, error) {
	prefix := cfg.Redis.KeyPrefix
	if prefix == "" {
		prefix = "growthopt"
	}

	store, err := cache.NewRedisStore(
		cache.WithAddr(cfg.Redis.Addr),
		cache.WithAuth(cfg.Redis.Password, cfg.Redis.DB),
		cache.WithPrefix(prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis store: %w", err)
	}

	return internalrepo.NewCachedModelStore(store, cfg.Redis.TTL, log), nil
}

// ProvideReports creates the Kafka report publisher, or nil when report
// publishing is disabled.
func ProvideReports(cfg *config.Config, log *logger.Logger) (repository.Reports, error) {
	if !cfg.Reports.Enabled {
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
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	return internalrepo.NewKafkaReports(producer, cfg.Reports.Topic, log), nil
}

// ProvideCorrelationSource creates the shrinkage covariance estimator.
func ProvideCorrelationSource(quotes repository.Quotes, log *logger.Logger) port.CorrelationSource {
	return ledoitwolf.NewEstimator(quotes, log)
}

// ProvideOptimizer creates the portfolio optimizer.
func ProvideOptimizer(cov port.CorrelationSource, reports repository.Reports, m repository.Metrics, log *logger.Logger) *port.Optimizer {
	return port.NewOptimizer(cov, reports, m, log)
}

// ProvideModelFactory creates the model factory over quote-backed loaders.
func ProvideModelFactory(quotes repository.Quotes, opt *port.Optimizer, m repository.Metrics, cfg *config.Config, log *logger.Logger) *dl.Factory {
	return dl.NewFactory(
		dl.NewQuoteLoaders(quotes, log),
		opt,
		m,
		log,
		dl.Device(cfg.Training.Device),
		cfg.Training.ProgressEvery,
	)
}

// ProvideForecaster creates the forecast use case.
func ProvideForecaster(factory *dl.Factory, opt *port.Optimizer, store repository.ModelStore, m repository.Metrics, log *logger.Logger) *usecase.Forecaster {
	return usecase.NewForecaster(factory, opt, store, m, log)
}

// ProvideSeqTester creates the sequential median test use case.
func ProvideSeqTester(log *logger.Logger) *usecase.SeqTester {
	return usecase.NewSeqTester(log)
}

// ProvideHandler creates the HTTP handler.
func ProvideHandler(log *logger.Logger, forecaster *usecase.Forecaster, seq *usecase.SeqTester, quotes repository.Quotes) xhttp.Handler {
	return api.NewForecastHandler(log, forecaster, seq, quotes)
}

// ProvideApp creates the application server.
func ProvideApp(cfg *config.Config, log *logger.Logger, handler xhttp.Handler, quotes repository.Quotes, store repository.ModelStore, reports repository.Reports) *server.App {
	return server.New(cfg, log, handler, quotes, store, reports)
}
