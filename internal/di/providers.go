package di

import (
	"context"
	"fmt"
	"time"

	"EmaScreen/internal/domain/repository"
	"EmaScreen/internal/handler/api"
	internalrepo "EmaScreen/internal/repository"
	"EmaScreen/internal/scheduler"
	"EmaScreen/internal/service/nse"
	"EmaScreen/internal/service/ratelimit"
	"EmaScreen/internal/service/registry"
	"EmaScreen/internal/usecase"
	"EmaScreen/pkg/cache"
	pkgch "EmaScreen/pkg/clickhouse"
	"EmaScreen/pkg/config"
	xhttp "EmaScreen/pkg/http"
	pkgkafka "EmaScreen/pkg/kafka"
	"EmaScreen/pkg/logger"
	"EmaScreen/pkg/metrics"
	"EmaScreen/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

// ProvideRegistry loads the instrument universe from the configured CSV.
func ProvideRegistry(cfg *config.Config, log *logger.Logger) (repository.Registry, error) {
	reg, err := registry.LoadCSV(cfg.Registry.File)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	log.Info("registry loaded",
		logger.String("file", cfg.Registry.File),
		logger.Int("instruments", reg.Size()))
	return reg, nil
}

// ProvideHistoryStore creates the bar store for the configured backend.
// The clickhouse backend also runs the idempotent schema DDL.
func ProvideHistoryStore(cfg *config.Config) (repository.HistoryStore, error) {
	if cfg.Storage.Backend == "memory" {
		return internalrepo.NewMemoryHistory(), nil
	}

	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.HistorySchema(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return internalrepo.NewClickHouseHistory(client, cfg.ClickHouse.Database), nil
}

// ProvideCacheStore creates the state store backend: Redis in production,
// in-process memory when the memory storage backend is selected so a dev
// instance needs no infrastructure at all.
func ProvideCacheStore(cfg *config.Config) (cache.Store, error) {
	if cfg.Storage.Backend == "memory" {
		return cache.NewMemoryStore(), nil
	}
	store, err := cache.NewRedisStore(
		cache.WithAddr(cfg.Redis.Addr),
		cache.WithPassword(cfg.Redis.Password),
		cache.WithDB(cfg.Redis.DB),
		cache.WithPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	return store, nil
}

// ProvideStateStore creates the EMA/ledger/marker persistence layer.
func ProvideStateStore(kv cache.Store) *internalrepo.StateStore {
	return internalrepo.NewStateStore(kv)
}

// ProvidePacer creates the request pacer shared by all fetches.
func ProvidePacer(cfg *config.Config) *ratelimit.Pacer {
	return ratelimit.NewPacer(cfg.Source.RateDelay)
}

// ProvideBarSource creates the exchange history client.
func ProvideBarSource(cfg *config.Config, pacer *ratelimit.Pacer, log *logger.Logger) repository.BarSource {
	return nse.New(nse.Config{
		BaseURL:        cfg.Source.BaseURL,
		HistoricalURL:  cfg.Source.HistoricalURL,
		MaxRetries:     cfg.Source.MaxRetries,
		SessionRefresh: cfg.Source.SessionRefresh,
		RequestTimeout: cfg.Source.RequestTimeout,
		Location:       cfg.Location(),
	}, pacer, log)
}

// ProvideMetrics creates the Prometheus recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvidePublisher creates the Kafka update publisher, or a no-op one when
// Kafka is disabled.
func ProvidePublisher(cfg *config.Config) (repository.UpdatePublisher, error) {
	if !cfg.Kafka.Enabled {
		return internalrepo.NoopPublisher{}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
		pkgkafka.WithWriteTimeout(cfg.Kafka.WriteTimeout),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topic), nil
}

// ProvideScreener creates the EMA cache use case.
func ProvideScreener(cfg *config.Config, history repository.HistoryStore, state *internalrepo.StateStore, log *logger.Logger) *usecase.Screener {
	return usecase.NewScreener(cfg.Screener.Period, history, state, log)
}

// ProvideUpdater creates the update orchestrator.
func ProvideUpdater(
	cfg *config.Config,
	reg repository.Registry,
	history repository.HistoryStore,
	source repository.BarSource,
	screener *usecase.Screener,
	state *internalrepo.StateStore,
	publisher repository.UpdatePublisher,
	m repository.Metrics,
	log *logger.Logger,
) *usecase.Updater {
	hour, minute := cfg.CutoffClock()
	return usecase.NewUpdater(
		usecase.UpdaterConfig{
			Location:     cfg.Location(),
			CutoffHour:   hour,
			CutoffMinute: minute,
		},
		reg, history, source, screener, state, state, publisher, m, log,
	)
}

// ProvideScheduler creates the cron trigger.
func ProvideScheduler(cfg *config.Config, updater *usecase.Updater, log *logger.Logger) (*scheduler.Scheduler, error) {
	return scheduler.New(cfg.Schedule.Cron, cfg.Schedule.RunOnStart, updater, cfg.Location(), log)
}

// ProvideHandler creates the API handler.
func ProvideHandler(
	screener *usecase.Screener,
	updater *usecase.Updater,
	history repository.HistoryStore,
	reg repository.Registry,
	log *logger.Logger,
) *api.Handler {
	return api.NewHandler(screener, updater, history, reg, log)
}

// ProvideHTTPHandler exposes the API handler as the server's route source.
func ProvideHTTPHandler(h *api.Handler) xhttp.Handler {
	return h
}

// ProvideApp assembles the application.
func ProvideApp(
	cfg *config.Config,
	log *logger.Logger,
	screener *usecase.Screener,
	updater *usecase.Updater,
	sched *scheduler.Scheduler,
	handler xhttp.Handler,
	history repository.HistoryStore,
	publisher repository.UpdatePublisher,
	kv cache.Store,
) *server.App {
	return server.New(cfg, log, screener, updater, sched, handler, history, publisher, kv)
}
