// Package factory wires configuration, clients, repositories, and the
// pipeline components, and owns their shutdown order.
package factory

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"authwatch/internal/client"
	"authwatch/internal/config"
	"authwatch/internal/eventsource"
	"authwatch/internal/metrics"
	"authwatch/internal/pipeline"
	"authwatch/internal/repository/postgres"
	"authwatch/internal/retention"
	"authwatch/internal/risk"
	"authwatch/internal/scheduler"
	"authwatch/internal/util"
)

type Factory struct {
	config *config.Config
	logger *zap.Logger

	// Clients
	postgresClient *postgres.PostgresClient
	redisClient    *client.RedisClient
	esClient       *client.ESClient
	kafkaProducer  *client.KafkaProducer

	// Repositories
	userRepository    postgres.UserRepository
	loginRepository   postgres.LoginRepository
	alertRepository   postgres.AlertRepository
	taskRepository    postgres.TaskSettingsRepository
	historyRepository postgres.HistoryRepository

	// Components
	collector *metrics.Collector
	runner    *pipeline.Runner
	purger    *retention.Purger
	locker    scheduler.Locker

	closeOnce sync.Once
}

// NewFactory loads config and initializes every dependency, health checking
// the critical ones. Kafka is optional: a failed producer init downgrades to
// persist-and-log alerting.
func NewFactory() (*Factory, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := util.Init(cfg.Environment, cfg.Logging.Level, cfg.Logging.Format)

	f := &Factory{
		config:    cfg,
		logger:    logger,
		collector: metrics.NewCollector(),
	}

	if err := f.initializeClients(); err != nil {
		return nil, fmt.Errorf("failed to initialize clients: %w", err)
	}

	f.initializeRepositories()
	f.initializeComponents()

	logger.Info("factory initialized",
		zap.String("environment", cfg.Environment),
		zap.Bool("kafka_enabled", f.kafkaProducer != nil),
	)

	return f, nil
}

func (f *Factory) initializeClients() error {
	pg, err := postgres.NewPostgresClient(f.config, f.logger)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	f.postgresClient = pg

	rc, err := client.NewRedisClient(f.config, f.logger)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	f.redisClient = rc

	es, err := client.NewElasticsearchClient(f.config, f.logger)
	if err != nil {
		return fmt.Errorf("elasticsearch: %w", err)
	}
	f.esClient = es

	if f.config.KafkaEnabled() {
		producer, err := client.NewKafkaProducer(f.config, f.logger)
		if err != nil {
			f.logger.Warn("kafka producer initialization failed, alerts will not be published",
				zap.Error(err),
			)
		} else {
			f.kafkaProducer = producer
		}
	}

	return nil
}

func (f *Factory) initializeRepositories() {
	f.userRepository = postgres.NewUserRepository(f.postgresClient, f.logger)
	f.loginRepository = postgres.NewLoginRepository(f.postgresClient, f.logger)
	f.alertRepository = postgres.NewAlertRepository(f.postgresClient, f.logger)
	f.taskRepository = postgres.NewTaskSettingsRepository(f.postgresClient, f.logger)
	f.historyRepository = postgres.NewHistoryRepository(f.postgresClient, f.logger)
}

func (f *Factory) initializeComponents() {
	cfg := f.config

	source := eventsource.NewElasticSource(f.esClient, cfg.Elasticsearch, f.logger)

	emitter := pipeline.NewEmitter(
		f.alertRepository,
		f.kafkaProducer,
		cfg.Kafka.AlertTopic,
		f.collector,
		f.logger,
	)

	scorer := risk.NewScorer(f.userRepository, f.logger)

	analyzer := pipeline.NewAnalyzer(
		f.userRepository,
		f.loginRepository,
		f.historyRepository,
		emitter,
		scorer,
		cfg.Detection.MaxTravelSpeedKmH,
		f.collector,
		f.logger,
	)

	windows := pipeline.NewWindowTracker(f.taskRepository, cfg.Detection.WindowSlice, f.logger)

	f.runner = pipeline.NewRunner(
		windows,
		source,
		analyzer,
		cfg.Detection.Concurrency,
		f.collector,
		f.logger,
	)

	f.purger = retention.NewPurger(
		f.userRepository,
		f.loginRepository,
		f.alertRepository,
		cfg.Retention,
		f.collector,
		f.logger,
	)

	f.locker = scheduler.NewRedisLocker(f.redisClient)
}

// HealthCheck reports per-dependency health for the readiness endpoint.
func (f *Factory) HealthCheck(ctx context.Context) map[string]error {
	health := map[string]error{
		"postgres":      f.postgresClient.HealthCheck(ctx),
		"redis":         f.redisClient.HealthCheck(ctx),
		"elasticsearch": f.esClient.HealthCheck(ctx),
	}
	if f.kafkaProducer != nil {
		health["kafka"] = f.kafkaProducer.HealthCheck(ctx)
	}
	return health
}

func (f *Factory) Close() {
	f.closeOnce.Do(func() {
		f.logger.Info("shutting down factory")

		if f.kafkaProducer != nil {
			_ = f.kafkaProducer.Close()
		}
		if f.esClient != nil {
			f.esClient.Close()
		}
		if f.redisClient != nil {
			_ = f.redisClient.Close()
		}
		if f.postgresClient != nil {
			f.postgresClient.Close()
		}

		util.Sync()
	})
}

func (f *Factory) Config() *config.Config {
	return f.config
}

func (f *Factory) Logger() *zap.Logger {
	return f.logger
}

func (f *Factory) Metrics() *metrics.Collector {
	return f.collector
}

func (f *Factory) Runner() *pipeline.Runner {
	return f.runner
}

func (f *Factory) Purger() *retention.Purger {
	return f.purger
}

func (f *Factory) Locker() scheduler.Locker {
	return f.locker
}
