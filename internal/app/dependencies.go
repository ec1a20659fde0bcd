package app

import (
	"context"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/ejjahanieklu/ehn/internal/docstore"
	"github.com/ejjahanieklu/ehn/internal/messaging/kafka"
	"github.com/ejjahanieklu/ehn/internal/metrics"
	"github.com/ejjahanieklu/ehn/internal/notify"
	"github.com/ejjahanieklu/ehn/internal/service/ordering"
	"github.com/ejjahanieklu/ehn/internal/service/summary"
)

// Dependencies содержит все зависимости приложения.
type Dependencies struct {
	Gateway   docstore.Gateway
	Orders    *ordering.OrderRepository
	Items     *ordering.ItemRepository
	Summaries *summary.Service
	Hub       *notify.Hub
	Notifier  *notify.Dispatcher
	Metrics   *metrics.Metrics
	Redis     *redis.Client
	Relay     *notify.RedisRelay
	Kafka     *kafka.Producer
	Logger    *log.Entry
}

// NewDependencies открывает хранилище и собирает репозитории и рассылку.
// Redis и Kafka необязательны: при ошибке подключения сервис работает без них.
func NewDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	gateway, err := OpenGateway(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	repoOptions := []ordering.Option{
		ordering.WithOpTimeout(cfg.StoreOpTimeout),
		ordering.WithObserver(m),
	}
	orders := ordering.NewOrderRepository(gateway, repoOptions...)
	items := ordering.NewItemRepository(gateway, repoOptions...)

	deps := &Dependencies{
		Gateway:   gateway,
		Orders:    orders,
		Items:     items,
		Summaries: summary.NewService(orders, items),
		Hub:       notify.NewHub(),
		Metrics:   m,
		Logger:    logger,
	}

	// Hub обслуживает наблюдателей этого экземпляра и не зависит от Redis.
	hooks := []notify.Hook{deps.Hub}
	if relay := deps.initRedis(ctx, cfg); relay != nil {
		hooks = append(hooks, relay)
	}

	producer, err := initKafkaProducer(cfg, logger)
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
	}
	if producer != nil {
		deps.Kafka = producer
		hooks = append(hooks, kafka.NewEventHook(producer, cfg.KafkaTopic))
	}

	deps.Notifier = notify.NewDispatcher(hooks,
		notify.WithTimeout(cfg.NotifyTimeout),
		notify.WithObserver(m),
	)
	logger.WithField("hooks", deps.Notifier.Hooks()).Info("notification hooks registered")
	return deps, nil
}

// initRedis подключает relay, если задан redis.addr и Redis отвечает.
func (d *Dependencies) initRedis(ctx context.Context, cfg Config) *notify.RedisRelay {
	if cfg.RedisAddr == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	pingCtx, cancel := context.WithTimeout(ctx, cfg.StoreOpTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		d.Logger.WithError(err).WithField("addr", cfg.RedisAddr).Warn("redis unavailable, continuing with local fan-out")
		_ = client.Close()
		return nil
	}

	d.Redis = client
	d.Relay = notify.NewRedisRelay(client, cfg.RedisChannel, d.Hub, d.Logger.WithField("component", "redis-relay"))
	d.Logger.WithField("addr", cfg.RedisAddr).Info("redis relay initialized")
	return d.Relay
}

// Close освобождает подключения в порядке, обратном созданию.
func (d *Dependencies) Close(ctx context.Context) {
	d.Hub.Close()
	closeKafka(d.Kafka, d.Logger)
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.Logger.WithError(err).Warn("failed to close redis client")
		}
	}
	if err := d.Gateway.Close(ctx); err != nil {
		d.Logger.WithError(err).Warn("failed to close document store")
	}
}
