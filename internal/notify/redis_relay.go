package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// DefaultRedisChannel это канал Redis для событий заказов.
const DefaultRedisChannel = "ehn:order-events"

// RedisRelay рассылает события между экземплярами сервиса через Redis
// pub/sub. Deliver публикует событие в канал с меткой своего экземпляра,
// Run передаёт в локальный Hub только события других экземпляров:
// локальных наблюдателей обслуживает Hub, зарегистрированный отдельным hook.
type RedisRelay struct {
	client   *redis.Client
	channel  string
	instance string
	local    *Hub
	logger   *log.Entry

	readyOnce sync.Once
	ready     chan struct{}
}

// NewRedisRelay создаёт relay поверх клиента Redis.
func NewRedisRelay(client *redis.Client, channel string, local *Hub, logger *log.Entry) *RedisRelay {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	if logger == nil {
		logger = log.WithField("component", "redis-relay")
	}
	instance := uuid.NewString()
	return &RedisRelay{
		client:   client,
		channel:  channel,
		instance: instance,
		local:    local,
		logger:   logger.WithFields(log.Fields{"channel": channel, "instance": instance}),
		ready:    make(chan struct{}),
	}
}

func (r *RedisRelay) Name() string {
	return "redis"
}

// Deliver публикует событие в канал Redis.
func (r *RedisRelay) Deliver(ctx context.Context, event Event) error {
	event.Origin = r.instance
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
		return fmt.Errorf("publish event to redis: %w", err)
	}
	return nil
}

// Ready закрывается, когда подписка на канал подтверждена.
func (r *RedisRelay) Ready() <-chan struct{} {
	return r.ready
}

// Run блокируется до отмены ctx, пересылая события из Redis в локальный Hub.
func (r *RedisRelay) Run(ctx context.Context) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("subscribe to redis channel: %w", err)
	}
	r.readyOnce.Do(func() { close(r.ready) })
	r.logger.Info("redis relay subscribed")

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("redis relay stopped")
			return nil
		case msg, ok := <-messages:
			if !ok {
				r.logger.Warn("redis relay channel closed")
				return nil
			}

			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				r.logger.WithError(err).Warn("skip malformed event")
				continue
			}
			if event.Origin == r.instance {
				continue
			}
			r.local.Publish(event)
		}
	}
}

var _ Hook = (*RedisRelay)(nil)
