package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/ejjahanieklu/ehn/internal/messaging/kafka"
	"github.com/ejjahanieklu/ehn/internal/service/cleanup"
)

// initKafkaProducer создаёт producer, если заданы брокеры. Без брокеров
// возвращает nil, nil.
func initKafkaProducer(cfg Config, logger *log.Entry) (*kafka.Producer, error) {
	brokers := cfg.Brokers()
	if len(brokers) == 0 {
		return nil, nil
	}

	producer, err := kafka.NewProducer(brokers)
	if err != nil {
		return nil, err
	}

	logger.WithField("brokers", brokers).Info("kafka producer initialized")
	return producer, nil
}

// initCascadeConsumer подписывает обработчик каскада на события заказов.
// Сообщения, не обработанные после повторов, уходят в DLQ через producer.
func initCascadeConsumer(cfg Config, producer *kafka.Producer, items cleanup.OrderItemsRemover, logger *log.Entry) (*kafka.Consumer, error) {
	handler := cleanup.NewCascadeHandler(items, logger.WithField("component", "cascade-handler"))
	return kafka.NewConsumer(
		cfg.Brokers(),
		cfg.KafkaGroup,
		[]string{cfg.KafkaTopic},
		handler.Handle,
		kafka.WithDLQ(producer, kafka.TopicDeadLetterQueue),
		kafka.WithMaxRetries(cfg.KafkaMaxRetries),
	)
}

// closeKafka закрывает producer, если он создан.
func closeKafka(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}

	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
	} else {
		logger.Info("kafka producer closed")
	}
}
