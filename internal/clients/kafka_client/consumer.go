package kafka_client

import (
	"fmt"
	"log/slog"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/spacesedan/feedbackflow/config"
)

// NewConsumer returns a read-committed consumer with auto commit disabled,
// subscribed to the upload topic.
func NewConsumer(cfg config.KafkaConfig) (*kafka.Consumer, error) {
	topic := uploadTopic(cfg)
	slog.Info("[KafkaConsumer] Initializing Kafka Consumer...",
		slog.String("broker", cfg.Broker),
		slog.String("group_id", cfg.GroupID),
		slog.String("topic", topic))

	c, err := kafka.NewConsumer(ConsumerConfigMap(cfg))
	if err != nil {
		return nil, fmt.Errorf("[KafkaConsumer] Failed to create consumer: %w", err)
	}

	if err := c.SubscribeTopics([]string{topic}, nil); err != nil {
		c.Close()
		return nil, fmt.Errorf("[KafkaConsumer] Failed to subscribe to topics: %w", err)
	}

	slog.Info("[KafkaConsumer] Kafka Consumer initialized successfully")
	return c, nil
}

func isAllBrokersDown(err error) bool {
	kafkaErr, ok := err.(kafka.Error)
	return ok && kafkaErr.Code() == kafka.ErrAllBrokersDown
}

func isTimeout(err error) bool {
	kafkaErr, ok := err.(kafka.Error)
	return ok && kafkaErr.Code() == kafka.ErrTimedOut
}
