package kafka_client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/google/uuid"
	"github.com/spacesedan/feedbackflow/config"
	"github.com/spacesedan/feedbackflow/internal/models"
)

var ErrProducerClosed = errors.New("[KafkaProducer] producer has been closed")

// transactionalProducer is the subset of *kafka.Producer used here.
type transactionalProducer interface {
	BeginTransaction() error
	Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error
	CommitTransaction(ctx context.Context) error
	AbortTransaction(ctx context.Context) error
	Flush(timeoutMs int) int
	Close()
}

type Producer struct {
	producer transactionalProducer
	topic    string
	retry    time.Duration
}

func NewProducer(ctx context.Context, cfg config.KafkaConfig, transactionalID string) (*Producer, error) {
	slog.Info("[KafkaProducer] Initializing Kafka Producer...",
		slog.String("broker", cfg.Broker),
		slog.String("transactional_id", transactionalID))

	p, err := kafka.NewProducer(ProducerConfigMap(cfg, transactionalID))
	if err != nil {
		return nil, fmt.Errorf("[KafkaProducer] Failed to create producer: %w", err)
	}

	if err := p.InitTransactions(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("[KafkaProducer] Failed to init transactions: %w", err)
	}

	slog.Info("[KafkaProducer] Kafka Producer initialized successfully")
	return newProducer(p, uploadTopic(cfg)), nil
}

func newProducer(p transactionalProducer, topic string) *Producer {
	return &Producer{producer: p, topic: topic, retry: RETRY_DELAY}
}

func uploadTopic(cfg config.KafkaConfig) string {
	if cfg.UploadTopic == "" {
		return KAFKA_TOPIC_FEEDBACK_UPLOADS
	}
	return cfg.UploadTopic
}

func (p *Producer) Close() {
	if p.producer == nil {
		return
	}
	slog.Info("[KafkaProducer] Flushing Kafka producer before shutdown...")
	if remaining := p.producer.Flush(5000); remaining > 0 {
		slog.Warn("[KafkaProducer] Not all messages were delivered before shutdown",
			slog.Int("remaining", remaining))
	}
	p.producer.Close()
	p.producer = nil
	slog.Info("[KafkaProducer] Kafka producer shut down")
}

// PublishUploads writes every message as its own record inside a single
// transaction, so consumers see either the whole upload or none of it.
// It returns the upload id shared by the records.
func (p *Producer) PublishUploads(ctx context.Context, source models.FeedbackSource, messages []models.ChatMessage) (string, error) {
	if p.producer == nil {
		return "", ErrProducerClosed
	}
	if len(messages) == 0 {
		return "", nil
	}

	uploadID := uuid.NewString()
	records := make([]*kafka.Message, 0, len(messages))
	for i, m := range messages {
		value, err := json.Marshal(models.UploadMessage{
			UploadID: uploadID,
			Source:   source,
			Message:  m,
		})
		if err != nil {
			return "", fmt.Errorf("[KafkaProducer] failed to serialize message %d: %w", i, err)
		}
		records = append(records, &kafka.Message{
			TopicPartition: kafka.TopicPartition{Topic: &p.topic, Partition: kafka.PartitionAny},
			Key:            []byte(uploadID),
			Value:          value,
		})
	}

	if err := p.producer.BeginTransaction(); err != nil {
		return "", fmt.Errorf("[KafkaProducer] failed to begin transaction: %w", err)
	}

	for _, record := range records {
		if err := p.produceWithRetry(ctx, record); err != nil {
			return "", p.abort(ctx, err)
		}
	}

	var commitErr error
	for i := 0; i < 3; i++ {
		commitErr = p.producer.CommitTransaction(ctx)
		if commitErr == nil {
			break
		}
		slog.Warn("[KafkaProducer] Failed to commit transaction, retrying...",
			slog.Int("attempt", i+1),
			slog.String("error", commitErr.Error()))
	}
	if commitErr != nil {
		return "", p.abort(ctx, fmt.Errorf("[KafkaProducer] failed to commit transaction after 3 retries: %w", commitErr))
	}

	slog.Info("[KafkaProducer] Published upload transactionally",
		slog.String("topic", p.topic),
		slog.String("upload_id", uploadID),
		slog.String("source", string(source)),
		slog.Int("messages", len(records)))
	return uploadID, nil
}

func (p *Producer) produceWithRetry(ctx context.Context, msg *kafka.Message) error {
	var err error
	for i := 0; i < 3; i++ {
		err = p.producer.Produce(msg, nil)
		if err == nil {
			return nil
		}
		slog.Warn("[KafkaProducer] Failed to produce message, retrying...",
			slog.Int("attempt", i+1),
			slog.String("error", err.Error()))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.retry):
		}
	}
	return err
}

func (p *Producer) abort(ctx context.Context, cause error) error {
	if abortErr := p.producer.AbortTransaction(ctx); abortErr != nil {
		return fmt.Errorf("[KafkaProducer] failed to abort transaction after %v: %w", cause, abortErr)
	}
	return cause
}
