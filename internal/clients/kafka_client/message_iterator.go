package kafka_client

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"
)

type MessageReader interface {
	ReadMessage(timeout time.Duration) (*kafka.Message, error)
}

type KafkaMessageIterator struct {
	reader  MessageReader
	ctx     context.Context
	timeout time.Duration
	delay   time.Duration
}

func NewKafkaMessageIterator(ctx context.Context, reader MessageReader) *KafkaMessageIterator {
	return &KafkaMessageIterator{
		reader:  reader,
		ctx:     ctx,
		timeout: READ_TIMEOUT,
		delay:   RETRY_DELAY,
	}
}

// Next waits at most one read timeout. A nil message with a nil error means
// nothing arrived, which lets callers flush on their own schedule.
func (it *KafkaMessageIterator) Next() (*kafka.Message, error) {
	if it.reader == nil {
		return nil, errors.New("[KafkaIterator] Kafka consumer has not been initialized")
	}

	for i := 0; i < MAX_RETRIES; i++ {
		select {
		case <-it.ctx.Done():
			slog.Warn("[KafkaIterator] Context cancelled, stopping iterator")
			return nil, it.ctx.Err()
		default:
		}

		msg, err := it.reader.ReadMessage(it.timeout)
		if err == nil {
			return msg, nil
		}
		if isTimeout(err) {
			return nil, nil
		}
		if isAllBrokersDown(err) {
			slog.Error("[KafkaIterator] All Kafka brokers are down. Aborting")
			return nil, err
		}

		slog.Warn("[KafkaIterator] Failed to read message, retrying...",
			slog.Int("attempt", i+1),
			slog.Int("max_retries", MAX_RETRIES),
			slog.String("error", err.Error()))

		select {
		case <-it.ctx.Done():
			return nil, it.ctx.Err()
		case <-time.After(it.delay):
		}
	}
	return nil, errors.New("[KafkaIterator] Failed to read message after retries")
}
