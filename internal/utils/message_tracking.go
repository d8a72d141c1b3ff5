package utils

import (
	"sync"

	"github.com/confluentinc/confluent-kafka-go/kafka"
)

type partitionKey struct {
	topic     string
	partition int32
}

// OffsetTracker remembers the highest offset seen per topic partition so a
// flushed batch can be acknowledged with one commit per partition.
type OffsetTracker struct {
	mu     sync.Mutex
	latest map[partitionKey]*kafka.Message
}

func NewOffsetTracker() *OffsetTracker {
	return &OffsetTracker{latest: make(map[partitionKey]*kafka.Message)}
}

func (t *OffsetTracker) Track(msg *kafka.Message) {
	if msg == nil {
		return
	}
	key := partitionKey{partition: msg.TopicPartition.Partition}
	if msg.TopicPartition.Topic != nil {
		key.topic = *msg.TopicPartition.Topic
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if prev, ok := t.latest[key]; ok && prev.TopicPartition.Offset >= msg.TopicPartition.Offset {
		return
	}
	t.latest[key] = msg
}

// Drain returns the tracked messages and resets the tracker.
func (t *OffsetTracker) Drain() []*kafka.Message {
	t.mu.Lock()
	defer t.mu.Unlock()

	msgs := make([]*kafka.Message, 0, len(t.latest))
	for _, msg := range t.latest {
		msgs = append(msgs, msg)
	}
	t.latest = make(map[partitionKey]*kafka.Message)
	return msgs
}
