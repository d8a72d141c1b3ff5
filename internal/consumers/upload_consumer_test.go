package consumers

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/spacesedan/feedbackflow/internal/feedback"
	"github.com/spacesedan/feedbackflow/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ingestCall struct {
	source   models.FeedbackSource
	messages []models.ChatMessage
}

type fakeIngester struct {
	mu    sync.Mutex
	calls []ingestCall
	fail  map[models.FeedbackSource]error
}

func (f *fakeIngester) Ingest(_ context.Context, messages []models.ChatMessage, source models.FeedbackSource) (feedback.IngestResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[source]; err != nil {
		return feedback.IngestResult{}, err
	}
	f.calls = append(f.calls, ingestCall{source: source, messages: messages})
	return feedback.IngestResult{Stored: len(messages)}, nil
}

func (f *fakeIngester) snapshot() []ingestCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ingestCall(nil), f.calls...)
}

type fakeCommitter struct {
	mu        sync.Mutex
	committed []kafka.Offset
}

func (f *fakeCommitter) Commit(msg *kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.committed = append(f.committed, msg.TopicPartition.Offset)
	return nil
}

func (f *fakeCommitter) offsets() []kafka.Offset {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]kafka.Offset(nil), f.committed...)
}

type sliceIterator struct {
	mu   sync.Mutex
	msgs []*kafka.Message
}

func (it *sliceIterator) Next() (*kafka.Message, error) {
	it.mu.Lock()
	defer it.mu.Unlock()
	if len(it.msgs) == 0 {
		time.Sleep(time.Millisecond)
		return nil, nil
	}
	msg := it.msgs[0]
	it.msgs = it.msgs[1:]
	return msg, nil
}

var testTopic = "feedback-uploads"

func record(t *testing.T, offset kafka.Offset, source models.FeedbackSource, content string) *kafka.Message {
	t.Helper()
	value, err := json.Marshal(models.UploadMessage{
		UploadID: "upload-1",
		Source:   source,
		Message:  models.ChatMessage{Content: content, Spectrum: models.UnspecifiedSpectrum},
	})
	require.NoError(t, err)
	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &testTopic, Partition: 0, Offset: offset},
		Value:          value,
	}
}

func TestUploadConsumer_FlushGroupsBySourceThenCommits(t *testing.T) {
	ingester := &fakeIngester{}
	committer := &fakeCommitter{}
	uc := NewUploadConsumer(ingester, &sliceIterator{}, committer)
	ctx := context.Background()

	uc.handle(ctx, record(t, 1, models.SourceUploaded, "first uploaded line"))
	uc.handle(ctx, record(t, 2, models.SourceFacebook, "a facebook post body"))
	uc.handle(ctx, record(t, 3, models.SourceUploaded, "second uploaded line"))
	assert.Empty(t, committer.offsets())

	uc.flush(ctx)

	calls := ingester.snapshot()
	require.Len(t, calls, 2)
	assert.Equal(t, models.SourceUploaded, calls[0].source)
	assert.Len(t, calls[0].messages, 2)
	assert.Equal(t, models.SourceFacebook, calls[1].source)
	assert.Equal(t, []kafka.Offset{3}, committer.offsets())
}

func TestUploadConsumer_FlushesWhenBatchIsFull(t *testing.T) {
	ingester := &fakeIngester{}
	committer := &fakeCommitter{}
	uc := NewUploadConsumer(ingester, &sliceIterator{}, committer)
	uc.batchSize = 2
	ctx := context.Background()

	uc.handle(ctx, record(t, 1, models.SourceUploaded, "first uploaded line"))
	assert.Empty(t, ingester.snapshot())
	uc.handle(ctx, record(t, 2, models.SourceUploaded, "second uploaded line"))

	require.Len(t, ingester.snapshot(), 1)
	assert.Equal(t, []kafka.Offset{2}, committer.offsets())
}

func TestUploadConsumer_StoreFailureKeepsOffsets(t *testing.T) {
	ingester := &fakeIngester{fail: map[models.FeedbackSource]error{
		models.SourceFacebook: errors.New("throttled"),
	}}
	committer := &fakeCommitter{}
	uc := NewUploadConsumer(ingester, &sliceIterator{}, committer)
	ctx := context.Background()

	uc.handle(ctx, record(t, 1, models.SourceUploaded, "first uploaded line"))
	uc.handle(ctx, record(t, 2, models.SourceFacebook, "a facebook post body"))
	uc.flush(ctx)

	assert.Empty(t, committer.offsets())
	assert.Equal(t, 1, uc.buffer.Size())

	ingester.mu.Lock()
	ingester.fail = nil
	ingester.mu.Unlock()
	uc.flush(ctx)

	calls := ingester.snapshot()
	require.Len(t, calls, 2)
	assert.Equal(t, models.SourceFacebook, calls[1].source)
	assert.Equal(t, []kafka.Offset{2}, committer.offsets())
}

func TestUploadConsumer_UndecodableRecordIsCommitted(t *testing.T) {
	ingester := &fakeIngester{}
	committer := &fakeCommitter{}
	uc := NewUploadConsumer(ingester, &sliceIterator{}, committer)

	uc.handle(context.Background(), &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &testTopic, Offset: 9},
		Value:          []byte("not json"),
	})
	uc.flush(context.Background())

	assert.Empty(t, ingester.snapshot())
	assert.Equal(t, []kafka.Offset{9}, committer.offsets())
}

func TestUploadConsumer_RunFlushesOnShutdown(t *testing.T) {
	ingester := &fakeIngester{}
	committer := &fakeCommitter{}
	iterator := &sliceIterator{msgs: []*kafka.Message{
		record(t, 4, models.SourceUploaded, "message before shutdown"),
	}}
	uc := NewUploadConsumer(ingester, iterator, committer)
	uc.flushEvery = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		uc.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return uc.buffer.Size() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	require.Len(t, ingester.snapshot(), 1)
	assert.Equal(t, []kafka.Offset{4}, committer.offsets())
}
