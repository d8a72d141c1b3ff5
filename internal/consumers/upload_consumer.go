package consumers

import (
	"context"
	"log/slog"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/spacesedan/feedbackflow/internal/clients/kafka_client"
	"github.com/spacesedan/feedbackflow/internal/feedback"
	"github.com/spacesedan/feedbackflow/internal/models"
	"github.com/spacesedan/feedbackflow/internal/utils"
)

const shutdownFlushTimeout = 30 * time.Second

type Ingester interface {
	Ingest(ctx context.Context, messages []models.ChatMessage, source models.FeedbackSource) (feedback.IngestResult, error)
}

type messageIterator interface {
	Next() (*kafka.Message, error)
}

type offsetCommitter interface {
	Commit(msg *kafka.Message) error
}

// UploadConsumer buffers upload records and stores them through the
// ingester. Offsets are committed only after the batch holding them has
// been stored.
type UploadConsumer struct {
	ingester   Ingester
	iterator   messageIterator
	committer  offsetCommitter
	buffer     *utils.BatchBuffer[models.UploadMessage]
	offsets    *utils.OffsetTracker
	batchSize  int
	flushEvery time.Duration
}

func NewUploadConsumer(ingester Ingester, iterator messageIterator, committer offsetCommitter) *UploadConsumer {
	return &UploadConsumer{
		ingester:   ingester,
		iterator:   iterator,
		committer:  committer,
		buffer:     utils.NewBatchBuffer[models.UploadMessage](),
		offsets:    utils.NewOffsetTracker(),
		batchSize:  utils.BATCH_SIZE,
		flushEvery: utils.BATCH_TIMEOUT,
	}
}

// StartUploadConsumer adapts an UploadConsumer to the consumer registry.
func StartUploadConsumer(ingester Ingester) kafka_client.ConsumerFunc {
	return func(ctx context.Context, consumer *kafka.Consumer) {
		NewUploadConsumer(ingester,
			kafka_client.NewKafkaMessageIterator(ctx, consumer),
			kafka_client.NewCommitHandler(ctx, consumer),
		).Run(ctx)
	}
}

func (uc *UploadConsumer) Run(ctx context.Context) {
	slog.Info("[UploadConsumer] Listening for uploads...")

	ticker := time.NewTicker(uc.flushEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Warn("[UploadConsumer] Stopping consumer...")
			flushCtx, cancel := context.WithTimeout(context.Background(), shutdownFlushTimeout)
			uc.flush(flushCtx)
			cancel()
			return
		case <-ticker.C:
			uc.flush(ctx)
		default:
			msg, err := uc.iterator.Next()
			if err != nil {
				utils.HandleConsumerError(err)
				continue
			}
			if msg == nil {
				continue
			}
			uc.handle(ctx, msg)
		}
	}
}

func (uc *UploadConsumer) handle(ctx context.Context, msg *kafka.Message) {
	uc.offsets.Track(msg)

	var upload models.UploadMessage
	if err := utils.DeserializeFromJSON(msg.Value, &upload); err != nil {
		// undecodable records are committed with the next batch
		return
	}
	if upload.Source == "" {
		upload.Source = models.SourceUploaded
	}

	if uc.buffer.Add(upload) >= uc.batchSize {
		uc.flush(ctx)
	}
}

// flush stores everything buffered, grouped by source, then commits. On a
// store failure the unstored messages and all offsets are kept for the next
// flush.
func (uc *UploadConsumer) flush(ctx context.Context) {
	batch := uc.buffer.GetAndClear()
	pending := uc.offsets.Drain()
	if len(batch) == 0 && len(pending) == 0 {
		return
	}

	if remaining, err := uc.store(ctx, batch); err != nil {
		slog.Error("[UploadConsumer] Failed to store batch, will retry",
			slog.Int("messages", len(remaining)),
			slog.String("error", err.Error()))
		for _, upload := range remaining {
			uc.buffer.Add(upload)
		}
		for _, msg := range pending {
			uc.offsets.Track(msg)
		}
		return
	}

	for _, msg := range pending {
		if err := uc.committer.Commit(msg); err != nil {
			slog.Warn("[UploadConsumer] Failed to commit offset",
				slog.String("error", err.Error()))
		}
	}
}

// store returns the uploads that were not stored when err is non-nil.
func (uc *UploadConsumer) store(ctx context.Context, batch []models.UploadMessage) ([]models.UploadMessage, error) {
	var order []models.FeedbackSource
	bySource := make(map[models.FeedbackSource][]models.ChatMessage)
	for _, upload := range batch {
		if _, seen := bySource[upload.Source]; !seen {
			order = append(order, upload.Source)
		}
		bySource[upload.Source] = append(bySource[upload.Source], upload.Message)
	}

	for i, source := range order {
		result, err := uc.ingester.Ingest(ctx, bySource[source], source)
		if err != nil {
			return unstored(batch, order[i:]), err
		}
		slog.Info("[UploadConsumer] Batch stored",
			slog.String("source", string(source)),
			slog.Int("stored", result.Stored),
			slog.Int("skipped", result.Skipped))
	}
	return nil, nil
}

func unstored(batch []models.UploadMessage, sources []models.FeedbackSource) []models.UploadMessage {
	var out []models.UploadMessage
	for _, upload := range batch {
		for _, source := range sources {
			if upload.Source == source {
				out = append(out, upload)
				break
			}
		}
	}
	return out
}
