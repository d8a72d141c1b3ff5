package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/spacesedan/feedbackflow/internal/models"
)

const (
	FEEDBACK_TABLE_NAME = "Feedback"

	maxBatchSize       = 25
	maxBatchRetries    = 3
	unprocessedBackoff = 500 * time.Millisecond
)

// DynamoDBAPI is the subset of *dynamodb.Client the store uses.
type DynamoDBAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	dynamodb.ScanAPIClient
}

type DynamoStore struct {
	client  DynamoDBAPI
	table   string
	backoff time.Duration
}

func NewDynamoStore(client DynamoDBAPI, table string) *DynamoStore {
	if table == "" {
		table = FEEDBACK_TABLE_NAME
	}
	return &DynamoStore{client: client, table: table, backoff: unprocessedBackoff}
}

func (s *DynamoStore) Insert(ctx context.Context, rec models.FeedbackRecord) error {
	item, err := FeedbackToDynamoDBItem(rec)
	if err != nil {
		return err
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("[DynamoDB] Failed to put feedback: %w", err)
	}
	return nil
}

// BatchInsert writes in chunks of 25 and retries unprocessed items with a
// doubling backoff.
func (s *DynamoStore) BatchInsert(ctx context.Context, recs []models.FeedbackRecord) error {
	for i := 0; i < len(recs); i += maxBatchSize {
		select {
		case <-ctx.Done():
			slog.Warn("[DynamoDB] context canceled")
			return ctx.Err()
		default:
		}

		end := min(i+maxBatchSize, len(recs))
		writeRequests := make([]types.WriteRequest, 0, end-i)
		for _, rec := range recs[i:end] {
			item, err := FeedbackToDynamoDBItem(rec)
			if err != nil {
				return err
			}
			writeRequests = append(writeRequests, types.WriteRequest{
				PutRequest: &types.PutRequest{Item: item},
			})
		}

		if err := s.writeBatch(ctx, writeRequests); err != nil {
			return err
		}
	}

	slog.Info("[DynamoDB] Successfully stored feedback",
		slog.Int("count", len(recs)))
	return nil
}

func (s *DynamoStore) writeBatch(ctx context.Context, writeRequests []types.WriteRequest) error {
	out, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
		RequestItems: map[string][]types.WriteRequest{
			s.table: writeRequests,
		},
	})
	if err != nil {
		return fmt.Errorf("[DynamoDB] Failed to batch write feedback: %w", err)
	}

	retryCount := 0
	backoff := s.backoff
	for len(out.UnprocessedItems) > 0 && retryCount < maxBatchRetries {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2

		slog.Warn("[DynamoDB] Retrying unprocessed items...",
			slog.Int("retry_attempt", retryCount+1),
			slog.Int("remaining_items", len(out.UnprocessedItems[s.table])))

		out, err = s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: out.UnprocessedItems,
		})
		if err != nil {
			slog.Error("[DynamoDB] Error retrying batch write",
				slog.String("error", err.Error()))
			return fmt.Errorf("[DynamoDB] Failed to retry batch write: %w", err)
		}
		retryCount++
	}

	if remaining := len(out.UnprocessedItems[s.table]); remaining > 0 {
		slog.Error("[DynamoDB] Some items were not written even after retries",
			slog.Int("remaining_items", remaining))
		return fmt.Errorf("[DynamoDB] %d feedback items unprocessed after retries", remaining)
	}
	return nil
}

// List scans the whole table. Feedback volumes are small enough that
// sorting happens in memory.
func (s *DynamoStore) List(ctx context.Context, key SortKey, desc bool) ([]models.FeedbackRecord, error) {
	var records []models.FeedbackRecord
	paginator := dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{
		TableName: aws.String(s.table),
	})

	for paginator.HasMorePages() {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("[DynamoDB] Scan for feedback failed: %w", err)
		}
		var page []models.FeedbackRecord
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			slog.Error("[DynamoDB] Unable to unmarshal feedback page",
				slog.String("error", err.Error()))
			return nil, err
		}
		records = append(records, page...)
	}

	SortRecords(records, key, desc)
	slog.Debug("[DynamoDB] Retrieved feedback", slog.Int("count", len(records)))
	return records, nil
}

func FeedbackToDynamoDBItem(rec models.FeedbackRecord) (map[string]types.AttributeValue, error) {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return nil, fmt.Errorf("[DynamoDB] Failed to marshal feedback %s: %w", rec.ID, err)
	}
	return item, nil
}
