package db

import (
	"context"
	"sync"

	"github.com/spacesedan/feedbackflow/internal/models"
)

// MemoryStore keeps records in process. Used for local runs and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records []models.FeedbackRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Insert(ctx context.Context, rec models.FeedbackRecord) error {
	return m.BatchInsert(ctx, []models.FeedbackRecord{rec})
}

func (m *MemoryStore) BatchInsert(ctx context.Context, recs []models.FeedbackRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, recs...)
	return nil
}

func (m *MemoryStore) List(ctx context.Context, key SortKey, desc bool) ([]models.FeedbackRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	out := append([]models.FeedbackRecord(nil), m.records...)
	m.mu.RUnlock()

	SortRecords(out, key, desc)
	return out, nil
}
