package db

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/spacesedan/feedbackflow/internal/models"
)

type SortKey string

const (
	SortTimestamp  SortKey = "timestamp"
	SortSpectrum   SortKey = "spectrum"
	SortScore      SortKey = "score"
	SortConfidence SortKey = "confidence"
)

var ErrUnknownSortKey = errors.New("unknown sort key")

// ParseSortKey maps a query value onto a SortKey. Empty means timestamp.
func ParseSortKey(raw string) (SortKey, error) {
	switch key := SortKey(strings.ToLower(strings.TrimSpace(raw))); key {
	case "", "date":
		return SortTimestamp, nil
	case SortTimestamp, SortSpectrum, SortScore, SortConfidence:
		return key, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSortKey, raw)
}

// Store persists feedback records.
type Store interface {
	Insert(ctx context.Context, rec models.FeedbackRecord) error
	BatchInsert(ctx context.Context, recs []models.FeedbackRecord) error
	List(ctx context.Context, key SortKey, desc bool) ([]models.FeedbackRecord, error)
}

// SortRecords orders recs in place. Spectrum sorts far-left to far-right
// ascending; ties fall back to newest first.
func SortRecords(recs []models.FeedbackRecord, key SortKey, desc bool) {
	slices.SortStableFunc(recs, func(a, b models.FeedbackRecord) int {
		c := compareBy(a, b, key)
		if desc {
			c = -c
		}
		if c == 0 && key != SortTimestamp {
			c = b.Timestamp.Compare(a.Timestamp)
		}
		return c
	})
}

func compareBy(a, b models.FeedbackRecord, key SortKey) int {
	switch key {
	case SortSpectrum:
		return spectrumRank(a.PredictedSpectrum) - spectrumRank(b.PredictedSpectrum)
	case SortScore:
		return compareFloat(a.Sentiment.Score, b.Sentiment.Score)
	case SortConfidence:
		return compareFloat(a.Sentiment.Confidence, b.Sentiment.Confidence)
	}
	return a.Timestamp.Compare(b.Timestamp)
}

func spectrumRank(s models.Spectrum) int {
	if i := slices.Index(models.Spectrums, s); i >= 0 {
		return i
	}
	return len(models.Spectrums)
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
