// Package feedback validates, analyzes and stores user submissions.
package feedback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/spacesedan/feedbackflow/internal/db"
	"github.com/spacesedan/feedbackflow/internal/models"
	"github.com/spacesedan/feedbackflow/internal/monitoring"
)

const (
	MinLength = 10
	MaxLength = 10000
)

var (
	ErrInvalidFeedback = errors.New("invalid feedback")
	ErrInvalidSource   = errors.New("invalid source")
	ErrInvalidSpectrum = errors.New("invalid predicted spectrum")
)

// Analyzer is the engine surface the service needs.
type Analyzer interface {
	AnalyzeSentiment(ctx context.Context, text string) models.SentimentResult
	PredictPoliticalSpectrum(ctx context.Context, text string) models.SpectrumResult
}

type SubmitRequest struct {
	Feedback          string     `json:"feedback"`
	PoliticalSpectrum string     `json:"politicalSpectrum,omitempty"`
	PredictedSpectrum string     `json:"predictedSpectrum,omitempty"`
	Timestamp         *time.Time `json:"timestamp,omitempty"`
	Source            string     `json:"source,omitempty"`
}

type IngestResult struct {
	Stored  int `json:"stored"`
	Skipped int `json:"skipped"`
}

type Service struct {
	analyzer Analyzer
	store    db.Store
	metrics  *monitoring.Metrics
	now      func() time.Time
	newID    func() string
}

func NewService(analyzer Analyzer, store db.Store, metrics *monitoring.Metrics) *Service {
	return &Service{
		analyzer: analyzer,
		store:    store,
		metrics:  metrics,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

func Validate(text string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(text))
	switch {
	case n < MinLength:
		return fmt.Errorf("%w: must be at least %d characters", ErrInvalidFeedback, MinLength)
	case n > MaxLength:
		return fmt.Errorf("%w: must be at most %d characters", ErrInvalidFeedback, MaxLength)
	}
	return nil
}

// Submit analyzes and stores one submission. Caller-supplied spectrum,
// timestamp and source are kept when present.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (models.FeedbackRecord, error) {
	rec, err := s.build(ctx, req)
	if err != nil {
		return models.FeedbackRecord{}, err
	}

	if err := s.store.Insert(ctx, rec); err != nil {
		slog.Error("[FeedbackService] Failed to store feedback",
			slog.String("id", rec.ID),
			slog.String("error", err.Error()))
		return models.FeedbackRecord{}, fmt.Errorf("store feedback: %w", err)
	}
	s.metrics.ObserveStored(string(rec.Source), 1)

	slog.Info("[FeedbackService] Feedback stored",
		slog.String("id", rec.ID),
		slog.String("source", string(rec.Source)),
		slog.String("predicted_spectrum", string(rec.PredictedSpectrum)))
	return rec, nil
}

func (s *Service) build(ctx context.Context, req SubmitRequest) (models.FeedbackRecord, error) {
	if err := Validate(req.Feedback); err != nil {
		return models.FeedbackRecord{}, err
	}

	source := models.SourceFeedbackForm
	if req.Source != "" {
		source = models.FeedbackSource(req.Source)
		if !source.IsValid() {
			return models.FeedbackRecord{}, fmt.Errorf("%w: %q", ErrInvalidSource, req.Source)
		}
	}

	text := strings.TrimSpace(req.Feedback)
	sentiment := s.analyzer.AnalyzeSentiment(ctx, text)

	predicted := models.Spectrum(strings.TrimSpace(req.PredictedSpectrum))
	if predicted == "" {
		predicted = s.analyzer.PredictPoliticalSpectrum(ctx, text).Spectrum
	} else if !predicted.IsValid() {
		return models.FeedbackRecord{}, fmt.Errorf("%w: %q", ErrInvalidSpectrum, req.PredictedSpectrum)
	}

	declared := strings.TrimSpace(req.PoliticalSpectrum)
	if declared == "" {
		declared = string(predicted)
	}

	timestamp := s.now().UTC()
	if req.Timestamp != nil && !req.Timestamp.IsZero() {
		timestamp = req.Timestamp.UTC()
	}

	return models.FeedbackRecord{
		ID:                s.newID(),
		Feedback:          text,
		PoliticalSpectrum: declared,
		PredictedSpectrum: predicted,
		Sentiment:         sentiment,
		Timestamp:         timestamp,
		Source:            source,
	}, nil
}

// List returns every stored record. order is "asc" or "desc"; anything else
// is descending.
func (s *Service) List(ctx context.Context, sortKey, order string) ([]models.FeedbackRecord, error) {
	key, err := db.ParseSortKey(sortKey)
	if err != nil {
		return nil, err
	}
	desc := !strings.EqualFold(order, "asc")
	return s.store.List(ctx, key, desc)
}

// Ingest analyzes each message on its own and stores the valid ones in one
// batch. Messages failing validation are skipped.
func (s *Service) Ingest(ctx context.Context, messages []models.ChatMessage, source models.FeedbackSource) (IngestResult, error) {
	var result IngestResult
	records := make([]models.FeedbackRecord, 0, len(messages))

	for _, msg := range messages {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		ts := msg.Timestamp
		rec, err := s.build(ctx, SubmitRequest{
			Feedback:          msg.Content,
			PoliticalSpectrum: msg.Spectrum,
			Timestamp:         &ts,
			Source:            string(source),
		})
		if err != nil {
			slog.Warn("[FeedbackService] Skipping message",
				slog.String("source", string(source)),
				slog.String("error", err.Error()))
			result.Skipped++
			continue
		}
		records = append(records, rec)
	}

	if len(records) == 0 {
		return result, nil
	}
	if err := s.store.BatchInsert(ctx, records); err != nil {
		return result, fmt.Errorf("store batch: %w", err)
	}
	result.Stored = len(records)
	s.metrics.ObserveStored(string(source), len(records))

	slog.Info("[FeedbackService] Ingested messages",
		slog.String("source", string(source)),
		slog.Int("stored", result.Stored),
		slog.Int("skipped", result.Skipped))
	return result, nil
}
