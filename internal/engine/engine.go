// Package engine is the public boundary of the text analysis core. Its
// operations never return errors: faults degrade to neutral results.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spacesedan/feedbackflow/internal/cache"
	"github.com/spacesedan/feedbackflow/internal/models"
	"github.com/spacesedan/feedbackflow/internal/monitoring"
	"github.com/spacesedan/feedbackflow/internal/sentiment"
	"github.com/spacesedan/feedbackflow/internal/spectrum"
	"github.com/spacesedan/feedbackflow/internal/transformers"
)

const (
	sentimentKind = "sentiment"
	spectrumKind  = "spectrum"
)

// Model is the lifecycle-managed neural handle.
type Model interface {
	transformers.Handle
	State() transformers.State
	Close() error
}

type Engine struct {
	model     Model
	sentiment *sentiment.Engine
	spectrum  *spectrum.Classifier
	cache     cache.Cache
	metrics   *monitoring.Metrics

	closers []func()
}

// New assembles an engine. c and metrics may be nil.
func New(model Model, s *sentiment.Engine, sp *spectrum.Classifier, c cache.Cache, metrics *monitoring.Metrics) *Engine {
	return &Engine{
		model:     model,
		sentiment: s,
		spectrum:  sp,
		cache:     c,
		metrics:   metrics,
	}
}

func (e *Engine) AnalyzeSentiment(ctx context.Context, text string) models.SentimentResult {
	if res, ok := lookup[models.SentimentResult](ctx, e, cache.Key(sentimentKind, text)); ok {
		return res
	}
	res, neural := e.sentiment.Evaluate(ctx, text)
	if neural {
		e.store(ctx, cache.Key(sentimentKind, text), res)
	}
	return res
}

func (e *Engine) PredictPoliticalSpectrum(ctx context.Context, text string) models.SpectrumResult {
	if res, ok := lookup[models.SpectrumResult](ctx, e, cache.Key(spectrumKind, text)); ok {
		return res
	}
	res, final := e.spectrum.Evaluate(ctx, text)
	if final {
		e.store(ctx, cache.Key(spectrumKind, text), res)
	}
	return res
}

// Analyze runs sentiment first so the model is initialized before the
// spectrum fast path looks at it.
func (e *Engine) Analyze(ctx context.Context, text string) models.Analysis {
	return models.Analysis{
		Sentiment: e.AnalyzeSentiment(ctx, text),
		Spectrum:  e.PredictPoliticalSpectrum(ctx, text),
	}
}

func (e *Engine) EnsureModelsReady(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("[Engine] Model initialization panicked",
				slog.String("error", fmt.Sprint(r)))
		}
	}()
	e.model.EnsureReady(ctx)
}

func (e *Engine) ModelsReady() bool {
	return e.model.State() == transformers.StateReady
}

func (e *Engine) ModelState() transformers.State {
	return e.model.State()
}

func (e *Engine) Close() error {
	for _, c := range e.closers {
		c()
	}
	return e.model.Close()
}

func lookup[T any](ctx context.Context, e *Engine, key string) (T, bool) {
	var zero T
	if e.cache == nil {
		return zero, false
	}

	raw, ok, err := e.cache.Get(ctx, key)
	if err != nil || !ok {
		e.metrics.ObserveCache(false)
		return zero, false
	}

	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		slog.Warn("[Engine] Discarding unreadable cache entry",
			slog.String("key", key),
			slog.String("error", err.Error()))
		e.metrics.ObserveCache(false)
		return zero, false
	}
	e.metrics.ObserveCache(true)
	return out, true
}

// store is only called for results the neural backend took part in, so a
// fallback computed during an outage is never served after recovery.
func (e *Engine) store(ctx context.Context, key string, v any) {
	if e.cache == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := e.cache.Set(ctx, key, raw); err != nil {
		slog.Warn("[Engine] Failed to cache result",
			slog.String("key", key),
			slog.String("error", err.Error()))
	}
}
