// Package sentiment blends a lexical polarity score with a neural
// classifier's signed probability.
package sentiment

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/spacesedan/feedbackflow/internal/lexicon"
	"github.com/spacesedan/feedbackflow/internal/models"
	"github.com/spacesedan/feedbackflow/internal/monitoring"
	"github.com/spacesedan/feedbackflow/internal/transformers"
)

const (
	DefaultLexicalWeight = 0.4
	DefaultNeuralWeight  = 0.6
	DefaultNeuralTimeout = 5 * time.Second

	operation = "sentiment"
)

type Options struct {
	LexicalWeight float64
	NeuralWeight  float64
	NeuralTimeout time.Duration
	Metrics       *monitoring.Metrics
}

func DefaultOptions() Options {
	return Options{
		LexicalWeight: DefaultLexicalWeight,
		NeuralWeight:  DefaultNeuralWeight,
		NeuralTimeout: DefaultNeuralTimeout,
	}
}

type Engine struct {
	analyzer *lexicon.Analyzer
	model    transformers.Handle
	opts     Options
}

func NewEngine(analyzer *lexicon.Analyzer, model transformers.Handle, opts Options) *Engine {
	return &Engine{analyzer: analyzer, model: model, opts: opts}
}

// Analyze never fails: empty input and internal faults both produce the
// neutral zero result.
func (e *Engine) Analyze(ctx context.Context, text string) models.SentimentResult {
	result, _ := e.Evaluate(ctx, text)
	return result
}

// Evaluate is Analyze that also reports whether the neural classifier
// contributed to the score. Lexical-only results report false.
func (e *Engine) Evaluate(ctx context.Context, text string) (result models.SentimentResult, neural bool) {
	if strings.TrimSpace(text) == "" {
		e.opts.Metrics.ObserveAnalysis(operation, monitoring.PathEmpty)
		return models.NeutralSentiment(), false
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("[SentimentEngine] Analysis failed, returning neutral result",
				slog.String("error", fmt.Sprint(r)))
			e.opts.Metrics.ObserveAnalysis(operation, monitoring.PathDegraded)
			result, neural = models.NeutralSentiment(), false
		}
	}()

	backend := e.model.Backend()
	if backend.State() != transformers.StateReady {
		// the load outlives the request that triggered it
		e.model.EnsureReady(context.WithoutCancel(ctx))
		backend = e.model.Backend()
	}

	lexical := e.analyzer.Analyze(text)
	neuralScore, neuralConfidence, path := e.neural(ctx, backend, text)

	final := clamp(lexical.Score()*e.opts.LexicalWeight + neuralScore*e.opts.NeuralWeight)
	magnitude := math.Abs(final)

	e.opts.Metrics.ObserveAnalysis(operation, path)
	return models.SentimentResult{
		Score:          final,
		Magnitude:      magnitude,
		Confidence:     math.Max(neuralConfidence, magnitude),
		TopWords:       lexical.TopWords,
		SentimentLabel: Label(final),
	}, path == monitoring.PathNeural
}

// neural returns the signed score and confidence, both zero when the backend
// is not ready or the call fails.
func (e *Engine) neural(ctx context.Context, backend transformers.Backend, text string) (float64, float64, string) {
	if backend.State() != transformers.StateReady {
		return 0, 0, monitoring.PathLexical
	}

	start := time.Now()
	prediction, err := transformers.ClassifyWithTimeout(ctx, backend, text, e.opts.NeuralTimeout)
	e.opts.Metrics.ObserveNeural(time.Since(start), err)
	if err != nil {
		slog.Warn("[SentimentEngine] Neural classification failed, using lexical score only",
			slog.String("error", err.Error()))
		return 0, 0, monitoring.PathLexical
	}
	return prediction.Signed(), prediction.Score, monitoring.PathNeural
}

// Label buckets a score in [-1, 1].
func Label(score float64) models.SentimentLabel {
	switch {
	case math.Abs(score) < 0.1:
		return models.SentimentNeutral
	case score > 0.5:
		return models.SentimentVeryPositive
	case score > 0:
		return models.SentimentPositive
	case score < -0.5:
		return models.SentimentVeryNegative
	}
	return models.SentimentNegative
}

func clamp(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}
