// Package spectrum places text on a seven-point political spectrum using a
// high-confidence neural shortcut or weighted keyword scoring.
package spectrum

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/spacesedan/feedbackflow/internal/models"
	"github.com/spacesedan/feedbackflow/internal/monitoring"
	"github.com/spacesedan/feedbackflow/internal/transformers"
)

const (
	DefaultFastPathThreshold = 0.8

	phraseMultiplier     = 1.5
	contextualMultiplier = 0.8
	confidenceScale      = 0.3
	minConfidence        = 0.1
	signalThreshold      = 0.2
	weakSignalConfidence = 0.3
	degradedConfidence   = 0.1

	operation = "spectrum"
)

type Options struct {
	FastPathThreshold float64
	NeuralTimeout     time.Duration
	Metrics           *monitoring.Metrics
}

type Classifier struct {
	table Table
	model transformers.Handle
	opts  Options
}

// NewClassifier takes a nil model when no neural shortcut is wanted.
func NewClassifier(table Table, model transformers.Handle, opts Options) *Classifier {
	if opts.FastPathThreshold <= 0 {
		opts.FastPathThreshold = DefaultFastPathThreshold
	}
	return &Classifier{table: table, model: model, opts: opts}
}

type CategoryScore struct {
	Category models.Spectrum
	Score    float64
}

func (c *Classifier) Classify(ctx context.Context, text string) models.SpectrumResult {
	result, _ := c.Evaluate(ctx, text)
	return result
}

// Evaluate is Classify that also reports whether the result is final: the
// neural backend answered, or no neural shortcut is configured. A keyword
// result reached because the backend was down or failed reports false.
func (c *Classifier) Evaluate(ctx context.Context, text string) (result models.SpectrumResult, final bool) {
	if strings.TrimSpace(text) == "" {
		c.opts.Metrics.ObserveAnalysis(operation, monitoring.PathEmpty)
		return models.NewSpectrumResult(models.SpectrumCenter, 0), false
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("[SpectrumClassifier] Classification failed, returning center",
				slog.String("error", fmt.Sprint(r)))
			c.opts.Metrics.ObserveAnalysis(operation, monitoring.PathDegraded)
			result, final = models.NewSpectrumResult(models.SpectrumCenter, degradedConfidence), false
		}
	}()

	res, taken, answered := c.fastPath(ctx, text)
	if taken {
		c.opts.Metrics.ObserveAnalysis(operation, monitoring.PathFastPath)
		return res, true
	}
	final = answered || c.model == nil

	scores := c.Scores(text)
	top, second := scores[0], CategoryScore{}
	if len(scores) > 1 {
		second = scores[1]
	}

	if math.Abs(top.Score) < signalThreshold {
		c.opts.Metrics.ObserveAnalysis(operation, monitoring.PathCenter)
		return models.NewSpectrumResult(models.SpectrumCenter, weakSignalConfidence), final
	}

	diff := math.Abs(top.Score) - math.Abs(second.Score)
	confidence := math.Min(math.Max(diff*confidenceScale, minConfidence), 1)

	c.opts.Metrics.ObserveAnalysis(operation, monitoring.PathKeyword)
	return models.NewSpectrumResult(top.Category, confidence), final
}

// fastPath trusts a confident binary sentiment prediction: negative maps to
// right, anything else to left. answered is true when the backend returned a
// prediction, whether or not it cleared the threshold.
func (c *Classifier) fastPath(ctx context.Context, text string) (result models.SpectrumResult, taken, answered bool) {
	if c.model == nil {
		return models.SpectrumResult{}, false, false
	}
	backend := c.model.Backend()
	if backend.State() != transformers.StateReady {
		return models.SpectrumResult{}, false, false
	}

	start := time.Now()
	prediction, err := transformers.ClassifyWithTimeout(ctx, backend, text, c.opts.NeuralTimeout)
	c.opts.Metrics.ObserveNeural(time.Since(start), err)
	if err != nil {
		slog.Warn("[SpectrumClassifier] Neural classification failed, using keywords",
			slog.String("error", err.Error()))
		return models.SpectrumResult{}, false, false
	}
	if prediction.Score <= c.opts.FastPathThreshold {
		return models.SpectrumResult{}, false, true
	}

	spectrum := models.SpectrumLeft
	if prediction.Label == transformers.LabelNegative {
		spectrum = models.SpectrumRight
	}
	return models.NewSpectrumResult(spectrum, prediction.Score), true, true
}

// Scores returns every category's keyword score ordered by absolute value,
// highest first. Equal magnitudes keep table order.
func (c *Classifier) Scores(text string) []CategoryScore {
	lower := strings.ToLower(text)
	words := strings.Fields(lower)

	scores := make([]CategoryScore, len(c.table.Categories))
	for i, cat := range c.table.Categories {
		scores[i] = CategoryScore{Category: cat.Name, Score: scoreCategory(cat, lower, words)}
	}

	sort.SliceStable(scores, func(i, j int) bool {
		return math.Abs(scores[i].Score) > math.Abs(scores[j].Score)
	})
	return scores
}

func scoreCategory(cat Category, lower string, words []string) float64 {
	var score float64
	for _, keyword := range cat.Keywords {
		if len(strings.Fields(keyword)) > 1 {
			if strings.Contains(lower, keyword) {
				score += cat.Weight * phraseMultiplier
			}
			continue
		}
		for _, w := range words {
			if w == keyword {
				score += cat.Weight
			}
		}
	}
	for _, phrase := range cat.Contextual {
		if strings.Contains(lower, phrase) {
			score += cat.Weight * contextualMultiplier
		}
	}
	return score
}
