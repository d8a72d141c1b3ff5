// Package transformers wraps the pretrained text-classification backends and
// owns their lazy initialization.
package transformers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

type Label string

const (
	LabelPositive Label = "POSITIVE"
	LabelNegative Label = "NEGATIVE"
)

var (
	ErrUnavailable        = errors.New("neural classifier unavailable")
	ErrNoBackend          = errors.New("no neural backend configured")
	ErrUnsupportedRuntime = errors.New("runtime not supported by this build")
	ErrNoPrediction       = errors.New("classifier returned no prediction")
)

// Prediction is the top label of a binary sentiment model with its
// probability in [0, 1].
type Prediction struct {
	Label Label
	Score float64
}

// Signed maps the prediction onto [-1, 1]: positive labels keep their
// probability, negative labels negate it.
func (p Prediction) Signed() float64 {
	if p.Label == LabelNegative {
		return -p.Score
	}
	return p.Score
}

type Classifier interface {
	Classify(ctx context.Context, text string) (Prediction, error)
}

// ParseLabel accepts the label spellings used by SST-2 style models.
func ParseLabel(raw string) (Label, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "POSITIVE", "POS", "LABEL_1":
		return LabelPositive, nil
	case "NEGATIVE", "NEG", "LABEL_0":
		return LabelNegative, nil
	}
	return "", fmt.Errorf("unknown label %q", raw)
}

// NewPrediction validates a raw label and clamps the score into [0, 1].
func NewPrediction(rawLabel string, score float64) (Prediction, error) {
	label, err := ParseLabel(rawLabel)
	if err != nil {
		return Prediction{}, err
	}
	return Prediction{Label: label, Score: min(max(score, 0), 1)}, nil
}

type classifyResult struct {
	prediction Prediction
	err        error
}

// ClassifyWithTimeout bounds a single call. The backend runs on its own
// goroutine so one that ignores ctx cannot hold the caller past the deadline.
func ClassifyWithTimeout(ctx context.Context, c Classifier, text string, timeout time.Duration) (Prediction, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	done := make(chan classifyResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- classifyResult{err: fmt.Errorf("classifier panic: %v", r)}
			}
		}()
		p, err := c.Classify(ctx, text)
		done <- classifyResult{prediction: p, err: err}
	}()

	select {
	case <-ctx.Done():
		return Prediction{}, fmt.Errorf("classification aborted: %w", ctx.Err())
	case res := <-done:
		return res.prediction, res.err
	}
}
