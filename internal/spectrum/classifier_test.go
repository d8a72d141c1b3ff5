package spectrum

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spacesedan/feedbackflow/internal/models"
	"github.com/spacesedan/feedbackflow/internal/transformers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	state      transformers.State
	prediction transformers.Prediction
	err        error
}

func (f fakeBackend) State() transformers.State { return f.state }

func (f fakeBackend) Classify(context.Context, string) (transformers.Prediction, error) {
	if f.err != nil {
		return transformers.Prediction{}, f.err
	}
	return f.prediction, nil
}

type fakeHandle struct {
	backend transformers.Backend
}

func (f fakeHandle) EnsureReady(context.Context) {}

func (f fakeHandle) Backend() transformers.Backend { return f.backend }

func keywordOnly(t *testing.T) *Classifier {
	t.Helper()
	return NewClassifier(DefaultTable(), nil, Options{})
}

func TestClassify_EmptyInput(t *testing.T) {
	c := keywordOnly(t)

	for _, text := range []string{"", "  \n "} {
		assert.Equal(t, models.SpectrumResult{Spectrum: models.SpectrumCenter}, c.Classify(context.Background(), text))
	}
}

func TestClassify_TaxTheRich(t *testing.T) {
	c := keywordOnly(t)

	got := c.Classify(context.Background(), "It is time to tax the rich")

	assert.Equal(t, models.SpectrumFarLeft, got.Spectrum)
	assert.InDelta(t, 0.45, got.Confidence, 1e-9)
	assert.Equal(t, 1.0, got.PoliticalScore)
}

func TestClassify_NoSignalIsCenter(t *testing.T) {
	c := keywordOnly(t)

	got := c.Classify(context.Background(), "The weather is fine today")

	assert.Equal(t, models.NewSpectrumResult(models.SpectrumCenter, 0.3), got)
}

func TestClassify_KeywordScenarios(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		want     models.Spectrum
		wantConf float64
	}{
		{"single keyword", "we need deregulation", models.SpectrumRight, 0.3},
		{"repeated keyword", "reform reform reform", models.SpectrumLeft, 0.9},
		{"contextual phrase", "let us find common ground", models.SpectrumCenter, 0.3 * 0.8},
		{"keyword plus context", "a conservative case for limited government", models.SpectrumCenterRight, 0.3 * 1.8},
		{"competing categories", "liberty and welfare and freedom", models.SpectrumRight, 0.3},
		{"confidence capped", "socialism socialism socialism socialism socialism", models.SpectrumFarLeft, 1.0},
		{"case insensitive", "COMMUNIST manifesto", models.SpectrumFarLeft, 0.3},
	}
	c := keywordOnly(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(context.Background(), tt.text)
			assert.Equal(t, tt.want, got.Spectrum)
			assert.InDelta(t, tt.wantConf, got.Confidence, 1e-9)
			assert.Equal(t, tt.want.Score(), got.PoliticalScore)
		})
	}
}

func TestClassify_MinimumConfidence(t *testing.T) {
	c := keywordOnly(t)

	// progressive (left) and liberal (center-left) tie at 1.0, so the margin is zero.
	got := c.Classify(context.Background(), "progressive liberal")

	assert.Equal(t, models.SpectrumLeft, got.Spectrum)
	assert.Equal(t, 0.1, got.Confidence)
}

func TestScores_Monotonic(t *testing.T) {
	c := keywordOnly(t)
	base := "the plan is about"

	prev := scoreOf(c.Scores(base), models.SpectrumRight)
	text := base
	for i := 0; i < 4; i++ {
		text += " freedom"
		next := scoreOf(c.Scores(text), models.SpectrumRight)
		assert.InDelta(t, prev+1.0, next, 1e-9)
		prev = next
	}
	assert.Equal(t, models.SpectrumRight, c.Classify(context.Background(), text).Spectrum)
}

func TestScores_TieBreakIsTableOrder(t *testing.T) {
	table, err := ParseTable([]byte(`
categories:
  - name: right
    weight: 1.0
    keywords: [lower]
  - name: left
    weight: 1.0
    keywords: [fairer]
`))
	require.NoError(t, err)
	c := NewClassifier(table, nil, Options{})

	for i := 0; i < 20; i++ {
		got := c.Classify(context.Background(), "fairer and lower")
		assert.Equal(t, models.SpectrumRight, got.Spectrum)
		assert.Equal(t, 0.1, got.Confidence)
	}
}

func TestScores_NegativeWeightsRankByMagnitude(t *testing.T) {
	table, err := ParseTable([]byte(`
categories:
  - name: center
    weight: 0.5
    keywords: [budget]
  - name: far-right
    weight: -1.0
    keywords: [border]
`))
	require.NoError(t, err)
	c := NewClassifier(table, nil, Options{})

	scores := c.Scores("border border budget")
	assert.Equal(t, models.SpectrumFarRight, scores[0].Category)
	assert.Equal(t, -2.0, scores[0].Score)

	got := c.Classify(context.Background(), "border border budget")
	assert.Equal(t, models.SpectrumFarRight, got.Spectrum)
	assert.InDelta(t, 0.3*(2.0-0.5), got.Confidence, 1e-9)
}

func TestClassify_FastPath(t *testing.T) {
	tests := []struct {
		name     string
		backend  fakeBackend
		wantFast bool
		want     models.Spectrum
	}{
		{
			name:     "confident negative maps right",
			backend:  fakeBackend{state: transformers.StateReady, prediction: transformers.Prediction{Label: transformers.LabelNegative, Score: 0.95}},
			wantFast: true,
			want:     models.SpectrumRight,
		},
		{
			name:     "confident positive maps left",
			backend:  fakeBackend{state: transformers.StateReady, prediction: transformers.Prediction{Label: transformers.LabelPositive, Score: 0.81}},
			wantFast: true,
			want:     models.SpectrumLeft,
		},
		{
			name:    "threshold is exclusive",
			backend: fakeBackend{state: transformers.StateReady, prediction: transformers.Prediction{Label: transformers.LabelPositive, Score: 0.8}},
		},
		{
			name:    "failure falls through",
			backend: fakeBackend{state: transformers.StateReady, err: errors.New("inference error")},
		},
		{
			name:    "unavailable backend skipped",
			backend: fakeBackend{state: transformers.StateUnavailable, prediction: transformers.Prediction{Label: transformers.LabelPositive, Score: 0.99}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClassifier(DefaultTable(), fakeHandle{backend: tt.backend}, Options{NeuralTimeout: time.Second})

			got := c.Classify(context.Background(), "It is time to tax the rich")

			if tt.wantFast {
				assert.Equal(t, models.NewSpectrumResult(tt.want, tt.backend.prediction.Score), got)
				return
			}
			assert.Equal(t, models.SpectrumFarLeft, got.Spectrum)
			assert.InDelta(t, 0.45, got.Confidence, 1e-9)
		})
	}
}

type panickingHandle struct{}

func (panickingHandle) EnsureReady(context.Context) {}

func (panickingHandle) Backend() transformers.Backend { panic("handle corrupted") }

func TestClassify_PanicDegradesToCenter(t *testing.T) {
	c := NewClassifier(DefaultTable(), panickingHandle{}, Options{})

	var got models.SpectrumResult
	require.NotPanics(t, func() { got = c.Classify(context.Background(), "socialism") })
	assert.Equal(t, models.NewSpectrumResult(models.SpectrumCenter, 0.1), got)
}

func TestClassify_PoliticalScoreMatchesScale(t *testing.T) {
	c := keywordOnly(t)
	for _, text := range []string{"socialism", "welfare", "healthcare", "bipartisan", "fiscal", "liberty", "patriot", "hello"} {
		got := c.Classify(context.Background(), text)
		assert.Equal(t, got.Spectrum.Score(), got.PoliticalScore, text)
	}
}

func scoreOf(scores []CategoryScore, name models.Spectrum) float64 {
	for _, s := range scores {
		if s.Category == name {
			return s.Score
		}
	}
	return 0
}

func TestEvaluate_ReportsWhetherResultIsFinal(t *testing.T) {
	text := "It is time to tax the rich"
	tests := []struct {
		name      string
		model     transformers.Handle
		wantFinal bool
	}{
		{"keywords only", nil, true},
		{"backend answered below threshold", fakeHandle{backend: fakeBackend{
			state:      transformers.StateReady,
			prediction: transformers.Prediction{Label: transformers.LabelPositive, Score: 0.6},
		}}, true},
		{"backend failed", fakeHandle{backend: fakeBackend{
			state: transformers.StateReady,
			err:   errors.New("inference error"),
		}}, false},
		{"backend unavailable", fakeHandle{backend: fakeBackend{state: transformers.StateUnavailable}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClassifier(DefaultTable(), tt.model, Options{NeuralTimeout: time.Second})

			got, final := c.Evaluate(context.Background(), text)

			assert.Equal(t, models.SpectrumFarLeft, got.Spectrum)
			assert.Equal(t, tt.wantFinal, final)
		})
	}
}
