package sentiment

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spacesedan/feedbackflow/internal/lexicon"
	"github.com/spacesedan/feedbackflow/internal/models"
	"github.com/spacesedan/feedbackflow/internal/transformers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLexicon = lexicon.MapLexicon{
	"love":  0.8,
	"hate":  -0.8,
	"great": 0.6,
}

type fakeBackend struct {
	state      transformers.State
	prediction transformers.Prediction
	err        error
	delay      time.Duration
}

func (f fakeBackend) State() transformers.State { return f.state }

func (f fakeBackend) Classify(ctx context.Context, _ string) (transformers.Prediction, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return transformers.Prediction{}, ctx.Err()
		}
	}
	return f.prediction, f.err
}

type fakeHandle struct {
	backend   transformers.Backend
	ensured   atomic.Int32
	ensureErr atomic.Value
}

func (f *fakeHandle) EnsureReady(ctx context.Context) {
	f.ensured.Add(1)
	if err := ctx.Err(); err != nil {
		f.ensureErr.Store(err)
	}
}

func (f *fakeHandle) Backend() transformers.Backend { return f.backend }

type panickingLexicon struct{}

func (panickingLexicon) Polarity(string) (float64, bool) { panic("corrupt lexicon") }

func newEngine(backend transformers.Backend) (*Engine, *fakeHandle) {
	h := &fakeHandle{backend: backend}
	return NewEngine(lexicon.NewAnalyzer(testLexicon), h, DefaultOptions()), h
}

func TestEngine_EmptyInput(t *testing.T) {
	e, h := newEngine(fakeBackend{state: transformers.StateUninitialized})

	for _, text := range []string{"", "   ", "\n\t"} {
		got := e.Analyze(context.Background(), text)
		assert.Equal(t, models.NeutralSentiment(), got)
		assert.NotNil(t, got.TopWords)
	}
	assert.Equal(t, int32(0), h.ensured.Load(), "empty input does not touch the model")
}

func TestEngine_NeuralAlwaysFails(t *testing.T) {
	e, _ := newEngine(fakeBackend{state: transformers.StateReady, err: errors.New("inference error")})

	got := e.Analyze(context.Background(), "I love this")

	lexical := 0.8 / 3
	assert.InDelta(t, lexical*DefaultLexicalWeight, got.Score, 1e-9)
	assert.Equal(t, got.Magnitude, got.Confidence)
	assert.Equal(t, models.SentimentPositive, got.SentimentLabel)
	assert.Equal(t, []string{"love"}, got.TopWords)
}

func TestEngine_Blend(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		prediction transformers.Prediction
		wantScore  float64
		wantConf   float64
		wantLabel  models.SentimentLabel
	}{
		{
			name:       "positive agreement",
			text:       "I love this",
			prediction: transformers.Prediction{Label: transformers.LabelPositive, Score: 0.9},
			wantScore:  0.8/3*0.4 + 0.9*0.6,
			wantConf:   0.9,
			wantLabel:  models.SentimentVeryPositive,
		},
		{
			name:       "negative agreement",
			text:       "I hate this",
			prediction: transformers.Prediction{Label: transformers.LabelNegative, Score: 0.95},
			wantScore:  -0.8/3*0.4 - 0.95*0.6,
			wantConf:   0.95,
			wantLabel:  models.SentimentVeryNegative,
		},
		{
			name:       "neural overrides mild lexical",
			text:       "I love this",
			prediction: transformers.Prediction{Label: transformers.LabelNegative, Score: 0.6},
			wantScore:  0.8/3*0.4 - 0.6*0.6,
			wantConf:   0.6,
			wantLabel:  models.SentimentNegative,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newEngine(fakeBackend{state: transformers.StateReady, prediction: tt.prediction})

			got := e.Analyze(context.Background(), tt.text)

			assert.InDelta(t, tt.wantScore, got.Score, 1e-9)
			assert.InDelta(t, math.Abs(tt.wantScore), got.Magnitude, 1e-9)
			assert.InDelta(t, tt.wantConf, got.Confidence, 1e-9)
			assert.Equal(t, tt.wantLabel, got.SentimentLabel)
		})
	}
}

func TestEngine_UnavailableBackendUsesLexicalAndRetries(t *testing.T) {
	e, h := newEngine(fakeBackend{state: transformers.StateUnavailable})

	got := e.Analyze(context.Background(), "great great great")
	e.Analyze(context.Background(), "great")

	assert.InDelta(t, 0.6*0.4, got.Score, 1e-9)
	assert.Equal(t, got.Magnitude, got.Confidence)
	assert.Equal(t, int32(2), h.ensured.Load())
}

func TestEngine_ReadyBackendSkipsEnsure(t *testing.T) {
	e, h := newEngine(fakeBackend{state: transformers.StateReady, prediction: transformers.Prediction{Label: transformers.LabelPositive, Score: 0.5}})

	e.Analyze(context.Background(), "fine")

	assert.Equal(t, int32(0), h.ensured.Load())
}

func TestEngine_ScoreIsClamped(t *testing.T) {
	h := &fakeHandle{backend: fakeBackend{state: transformers.StateReady, prediction: transformers.Prediction{Label: transformers.LabelPositive, Score: 1}}}
	e := NewEngine(lexicon.NewAnalyzer(lexicon.MapLexicon{"love": 1}), h, Options{LexicalWeight: 1, NeuralWeight: 1})

	got := e.Analyze(context.Background(), "love")

	assert.Equal(t, 1.0, got.Score)
	assert.Equal(t, 1.0, got.Magnitude)
}

func TestEngine_NeuralTimeoutFallsBack(t *testing.T) {
	h := &fakeHandle{backend: fakeBackend{
		state:      transformers.StateReady,
		prediction: transformers.Prediction{Label: transformers.LabelPositive, Score: 1},
		delay:      time.Second,
	}}
	opts := DefaultOptions()
	opts.NeuralTimeout = 10 * time.Millisecond
	e := NewEngine(lexicon.NewAnalyzer(testLexicon), h, opts)

	got := e.Analyze(context.Background(), "I love this")

	assert.InDelta(t, 0.8/3*0.4, got.Score, 1e-9)
}

func TestEngine_PanicReturnsNeutral(t *testing.T) {
	h := &fakeHandle{backend: fakeBackend{state: transformers.StateReady}}
	e := NewEngine(lexicon.NewAnalyzer(panickingLexicon{}), h, DefaultOptions())

	var got models.SentimentResult
	require.NotPanics(t, func() { got = e.Analyze(context.Background(), "anything") })
	assert.Equal(t, models.NeutralSentiment(), got)
}

func TestLabel(t *testing.T) {
	tests := []struct {
		score float64
		want  models.SentimentLabel
	}{
		{0, models.SentimentNeutral},
		{0.099, models.SentimentNeutral},
		{-0.099, models.SentimentNeutral},
		{0.1, models.SentimentPositive},
		{0.5, models.SentimentPositive},
		{0.51, models.SentimentVeryPositive},
		{-0.1, models.SentimentNegative},
		{-0.5, models.SentimentNegative},
		{-0.51, models.SentimentVeryNegative},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Label(tt.score), "score %v", tt.score)
	}
}

func TestEngine_EvaluateReportsNeuralUse(t *testing.T) {
	ready, _ := newEngine(fakeBackend{state: transformers.StateReady, prediction: transformers.Prediction{Label: transformers.LabelPositive, Score: 0.9}})
	failing, _ := newEngine(fakeBackend{state: transformers.StateReady, err: errors.New("inference error")})
	offline, _ := newEngine(fakeBackend{state: transformers.StateUnavailable})

	_, neural := ready.Evaluate(context.Background(), "I love this")
	assert.True(t, neural)

	_, neural = failing.Evaluate(context.Background(), "I love this")
	assert.False(t, neural)

	_, neural = offline.Evaluate(context.Background(), "I love this")
	assert.False(t, neural)
}

func TestEngine_ModelLoadIgnoresRequestCancellation(t *testing.T) {
	e, h := newEngine(fakeBackend{state: transformers.StateUninitialized})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e.Analyze(ctx, "I love this")

	assert.Equal(t, int32(1), h.ensured.Load())
	assert.Nil(t, h.ensureErr.Load(), "load must not see the caller's cancellation")
}
