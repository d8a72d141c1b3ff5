package transformers

import (
	"context"
	"io"

	"github.com/spacesedan/feedbackflow/internal/clients"
	"github.com/spacesedan/feedbackflow/internal/models"
)

type inferenceClient interface {
	Classify(ctx context.Context, text string) ([]models.InferenceLabel, error)
}

// RemoteClassifier calls a hosted text-classification endpoint.
type RemoteClassifier struct {
	client inferenceClient
}

func NewRemoteClassifier(client inferenceClient) *RemoteClassifier {
	return &RemoteClassifier{client: client}
}

func (r *RemoteClassifier) Classify(ctx context.Context, text string) (Prediction, error) {
	labels, err := r.client.Classify(ctx, text)
	if err != nil {
		return Prediction{}, err
	}
	return bestLabel(labels)
}

func bestLabel(labels []models.InferenceLabel) (Prediction, error) {
	if len(labels) == 0 {
		return Prediction{}, ErrNoPrediction
	}
	best := labels[0]
	for _, l := range labels[1:] {
		if l.Score > best.Score {
			best = l
		}
	}
	return NewPrediction(best.Label, best.Score)
}

// NewRemoteLoader returns a loader that issues one probe request so a
// misconfigured endpoint surfaces as unavailable instead of failing per call.
func NewRemoteLoader(client *clients.HuggingFaceClient) Loader {
	return func(ctx context.Context) (Classifier, io.Closer, error) {
		c := NewRemoteClassifier(client)
		if _, err := c.Classify(ctx, "warmup"); err != nil {
			return nil, nil, err
		}
		return c, nil, nil
	}
}
