package transformers

import (
	"context"
	"io"

	"github.com/spacesedan/feedbackflow/internal/models"
)

type chatClassifier interface {
	ClassifySentiment(ctx context.Context, text string) (models.OpenAIClassification, error)
}

// OpenAIClassifier asks a chat model for a POSITIVE/NEGATIVE label.
type OpenAIClassifier struct {
	client chatClassifier
}

func NewOpenAIClassifier(client chatClassifier) *OpenAIClassifier {
	return &OpenAIClassifier{client: client}
}

func (o *OpenAIClassifier) Classify(ctx context.Context, text string) (Prediction, error) {
	out, err := o.client.ClassifySentiment(ctx, text)
	if err != nil {
		return Prediction{}, err
	}
	return NewPrediction(out.Label, out.Score)
}

func NewOpenAILoader(newClient func() (chatClassifier, error)) Loader {
	return func(ctx context.Context) (Classifier, io.Closer, error) {
		client, err := newClient()
		if err != nil {
			return nil, nil, err
		}
		return NewOpenAIClassifier(client), nil, nil
	}
}
