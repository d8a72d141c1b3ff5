package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/spacesedan/feedbackflow/internal/models"
)

const (
	openAIRequestTimeout = 60 * time.Second

	openAISentimentPrompt = `You are a sentiment classifier. Classify the user's text as POSITIVE or NEGATIVE.
Respond with JSON only, no prose: {"label": "POSITIVE" | "NEGATIVE", "score": <probability between 0 and 1>}`
)

var ErrEmptyCompletion = errors.New("openai returned empty response")

type OpenAIClient struct {
	Completions *openai.ChatCompletionService
	Model       openai.ChatModel
}

func NewOpenAIClient(apiKey, model string) (*OpenAIClient, error) {
	if apiKey == "" {
		slog.Error("[OpenAIClient] Missing OPENAI_API_KEY in environment variables")
		return nil, errors.New("missing OPENAI_API_KEY")
	}

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithRequestTimeout(openAIRequestTimeout),
		option.WithMaxRetries(MAX_RETRIES),
	)
	slog.Info("[OpenAIClient] OpenAI client initialized",
		slog.String("model", model),
		slog.Duration("timeout", openAIRequestTimeout))

	return &OpenAIClient{
		Completions: client.Chat.Completions,
		Model:       openai.ChatModel(model),
	}, nil
}

// ClassifySentiment asks the chat model for a binary sentiment label.
func (o *OpenAIClient) ClassifySentiment(ctx context.Context, text string) (models.OpenAIClassification, error) {
	var out models.OpenAIClassification

	completion, err := o.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: openai.F([]openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(openAISentimentPrompt),
			openai.UserMessage(text),
		}),
		Model:       openai.F(o.Model),
		Temperature: openai.Float(0),
	})
	if err != nil {
		return out, fmt.Errorf("openai chat completion: %w", err)
	}

	if len(completion.Choices) == 0 || strings.TrimSpace(completion.Choices[0].Message.Content) == "" {
		return out, ErrEmptyCompletion
	}

	raw := cleanOpenAIResponse(completion.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		slog.Warn("[OpenAIClient] Failed to parse classification",
			slog.String("error", err.Error()),
			getPreview([]byte(raw)))
		return out, fmt.Errorf("failed to parse classification: %w", err)
	}
	return out, nil
}

// cleanOpenAIResponse strips code fences and curly quotes the model sometimes
// wraps around its JSON.
func cleanOpenAIResponse(response string) string {
	response = strings.TrimSpace(response)

	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")

	response = strings.ReplaceAll(response, "\u201C", `"`)
	response = strings.ReplaceAll(response, "\u201D", `"`)

	return strings.TrimSpace(response)
}
