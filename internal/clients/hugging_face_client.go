package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/spacesedan/feedbackflow/internal/models"
)

// HuggingFaceClient talks to a hosted text-classification endpoint.
type HuggingFaceClient struct {
	Client   *http.Client
	Endpoint string
	Token    string
	Retries  int
	Backoff  time.Duration
}

func NewHuggingFaceClient(endpoint, token string, timeout time.Duration) *HuggingFaceClient {
	slog.Info("[HuggingFaceClient] Initializing Client",
		slog.Duration("timeout", timeout),
		slog.String("endpoint", endpoint))
	return &HuggingFaceClient{
		Client:   &http.Client{Timeout: timeout},
		Endpoint: endpoint,
		Token:    token,
		Retries:  MAX_RETRIES,
		Backoff:  INITIAL_BACKOFF,
	}
}

// DoWithRetry retries transport errors and 5xx responses with a doubling
// backoff. newRequest is called per attempt so the body can be replayed.
func (h *HuggingFaceClient) DoWithRetry(ctx context.Context, newRequest func() (*http.Request, error)) (*http.Response, error) {
	var resp *http.Response
	var err error
	backoff := h.Backoff
	attempts := max(h.Retries, 1)

	for attempt := 0; attempt < attempts; attempt++ {
		req, buildErr := newRequest()
		if buildErr != nil {
			return nil, buildErr
		}

		resp, err = h.Client.Do(req)
		if err == nil && resp.StatusCode < 500 {
			return resp, nil
		}

		slog.Warn("[HuggingFaceClient] Request failed, will retry",
			slog.Int("attempt", attempt+1),
			slog.String("error", errMsg(err, resp)))

		if resp != nil {
			resp.Body.Close()
			resp = nil
		}
		if err == nil {
			err = fmt.Errorf("server error after %d attempts", attempt+1)
		}

		if attempt == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, MAX_BACKOFF)
	}

	return nil, err
}

// Classify returns the label scores for text, best first.
func (h *HuggingFaceClient) Classify(ctx context.Context, text string) ([]models.InferenceLabel, error) {
	start := time.Now()
	input := models.InferenceRequest{
		Inputs:  text,
		Options: models.InferenceOptions{WaitForModel: true},
	}

	var raw json.RawMessage
	if err := h.postJSON(ctx, h.Endpoint, input, &raw); err != nil {
		slog.Error("[HuggingFaceClient] Classification request failed",
			slog.Duration("elapsed", time.Since(start)))
		return nil, err
	}

	labels, err := decodeInferenceLabels(raw)
	if err != nil {
		return nil, err
	}

	slog.Debug("[HuggingFaceClient] Classification request successful",
		slog.Duration("elapsed", time.Since(start)))
	return labels, nil
}

// decodeInferenceLabels accepts both the nested [[...]] shape returned for a
// single input and a flat [...] list.
func decodeInferenceLabels(raw []byte) ([]models.InferenceLabel, error) {
	var nested [][]models.InferenceLabel
	if err := json.Unmarshal(raw, &nested); err == nil {
		if len(nested) == 0 {
			return nil, nil
		}
		return nested[0], nil
	}

	var flat []models.InferenceLabel
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return flat, nil
}

func (h *HuggingFaceClient) postJSON(ctx context.Context, endpoint string, input interface{}, output interface{}) error {
	body, err := json.Marshal(input)
	if err != nil {
		slog.Error("[HuggingFaceClient] Failed to marshal input",
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to marshal input: %w", err)
	}

	resp, err := h.DoWithRetry(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", USER_AGENT)
		if h.Token != "" {
			req.Header.Set("Authorization", "Bearer "+h.Token)
		}
		return req, nil
	})
	if err != nil {
		slog.Error("[HuggingFaceClient] Failed request after retries",
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()))
		return fmt.Errorf("request failed after retries: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		slog.Error("[HuggingFaceClient] Endpoint rejected request",
			slog.String("endpoint", endpoint),
			slog.Int("status", resp.StatusCode),
			getPreview(respBody))
		return fmt.Errorf("endpoint returned status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(respBody, output); err != nil {
		slog.Error("[HuggingFaceClient] Failed to unmarshal response",
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()),
			getPreview(respBody),
			slog.Int("raw_response_length", len(respBody)))

		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return nil
}

func getPreview(respBody []byte) slog.Attr {
	raw := string(respBody)
	if len(raw) > 50 {
		raw = raw[:50]
	}
	return slog.String("raw_response", raw)
}

func errMsg(err error, resp *http.Response) string {
	if err != nil {
		return err.Error()
	}
	if resp != nil {
		return fmt.Sprintf("status code %d", resp.StatusCode)
	}
	return "unknown error"
}
