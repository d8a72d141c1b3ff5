package models

// Inference API request body for text-classification endpoints.
type InferenceRequest struct {
	Inputs  string           `json:"inputs"`
	Options InferenceOptions `json:"options"`
}

type InferenceOptions struct {
	WaitForModel bool `json:"wait_for_model"`
}

// InferenceLabel is one label/score pair. Endpoints return [][]InferenceLabel,
// one inner slice per input sorted by score.
type InferenceLabel struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// OpenAIClassification is the JSON shape the chat model is asked to return.
type OpenAIClassification struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}
