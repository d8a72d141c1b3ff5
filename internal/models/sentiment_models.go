package models

type SentimentLabel string

const (
	SentimentVeryNegative SentimentLabel = "very negative"
	SentimentNegative     SentimentLabel = "negative"
	SentimentNeutral      SentimentLabel = "neutral"
	SentimentPositive     SentimentLabel = "positive"
	SentimentVeryPositive SentimentLabel = "very positive"
)

// SentimentResult is the blended output of the lexical and neural signals.
//   - Score is clamped to [-1, 1] and Magnitude is always |Score|
//   - Confidence is in [0, 1]
//   - TopWords holds at most 5 entries
type SentimentResult struct {
	Score          float64        `json:"score" dynamodbav:"score"`
	Magnitude      float64        `json:"magnitude" dynamodbav:"magnitude"`
	Confidence     float64        `json:"confidence" dynamodbav:"confidence"`
	TopWords       []string       `json:"topWords" dynamodbav:"top_words"`
	SentimentLabel SentimentLabel `json:"sentimentLabel" dynamodbav:"sentiment_label"`
}

// NeutralSentiment is returned for empty input and whenever the analysis
// could not complete.
func NeutralSentiment() SentimentResult {
	return SentimentResult{
		TopWords:       []string{},
		SentimentLabel: SentimentNeutral,
	}
}

// Analysis bundles both engine outputs for a single piece of text.
type Analysis struct {
	Sentiment SentimentResult `json:"sentiment"`
	Spectrum  SpectrumResult  `json:"spectrum"`
}
