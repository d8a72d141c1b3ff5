package models

import "time"

type FeedbackSource string

const (
	SourceFeedbackForm FeedbackSource = "feedback-form"
	SourceUploaded     FeedbackSource = "uploaded"
	SourceFacebook     FeedbackSource = "facebook"
)

func (s FeedbackSource) IsValid() bool {
	switch s {
	case SourceFeedbackForm, SourceUploaded, SourceFacebook:
		return true
	}
	return false
}

// FeedbackRecord is the stored shape of one submission.
type FeedbackRecord struct {
	ID                string          `json:"id" dynamodbav:"id"`
	Feedback          string          `json:"feedback" dynamodbav:"feedback"`
	PoliticalSpectrum string          `json:"politicalSpectrum" dynamodbav:"political_spectrum"`
	PredictedSpectrum Spectrum        `json:"predictedSpectrum" dynamodbav:"predicted_spectrum"`
	Sentiment         SentimentResult `json:"sentiment" dynamodbav:"sentiment"`
	Timestamp         time.Time       `json:"timestamp" dynamodbav:"timestamp"`
	Source            FeedbackSource  `json:"source" dynamodbav:"source"`
}

const UnspecifiedSpectrum = "unspecified"

// ChatMessage is a single message extracted from an uploaded chat log or
// pulled from a social feed.
type ChatMessage struct {
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Spectrum  string    `json:"spectrum"`
}
