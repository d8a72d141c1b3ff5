package models

// UploadMessage is the Kafka record for one message of an upload. Every
// message of the same upload carries the same UploadID.
type UploadMessage struct {
	UploadID string         `json:"uploadId"`
	Source   FeedbackSource `json:"source"`
	Message  ChatMessage    `json:"message"`
}
