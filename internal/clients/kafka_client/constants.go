package kafka_client

import "time"

const (
	KAFKA_TOPIC_FEEDBACK_UPLOADS = "feedback-uploads" // parsed chat log and social feed messages awaiting analysis
)

const (
	MAX_RETRIES  = 5
	RETRY_DELAY  = 2 * time.Second
	READ_TIMEOUT = time.Second

	TRANSACTIONAL_ID_PREFIX = "feedbackflow-producer"
)
