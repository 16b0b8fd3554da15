package config

// NSQ topics.
const (
	TopicExtractionResult = "extraction.result"
)
