package kafka

import "time"

// TopicEvents — топик-зеркало конвейера событий. Postgres остаётся источником
// истины, Kafka получает копию для внешних потребителей.
const TopicEvents = "scoms.events"

// MirrorEvent — конверт события для публикации в Kafka.
type MirrorEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
