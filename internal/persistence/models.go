package persistence

import "time"

// Conversation is one call's persisted record, keyed by call_id.
type Conversation struct {
	CallID            string
	AgentID           string
	PhoneNumber       string
	Status            string
	Transcript        string
	StartedAt         time.Time
	EndedAt           *time.Time
	DurationSecs      *float64
	EndedReason       string
	DynamicVariables  map[string]string
	RecordingURL      string
	Metadata          map[string]interface{}
}
