package models

// Stream event types sent on the harmonization websocket
const (
	EventStepUpdate = "step_update"
	EventCompleted  = "completed"
	EventNotReady   = "not_ready"
	EventError      = "error"
)

// StreamEvent is one websocket message
type StreamEvent struct {
	EventType string      `json:"event_type"`
	RunID     string      `json:"run_id"`
	Data      interface{} `json:"data"`
}
