// Package chat implements the turn orchestration core: session state,
// the turn executor over the external pipeline's streaming contract, the
// render sequencer and the paced typewriter renderer.
package chat

// EventType tags one unit of the pipeline's incremental output.
type EventType string

const (
	EventIntermediateText EventType = "intermediate_text"
	EventToolOutput       EventType = "tool_output"
	EventFinalResponse    EventType = "final_response"
	EventError            EventType = "error"
)

// StreamEvent is the unit produced by the pipeline during a turn. Only the
// final_response content outlives the turn; everything else is render-only.
type StreamEvent struct {
	Type    EventType `json:"type"`
	Content string    `json:"content"`
}

// Known reports whether the tag is one of the four event types the render
// dispatch understands.
func (t EventType) Known() bool {
	switch t {
	case EventIntermediateText, EventToolOutput, EventFinalResponse, EventError:
		return true
	default:
		return false
	}
}

// Terminal reports whether an event of this type ends a turn's stream.
func (t EventType) Terminal() bool {
	return t == EventFinalResponse || t == EventError
}
