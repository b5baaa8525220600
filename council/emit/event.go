package emit

// Event represents an observability event emitted during turn execution.
//
// Events trace the life of a deliberation turn:
//   - turn_start / turn_commit / turn_error
//   - stage_start / stage_end for each of the three stages
//   - model_call_start / model_call_end / model_call_retry per member
type Event struct {
	// ConversationID identifies the conversation the turn belongs to.
	// Empty for a turn submitted without a conversation id (a new
	// conversation whose id has not been assigned yet).
	ConversationID string

	// Stage names the pipeline stage, when applicable: "stage1", "stage2",
	// "stage3". Empty for turn-level events.
	Stage string

	// Model is the council member the event concerns. Empty for stage- and
	// turn-level events.
	Model string

	// Msg is a short machine-friendly event name, e.g. "model_call_end".
	Msg string

	// Meta contains additional structured data specific to this event.
	// Common keys:
	//   - "duration_ms": call or stage duration in milliseconds
	//   - "error": failure details
	//   - "error_kind": classified failure kind
	//   - "tokens": total tokens reported by the provider
	//   - "attempt": retry attempt number
	Meta map[string]interface{}
}
