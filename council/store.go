package council

import "context"

// ConversationStore persists conversations and their turns. The engine reads
// prior turns for chairman context and appends exactly one complete turn per
// successful Submit call.
//
// Implementations must guarantee:
//
//   - LoadContext returns an empty slice (not ErrNotFound) for an unknown
//     conversation id, so a first turn needs no prior registration.
//   - Commit is atomic: either the full turn is durable on return, or the
//     conversation is unchanged. Commit creates the conversation record on
//     first append.
//   - Get and Delete return ErrNotFound for unknown ids.
//   - List orders summaries newest first.
//
// The council/store package provides memory, SQLite, and MySQL
// implementations.
type ConversationStore interface {
	// LoadContext returns the committed turns of a conversation in commit
	// order. Unknown ids yield an empty slice and no error.
	LoadContext(ctx context.Context, conversationID string) ([]Turn, error)

	// Commit atomically appends a turn, creating the conversation if it
	// does not exist, and returns the updated record.
	Commit(ctx context.Context, conversationID string, turn Turn) (ConversationRecord, error)

	// Get returns the full conversation record.
	Get(ctx context.Context, conversationID string) (ConversationRecord, error)

	// List returns summaries of all conversations, newest first.
	List(ctx context.Context) ([]ConversationSummary, error)

	// Delete removes a conversation and all of its turns.
	Delete(ctx context.Context, conversationID string) error
}
