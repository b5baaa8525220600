package emit

import "sync"

// BufferedEmitter implements Emitter by storing events in memory.
//
// This emitter captures all events and provides query capabilities for
// post-turn analysis. Events are organized by conversation id for efficient
// retrieval and filtering.
//
// Warning: all events stay in memory. For long-lived processes with many
// conversations, clear consumed conversations or use a log-backed emitter.
//
// Example usage:
//
//	emitter := emit.NewBufferedEmitter()
//	eng := council.New(cfg, client, store, council.WithEmitter(emitter))
//
//	res, _ := eng.Submit(ctx, "", "What is 2+2?")
//
//	calls := emitter.HistoryWithFilter(res.ConversationID, emit.HistoryFilter{Msg: "model_call_end"})
type BufferedEmitter struct {
	mu     sync.RWMutex
	events map[string][]Event // conversation id -> events
}

// HistoryFilter specifies criteria for filtering captured events.
//
// All fields are optional; set fields are combined with AND logic.
type HistoryFilter struct {
	Stage string // filter by stage (empty = no filter)
	Model string // filter by model (empty = no filter)
	Msg   string // filter by message (empty = no filter)
}

// NewBufferedEmitter creates a new BufferedEmitter.
func NewBufferedEmitter() *BufferedEmitter {
	return &BufferedEmitter{events: make(map[string][]Event)}
}

// Emit stores an event in the buffer. Thread-safe.
func (b *BufferedEmitter) Emit(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.events[event.ConversationID] = append(b.events[event.ConversationID], event)
}

// History retrieves all events for a conversation in emission order.
// Returns a copy; the buffer is not exposed for mutation.
func (b *BufferedEmitter) History(conversationID string) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	events := b.events[conversationID]
	out := make([]Event, len(events))
	copy(out, events)
	return out
}

// HistoryWithFilter retrieves events for a conversation matching the filter.
func (b *BufferedEmitter) HistoryWithFilter(conversationID string, filter HistoryFilter) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []Event
	for _, ev := range b.events[conversationID] {
		if filter.Stage != "" && ev.Stage != filter.Stage {
			continue
		}
		if filter.Model != "" && ev.Model != filter.Model {
			continue
		}
		if filter.Msg != "" && ev.Msg != filter.Msg {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// Clear removes captured events for one conversation.
func (b *BufferedEmitter) Clear(conversationID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.events, conversationID)
}

// ClearAll removes every captured event.
func (b *BufferedEmitter) ClearAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = make(map[string][]Event)
}
