package emit

import (
	"fmt"
	"sync"
	"testing"
)

// TestBufferedEmitter_History verifies events are captured per conversation
// in emission order.
func TestBufferedEmitter_History(t *testing.T) {
	emitter := NewBufferedEmitter()

	emitter.Emit(Event{ConversationID: "conv-a", Msg: "turn_start"})
	emitter.Emit(Event{ConversationID: "conv-a", Stage: "stage1", Model: "gpt-5.1", Msg: "model_call_end"})
	emitter.Emit(Event{ConversationID: "conv-b", Msg: "turn_start"})
	emitter.Emit(Event{ConversationID: "conv-a", Msg: "turn_commit"})

	history := emitter.History("conv-a")
	if len(history) != 3 {
		t.Fatalf("expected 3 events for conv-a, got %d", len(history))
	}

	wantMsgs := []string{"turn_start", "model_call_end", "turn_commit"}
	for i, msg := range wantMsgs {
		if history[i].Msg != msg {
			t.Errorf("event[%d].Msg = %q, want %q", i, history[i].Msg, msg)
		}
	}

	if got := len(emitter.History("conv-b")); got != 1 {
		t.Errorf("expected 1 event for conv-b, got %d", got)
	}
	if got := len(emitter.History("unknown")); got != 0 {
		t.Errorf("expected 0 events for unknown conversation, got %d", got)
	}
}

// TestBufferedEmitter_HistoryIsCopy verifies mutating a returned history
// does not affect the buffer.
func TestBufferedEmitter_HistoryIsCopy(t *testing.T) {
	emitter := NewBufferedEmitter()
	emitter.Emit(Event{ConversationID: "conv-a", Msg: "turn_start"})

	history := emitter.History("conv-a")
	history[0].Msg = "mutated"

	if got := emitter.History("conv-a")[0].Msg; got != "turn_start" {
		t.Errorf("buffer was mutated through returned history: Msg = %q", got)
	}
}

// TestBufferedEmitter_HistoryWithFilter verifies combined filter criteria.
func TestBufferedEmitter_HistoryWithFilter(t *testing.T) {
	emitter := NewBufferedEmitter()

	emitter.Emit(Event{ConversationID: "conv-a", Stage: "stage1", Model: "gpt-5.1", Msg: "model_call_start"})
	emitter.Emit(Event{ConversationID: "conv-a", Stage: "stage1", Model: "gpt-5.1", Msg: "model_call_end"})
	emitter.Emit(Event{ConversationID: "conv-a", Stage: "stage1", Model: "gemini-3-pro", Msg: "model_call_end"})
	emitter.Emit(Event{ConversationID: "conv-a", Stage: "stage2", Model: "gpt-5.1", Msg: "model_call_end"})

	tests := []struct {
		name   string
		filter HistoryFilter
		want   int
	}{
		{"by stage", HistoryFilter{Stage: "stage1"}, 3},
		{"by model", HistoryFilter{Model: "gpt-5.1"}, 3},
		{"by msg", HistoryFilter{Msg: "model_call_end"}, 3},
		{"stage and model", HistoryFilter{Stage: "stage1", Model: "gpt-5.1"}, 2},
		{"all criteria", HistoryFilter{Stage: "stage2", Model: "gpt-5.1", Msg: "model_call_end"}, 1},
		{"no match", HistoryFilter{Model: "claude-sonnet-4-5"}, 0},
		{"empty filter matches all", HistoryFilter{}, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := emitter.HistoryWithFilter("conv-a", tt.filter)
			if len(got) != tt.want {
				t.Errorf("got %d events, want %d", len(got), tt.want)
			}
		})
	}
}

// TestBufferedEmitter_Clear verifies per-conversation and full clearing.
func TestBufferedEmitter_Clear(t *testing.T) {
	emitter := NewBufferedEmitter()
	emitter.Emit(Event{ConversationID: "conv-a", Msg: "turn_start"})
	emitter.Emit(Event{ConversationID: "conv-b", Msg: "turn_start"})

	emitter.Clear("conv-a")
	if got := len(emitter.History("conv-a")); got != 0 {
		t.Errorf("expected conv-a cleared, got %d events", got)
	}
	if got := len(emitter.History("conv-b")); got != 1 {
		t.Errorf("expected conv-b untouched, got %d events", got)
	}

	emitter.ClearAll()
	if got := len(emitter.History("conv-b")); got != 0 {
		t.Errorf("expected all cleared, got %d events for conv-b", got)
	}
}

// TestBufferedEmitter_ConcurrentEmit verifies thread safety under
// concurrent emission, the usage pattern during stage fan-out.
func TestBufferedEmitter_ConcurrentEmit(t *testing.T) {
	emitter := NewBufferedEmitter()

	const goroutines = 10
	const perGoroutine = 50

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				emitter.Emit(Event{
					ConversationID: "conv-shared",
					Model:          fmt.Sprintf("model-%d", n),
					Msg:            "model_call_end",
				})
			}
		}(i)
	}
	wg.Wait()

	history := emitter.History("conv-shared")
	if len(history) != goroutines*perGoroutine {
		t.Errorf("expected %d events, got %d", goroutines*perGoroutine, len(history))
	}
}

// TestNullEmitter verifies the default emitter discards events silently.
func TestNullEmitter(t *testing.T) {
	var emitter Emitter = NewNullEmitter()
	emitter.Emit(Event{ConversationID: "conv-a", Msg: "turn_start"})
	emitter.Emit(Event{})
}
