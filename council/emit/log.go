package emit

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
)

// LogEmitter implements Emitter by writing structured log output to a writer.
//
// Supports two output modes:
//   - Text mode (default): human-readable format with key=value pairs
//   - JSON mode: machine-readable JSON, one event per line (JSONL)
//
// Example text output:
//
//	[model_call_end] conv=c-42 stage=stage1 model=gpt-4o meta={"duration_ms":812}
//
// Example JSON output:
//
//	{"conversation":"c-42","stage":"stage1","model":"gpt-4o","msg":"model_call_end","meta":{"duration_ms":812}}
type LogEmitter struct {
	mu       sync.Mutex
	writer   io.Writer
	jsonMode bool
}

// NewLogEmitter creates a new LogEmitter.
//
// Parameters:
//   - writer: where to write the log output (e.g., os.Stdout, a file).
//     nil defaults to os.Stdout.
//   - jsonMode: if true, emit JSONL; if false, emit text format.
func NewLogEmitter(writer io.Writer, jsonMode bool) *LogEmitter {
	if writer == nil {
		writer = os.Stdout
	}
	return &LogEmitter{writer: writer, jsonMode: jsonMode}
}

// Emit writes an event to the configured writer.
func (l *LogEmitter) Emit(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.jsonMode {
		l.emitJSON(event)
	} else {
		l.emitText(event)
	}
}

func (l *LogEmitter) emitJSON(event Event) {
	data, err := json.Marshal(struct {
		Conversation string                 `json:"conversation"`
		Stage        string                 `json:"stage,omitempty"`
		Model        string                 `json:"model,omitempty"`
		Msg          string                 `json:"msg"`
		Meta         map[string]interface{} `json:"meta,omitempty"`
	}{
		Conversation: event.ConversationID,
		Stage:        event.Stage,
		Model:        event.Model,
		Msg:          event.Msg,
		Meta:         event.Meta,
	})
	if err != nil {
		fmt.Fprintf(l.writer, "{\"error\":\"failed to marshal event: %v\"}\n", err)
		return
	}
	fmt.Fprintf(l.writer, "%s\n", data)
}

func (l *LogEmitter) emitText(event Event) {
	fmt.Fprintf(l.writer, "[%s] conv=%s", event.Msg, event.ConversationID)
	if event.Stage != "" {
		fmt.Fprintf(l.writer, " stage=%s", event.Stage)
	}
	if event.Model != "" {
		fmt.Fprintf(l.writer, " model=%s", event.Model)
	}
	if len(event.Meta) > 0 {
		metaJSON, err := json.Marshal(event.Meta)
		if err == nil {
			fmt.Fprintf(l.writer, " meta=%s", metaJSON)
		} else {
			fmt.Fprintf(l.writer, " meta=%v", event.Meta)
		}
	}
	fmt.Fprint(l.writer, "\n")
}
