package emit

// NullEmitter implements Emitter by discarding all events.
//
// This is the default emitter when the engine is constructed without one.
// It is safe for concurrent use and has zero overhead.
type NullEmitter struct{}

// NewNullEmitter creates a new NullEmitter.
func NewNullEmitter() *NullEmitter {
	return &NullEmitter{}
}

// Emit discards the event without any processing.
func (n *NullEmitter) Emit(event Event) {}
