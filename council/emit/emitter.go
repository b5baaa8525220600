package emit

// Emitter receives and processes observability events from turn execution.
//
// Emitters enable pluggable observability backends:
//   - Logging: stdout, files, syslog
//   - Distributed tracing: OpenTelemetry, Jaeger, Zipkin
//   - Analytics pipelines
//
// Implementations should be:
//   - Non-blocking: avoid slowing down the deliberation pipeline
//   - Thread-safe: stage fan-out emits concurrently from many goroutines
//   - Resilient: handle backend failures without crashing the turn
type Emitter interface {
	// Emit sends an observability event to the configured backend.
	//
	// Emit must not panic and should not block the calling goroutine for
	// longer than necessary; slow backends should buffer or drop.
	Emit(event Event)
}
