package pipeline

import "context"

// Event is one transient progress checkpoint. Events are never persisted;
// consumers treat the stream as a log, and a retried stage re-emits its
// earlier checkpoints.
type Event struct {
	// Status tags the checkpoint, e.g. "downloading", "converting",
	// "embedding", "completed", "error".
	Status string `json:"status"`

	// Message is the human-readable description of the checkpoint.
	Message string `json:"message,omitempty"`

	// Fields carries structured checkpoint data.
	Fields map[string]any `json:"fields,omitempty"`
}

// Emitter receives progress events. Emit errors indicate the consumer is
// gone; producers stop at the next checkpoint boundary.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(ctx context.Context, event Event) error

// Emit calls the underlying function.
func (f EmitterFunc) Emit(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// NopEmitter discards all events. Used by the queued pipeline path, where
// progress is observed by polling the job record instead.
func NopEmitter() Emitter {
	return EmitterFunc(func(ctx context.Context, event Event) error {
		return nil
	})
}
