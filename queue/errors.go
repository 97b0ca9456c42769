package queue

import "errors"

var (
	// ErrUnknownLane indicates a task was enqueued to a lane that was
	// never registered.
	ErrUnknownLane = errors.New("unknown lane")

	// ErrLaneExists indicates a duplicate lane registration.
	ErrLaneExists = errors.New("lane already registered")

	// ErrDispatcherClosed indicates the dispatcher has been drained and no
	// longer accepts tasks.
	ErrDispatcherClosed = errors.New("dispatcher is closed")

	// ErrHandlerRequired indicates a lane was registered without a handler.
	ErrHandlerRequired = errors.New("lane handler is required")
)
