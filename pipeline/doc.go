// Package pipeline implements the stage workers that move a document through
// ingestion: split, convert-and-chunk, vector embed and graph embed. Every
// stage shares the same four-phase shape, provided by Driver: mark started,
// run the transform, persist and dispatch fan-out children, mark finished.
// Failures are recorded on the job and re-surfaced to the dispatcher lane.
//
// The package also provides the inline ingestion path used by the streaming
// endpoint, which runs the same transforms synchronously and reports
// checkpoints through an Emitter instead of fanning out.
package pipeline
