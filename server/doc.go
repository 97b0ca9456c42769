// Package server exposes the pipeline over HTTP: job submission and polling,
// the streaming inline-ingest path and the streaming query path. Streamed
// responses are newline-delimited JSON with one frame per line, flushed as
// produced.
package server
