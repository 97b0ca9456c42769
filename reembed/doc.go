// Package reembed reprocesses the stored vector index offline: regenerating
// embeddings after an embedding model change, and re-running graph
// extraction over stored chunk text after a prompt or model change.
package reembed
