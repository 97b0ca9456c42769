// Package document handles the source-document side of ingestion: fetching
// raw files over HTTP, converting PDF bytes to per-page text, and splitting
// page text into overlapping chunks suitable for embedding.
//
// The package has no knowledge of jobs or storage. Each piece is a small
// collaborator consumed by the pipeline workers.
package document
