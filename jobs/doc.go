// Package jobs provides the status tracker, the single write path for job
// lifecycle transitions. Stage workers never touch the repository's
// UpdateStatus directly; they go through the tracker so every transition is
// validated, timestamped and logged uniformly.
package jobs
