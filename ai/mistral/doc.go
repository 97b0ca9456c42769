// Package mistral implements the ai.Generator interface against the hosted
// Mistral chat API. Only generation is provided here; embeddings and graph
// extraction always run against the configured OpenAI-compatible services.
package mistral
