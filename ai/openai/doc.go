// Package openai implements the ai interfaces against any OpenAI-compatible
// API (OpenAI itself, Ollama, LocalAI, vLLM). Embedding, graph extraction and
// generation may point at different hosts and models via ai.Config.
package openai
