// Package llm implements the reply generation backends of the pipeline.
// It provides a non-streaming chat client for an Ollama server and an
// OpenAI chat completions client, both consuming the bounded prompt window
// built by the conversation package.
package llm
