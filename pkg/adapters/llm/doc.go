// Package llm provides LLM client implementations.
//
// The factory creates LLM clients based on provider configuration.
// Currently supports:
//   - anthropic: Claude via the streaming Messages API
//   - echo: an offline responder for local development and tests
package llm
