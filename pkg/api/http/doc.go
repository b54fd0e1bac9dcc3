// Package http provides the chatkit relay over HTTP.
//
// The relay forwards protocol messages to an injected chatkit.Server and
// hands the result back unchanged. It exposes endpoints for:
//   - Protocol messages (buffered JSON or server-sent events)
//   - Thread and bootstrap state snapshots
//   - A live stream of state updates
//   - Health checks
//   - Prometheus metrics
//
// Streamed responses pass through an sse.Transcript, which prints agent
// message text for operators without touching the forwarded bytes.
package http
