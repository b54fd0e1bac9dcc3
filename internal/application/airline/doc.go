// Package airline implements the reference delegate behind the relay: a
// thread server for the airline customer-service agents.
//
// The server:
//   - Parses and validates chatkit protocol messages
//   - Routes each user message to the triage agent or a specialist
//   - Streams agent replies as runner_event_delta SSE frames
//   - Persists threads via the thread store
//   - Publishes thread snapshots on the update bus for live listeners
//
// Turns run on the bounded worker pool.
package airline
