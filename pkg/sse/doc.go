// Package sse handles server-sent-events framing for the relay.
//
// It provides:
//   - Frame encoding for "data: ..." frames
//   - Best-effort decoding of runner event deltas from data lines
//   - Transcript, a read-only tap over a chunk sequence that prints
//     agent message text as it streams
package sse
