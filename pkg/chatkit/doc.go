// Package chatkit defines the contract between the HTTP relay and the
// conversational server it fronts.
//
// The relay only knows about:
//   - Server: the delegate handling protocol messages and snapshots
//   - Result: buffered JSON, streamed SSE chunks or opaque bytes
//   - Queue: a per-thread mailbox of serialized state updates
package chatkit
