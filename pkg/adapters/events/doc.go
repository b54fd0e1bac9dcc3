// Package events provides thread update bus implementations.
//
// Implementations:
//   - redis: Redis Streams fan-out, so every relay instance sees every update
//   - memory: In-process delivery for tests and single-instance development
package events
