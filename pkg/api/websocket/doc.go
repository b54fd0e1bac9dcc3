// Package websocket provides the live thread state stream over WebSocket.
//
// Clients connect to /chatkit/state/ws?thread_id=... and receive the
// thread snapshot followed by every state update, one text message each.
package websocket
